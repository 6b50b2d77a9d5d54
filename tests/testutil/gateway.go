package testutil

import (
	"context"
	"sync"

	"github.com/nhle/claims-inbox/internal/gateway"
	"github.com/nhle/claims-inbox/internal/model"
)

// FakeGateway implements gateway.Gateway for tests. Each method delegates
// to a function field; unset fields succeed with zero values. Every call
// is recorded in Calls.
type FakeGateway struct {
	FetchActiveFunc      func(ctx context.Context, userID string) ([]model.Notification, error)
	FetchTrashedFunc     func(ctx context.Context, userID string) ([]model.Notification, error)
	FetchUnreadCountFunc func(ctx context.Context, userID string) (int, error)
	MarkReadFunc         func(ctx context.Context, id int64, userID string) error
	MarkAllReadFunc      func(ctx context.Context, userID string) error
	DeleteFunc           func(ctx context.Context, id int64, userID string) error
	DeleteAllFunc        func(ctx context.Context, userID string) error
	RestoreFunc          func(ctx context.Context, id int64, userID string) error

	mu    sync.Mutex
	calls []string
}

var _ gateway.Gateway = (*FakeGateway)(nil)

func (f *FakeGateway) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

// Calls returns the names of the methods invoked so far, in order.
func (f *FakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount returns how many times method name was invoked.
func (f *FakeGateway) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *FakeGateway) FetchActive(ctx context.Context, userID string) ([]model.Notification, error) {
	f.record("FetchActive")
	if f.FetchActiveFunc != nil {
		return f.FetchActiveFunc(ctx, userID)
	}
	return nil, nil
}

func (f *FakeGateway) FetchTrashed(ctx context.Context, userID string) ([]model.Notification, error) {
	f.record("FetchTrashed")
	if f.FetchTrashedFunc != nil {
		return f.FetchTrashedFunc(ctx, userID)
	}
	return nil, nil
}

func (f *FakeGateway) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	f.record("FetchUnreadCount")
	if f.FetchUnreadCountFunc != nil {
		return f.FetchUnreadCountFunc(ctx, userID)
	}
	return 0, nil
}

func (f *FakeGateway) MarkRead(ctx context.Context, id int64, userID string) error {
	f.record("MarkRead")
	if f.MarkReadFunc != nil {
		return f.MarkReadFunc(ctx, id, userID)
	}
	return nil
}

func (f *FakeGateway) MarkAllRead(ctx context.Context, userID string) error {
	f.record("MarkAllRead")
	if f.MarkAllReadFunc != nil {
		return f.MarkAllReadFunc(ctx, userID)
	}
	return nil
}

func (f *FakeGateway) Delete(ctx context.Context, id int64, userID string) error {
	f.record("Delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, id, userID)
	}
	return nil
}

func (f *FakeGateway) DeleteAll(ctx context.Context, userID string) error {
	f.record("DeleteAll")
	if f.DeleteAllFunc != nil {
		return f.DeleteAllFunc(ctx, userID)
	}
	return nil
}

func (f *FakeGateway) Restore(ctx context.Context, id int64, userID string) error {
	f.record("Restore")
	if f.RestoreFunc != nil {
		return f.RestoreFunc(ctx, id, userID)
	}
	return nil
}

// Snapshots returns a FetchActiveFunc that serves the given snapshots in
// order and keeps serving the last one once they run out.
func Snapshots(snaps ...[]model.Notification) func(context.Context, string) ([]model.Notification, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, string) ([]model.Notification, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(snaps) == 0 {
			return nil, nil
		}
		snap := snaps[i]
		if i < len(snaps)-1 {
			i++
		}
		return append([]model.Notification(nil), snap...), nil
	}
}
