package toast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/claims-inbox/internal/model"
)

// fakeTimer is a manually fired timer.
type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fire runs the callback the way a real timer would, unless stopped.
func (t *fakeTimer) fire() {
	if !t.stopped {
		t.stopped = true
		t.f()
	}
}

type fakeClock struct {
	mu     gosync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[i]
}

type fakeOpener struct {
	urls []string
	err  error
}

func (o *fakeOpener) Open(url string) error {
	o.urls = append(o.urls, url)
	return o.err
}

func n(id int64, read bool) model.Notification {
	return model.Notification{ID: id, Title: "Toast", Type: model.TypeReportCreated, Read: read}
}

func newTestQueue(t *testing.T, opts Options) (*Queue, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	opts.AfterFunc = clock.AfterFunc
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewQueue(opts)
	t.Cleanup(q.Close)
	return q, clock
}

func ids(q *Queue) []int64 {
	return model.IDs(q.Entries())
}

func Test_Queue_Push_DeduplicatesByID(t *testing.T) {
	q, clock := newTestQueue(t, Options{})

	assert.Equal(t, 2, q.Push(n(1, false), n(2, false)))
	assert.Equal(t, 1, q.Push(n(2, false), n(3, false), n(1, false)))

	assert.Equal(t, []int64{1, 2, 3}, ids(q))
	assert.Len(t, clock.timers, 3, "a duplicate must not start a timer")
	assert.Equal(t, DefaultDuration, clock.timer(0).d)
}

func Test_Queue_AutoDismiss_OnlyItsOwnEntry(t *testing.T) {
	q, clock := newTestQueue(t, Options{Duration: 2 * time.Second})
	q.Push(n(1, false), n(2, false))

	clock.timer(0).fire()
	assert.Equal(t, []int64{2}, ids(q))
	assert.Equal(t, 2*time.Second, clock.timer(1).d)

	// Re-pushing id 1 gets a fresh timer; the old one firing again is a no-op.
	q.Push(n(1, false))
	clock.timer(0).f()
	assert.Equal(t, []int64{2, 1}, ids(q))
}

func Test_Queue_Dismiss_StopsTimer(t *testing.T) {
	q, clock := newTestQueue(t, Options{})
	q.Push(n(1, false), n(2, false))

	assert.True(t, q.Dismiss(1))
	assert.False(t, q.Dismiss(1))
	assert.True(t, clock.timer(0).stopped)
	assert.False(t, clock.timer(1).stopped)
	assert.Equal(t, []int64{2}, ids(q))
}

func Test_Queue_Click_Cases(t *testing.T) {
	markErr := errors.New("server unavailable")

	tests := []struct {
		name      string
		record    model.Notification
		markErr   error
		wantMarks []int64
		wantURLs  []string
		wantErr   error
	}{
		{
			name:      "unread without link is marked and dismissed",
			record:    n(1, false),
			wantMarks: []int64{1},
		},
		{
			name:     "read with link opens without marking",
			record:   model.Notification{ID: 2, Read: true, URL: "/cases/2"},
			wantURLs: []string{"/cases/2"},
		},
		{
			name:      "mark failure still opens and dismisses",
			record:    model.Notification{ID: 3, URL: "/reports/3"},
			markErr:   markErr,
			wantMarks: []int64{3},
			wantURLs:  []string{"/reports/3"},
			wantErr:   markErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var marks []int64
			opener := &fakeOpener{}
			q, clock := newTestQueue(t, Options{
				Opener: opener,
				MarkRead: func(_ context.Context, id int64) error {
					marks = append(marks, id)
					return tt.markErr
				},
			})
			q.Push(tt.record)

			err := q.Click(context.Background(), tt.record.ID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantMarks, marks)
			assert.Equal(t, tt.wantURLs, opener.urls)
			assert.Zero(t, q.Len())
			assert.True(t, clock.timer(0).stopped)
		})
	}
}

func Test_Queue_Click_SkipsRecordReadSinceShown(t *testing.T) {
	var marks []int64
	q, _ := newTestQueue(t, Options{
		MarkRead: func(_ context.Context, id int64) error {
			marks = append(marks, id)
			return nil
		},
		Unread: func(_ context.Context, id int64) bool { return id != 1 },
	})
	q.Push(n(1, false), n(2, false))

	require.NoError(t, q.Click(context.Background(), 1))
	require.NoError(t, q.Click(context.Background(), 2))

	assert.Equal(t, []int64{2}, marks, "id 1 was already read from the inbox")
	assert.Zero(t, q.Len())
}

func Test_Queue_Click_OpenerErrorDoesNotBlockDismissal(t *testing.T) {
	q, _ := newTestQueue(t, Options{Opener: &fakeOpener{err: errors.New("no browser")}})
	q.Push(model.Notification{ID: 9, Read: true, URL: "https://example.test"})

	require.NoError(t, q.Click(context.Background(), 9))
	assert.Zero(t, q.Len())
}

func Test_Queue_Close_ReleasesAllTimers(t *testing.T) {
	q, clock := newTestQueue(t, Options{})
	q.Push(n(1, false), n(2, false), n(3, false))

	q.Close()

	for i := range clock.timers {
		assert.True(t, clock.timer(i).stopped, "timer %d", i)
	}
	assert.Zero(t, q.Len())
	assert.Zero(t, q.Push(n(4, false)), "closed queue rejects pushes")
}

func Test_Queue_Visible_NewestFirst(t *testing.T) {
	q, _ := newTestQueue(t, Options{})
	q.Push(n(1, false), n(2, false), n(3, false))

	assert.Equal(t, []int64{3, 2}, model.IDs(q.Visible(2)))
	assert.Equal(t, []int64{3, 2, 1}, model.IDs(q.Visible(0)))

	newest, ok := q.Newest()
	require.True(t, ok)
	assert.Equal(t, int64(3), newest.ID)
}

func Test_Queue_OnChange_Fires(t *testing.T) {
	q, clock := newTestQueue(t, Options{})
	changes := 0
	q.OnChange(func() { changes++ })

	q.Push(n(1, false))
	q.Push(n(1, false))
	clock.timer(0).fire()
	q.Dismiss(1)

	assert.Equal(t, 2, changes)
}
