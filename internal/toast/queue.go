package toast

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/nhle/claims-inbox/internal/metrics"
	"github.com/nhle/claims-inbox/internal/model"
)

// DefaultDuration is how long a toast stays up when nobody touches it.
const DefaultDuration = 5 * time.Second

// Timer is the part of *time.Timer the queue needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

// ReadMarker acknowledges a notification as read, the same way the inbox
// does.
type ReadMarker func(ctx context.Context, id int64) error

// UnreadCheck reports whether id is still unread locally. A toast is a
// copy taken when it was pushed, so it goes stale once the inbox marks
// the record read.
type UnreadCheck func(ctx context.Context, id int64) bool

// Opener hands a notification link to the host environment.
type Opener interface {
	Open(url string) error
}

// Options configures a Queue.
type Options struct {
	Duration  time.Duration
	AfterFunc AfterFunc
	MarkRead  ReadMarker
	Unread    UnreadCheck
	Opener    Opener
	Logger    *slog.Logger
}

// entry is one displayed toast. The pointer identity lets a timer that
// fires late tell whether its entry is still the one in the queue.
type entry struct {
	notification model.Notification
	timer        Timer
}

// Queue is an ordered, id-deduplicated list of toasts, each with its own
// auto-dismiss timer. It never touches the notification store.
type Queue struct {
	duration  time.Duration
	afterFunc AfterFunc
	markRead  ReadMarker
	unread    UnreadCheck
	opener    Opener
	logger    *slog.Logger

	mu       gosync.Mutex
	entries  []*entry
	closed   bool
	onChange []func()
}

// NewQueue creates an empty Queue.
func NewQueue(opts Options) *Queue {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Queue{
		duration:  opts.Duration,
		afterFunc: opts.AfterFunc,
		markRead:  opts.MarkRead,
		unread:    opts.Unread,
		opener:    opts.Opener,
		logger:    opts.Logger.With("component", "toast"),
	}
}

// OnChange registers fn to run after every change to the queue.
// fn runs without the queue lock held.
func (q *Queue) OnChange(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onChange = append(q.onChange, fn)
}

// Push appends toasts for records whose id is not already queued and
// returns how many were added.
func (q *Queue) Push(records ...model.Notification) int {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}

	added := 0
	for _, n := range records {
		if q.indexLocked(n.ID) >= 0 {
			continue
		}
		e := &entry{notification: n}
		e.timer = q.afterFunc(q.duration, func() { q.expire(e) })
		q.entries = append(q.entries, e)
		added++
	}
	q.mu.Unlock()

	if added > 0 {
		metrics.ToastEvents.WithLabelValues("shown").Add(float64(added))
		q.changed()
	}
	return added
}

// Dismiss removes the toast for id and stops its timer.
func (q *Queue) Dismiss(id int64) bool {
	if !q.remove(id) {
		return false
	}
	metrics.ToastEvents.WithLabelValues("dismissed").Inc()
	q.changed()
	return true
}

// Click runs the toast's action: an unread record is marked read, a link
// is handed to the opener, and the toast is dismissed either way. The
// returned error is the mark-read failure, if any.
func (q *Queue) Click(ctx context.Context, id int64) error {
	q.mu.Lock()
	i := q.indexLocked(id)
	if i < 0 {
		q.mu.Unlock()
		return nil
	}
	n := q.entries[i].notification
	q.mu.Unlock()

	unread := n.IsUnread()
	if unread && q.unread != nil {
		unread = q.unread(ctx, id)
	}

	var markErr error
	if unread && q.markRead != nil {
		if markErr = q.markRead(ctx, id); markErr != nil {
			q.logger.Warn("marking toast as read", "id", id, "error", markErr)
		}
	}

	if n.URL != "" && q.opener != nil {
		if err := q.opener.Open(n.URL); err != nil {
			q.logger.Warn("opening notification link", "id", id, "url", n.URL, "error", err)
		}
	}

	if q.remove(id) {
		metrics.ToastEvents.WithLabelValues("clicked").Inc()
		q.changed()
	}
	return markErr
}

// Entries returns the queued notifications, oldest first.
func (q *Queue) Entries() []model.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.Notification, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.notification
	}
	return out
}

// Visible returns at most limit of the newest toasts, newest first.
func (q *Queue) Visible(limit int) []model.Notification {
	all := q.Entries()
	out := make([]model.Notification, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out
}

// Newest returns the most recently added toast.
func (q *Queue) Newest() (model.Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return model.Notification{}, false
	}
	return q.entries[len(q.entries)-1].notification, true
}

// Len returns the number of queued toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear drops every toast and stops their timers. The queue stays usable.
func (q *Queue) Clear() {
	q.mu.Lock()
	had := len(q.entries) > 0
	q.stopAllLocked()
	q.mu.Unlock()

	if had {
		q.changed()
	}
}

// Close stops every timer and rejects further pushes.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.stopAllLocked()
}

func (q *Queue) stopAllLocked() {
	for _, e := range q.entries {
		e.timer.Stop()
	}
	q.entries = nil
}

// expire is the timer callback for e.
func (q *Queue) expire(e *entry) {
	q.mu.Lock()
	i := -1
	for j, cur := range q.entries {
		if cur == e {
			i = j
			break
		}
	}
	if i < 0 {
		q.mu.Unlock()
		return
	}
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	q.mu.Unlock()

	metrics.ToastEvents.WithLabelValues("expired").Inc()
	q.changed()
}

// remove drops the entry for id and stops its timer.
func (q *Queue) remove(id int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexLocked(id)
	if i < 0 {
		return false
	}
	q.entries[i].timer.Stop()
	q.entries = append(q.entries[:i], q.entries[i+1:]...)
	return true
}

func (q *Queue) indexLocked(id int64) int {
	for i, e := range q.entries {
		if e.notification.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) changed() {
	q.mu.Lock()
	fns := append([]func(){}, q.onChange...)
	q.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
