package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/claims-inbox/internal/gateway"
	"github.com/nhle/claims-inbox/internal/metrics"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/store"
)

// SyncState represents the current state of the poll loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus holds the sync state of the current session.
type SyncStatus struct {
	User     string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a poll completes.
type SyncResultMsg struct {
	User      string
	NewUnread []model.Notification
	Unread    int
	Error     error
	AuthError *AuthErrorMsg
}

// UnreadCountMsg is a tea.Msg sent when the unread count changes outside
// of a poll (after an inbox command).
type UnreadCountMsg struct {
	User  string
	Count int
}

// AuthErrorMsg is a tea.Msg sent when the platform rejects the session.
type AuthErrorMsg struct {
	User    string
	Message string
}

// ErrStale is returned by Refresh when the session it was issued for was
// replaced or stopped before the poll could be installed.
var ErrStale = errors.New("poll superseded")

const (
	defaultPollInterval = 30 * time.Second
	defaultFetchTimeout = 30 * time.Second
)

// Options tunes an Engine. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// pollRequest asks the session loop for an out-of-band poll.
type pollRequest struct {
	quiet []int64
	reply chan error
}

// session is the per-user polling state. baseline and primed are touched
// only by the session's loop goroutine and by install, which runs there.
type session struct {
	user     string
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	requests chan pollRequest
	done     chan struct{}

	baseline Baseline
	primed   bool
}

// Engine keeps the local Active partition in step with the platform by
// polling it on a fixed interval, and announces newly arrived unread
// notifications. Polls of a session never overlap.
type Engine struct {
	gateway      gateway.Gateway
	store        store.Store
	logger       *slog.Logger
	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu          gosync.Mutex
	running     bool
	user        string
	generation  uint64
	session     *session
	status      SyncStatus
	unread      int
	onNewUnread []func([]model.Notification)
	onUnread    []func(int)
	resultCh    chan tea.Msg
}

// New creates an Engine over the given gateway and store.
func New(gw gateway.Gateway, s store.Store, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		gateway:      gw,
		store:        s,
		logger:       opts.Logger.With("component", "sync"),
		interval:     opts.PollInterval,
		fetchTimeout: opts.FetchTimeout,
		now:          time.Now,
		resultCh:     make(chan tea.Msg, 16),
	}
}

// OnNewUnread registers fn to receive newly arrived unread notifications.
// fn runs on the poll goroutine and must not block.
func (e *Engine) OnNewUnread(fn func([]model.Notification)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onNewUnread = append(e.onNewUnread, fn)
}

// OnUnreadCount registers fn to receive every republished unread count.
func (e *Engine) OnUnreadCount(fn func(int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUnread = append(e.onUnread, fn)
}

// Start begins polling for the current user, if any, and returns a
// tea.Cmd that waits for the first result.
func (e *Engine) Start() tea.Cmd {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	if e.user != "" {
		e.startSessionLocked()
	}
	e.mu.Unlock()

	return e.waitForResult()
}

// Stop cancels the pending interval and any in-flight fetch. Results that
// arrive afterwards are discarded. Stop waits for the loop to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	old := e.endSessionLocked()
	e.mu.Unlock()

	if old != nil {
		<-old.done
	}
}

// SetUser switches the engine to userID. The previous session is torn
// down and the next successful fetch for userID installs silently. An
// empty userID leaves the engine idle.
func (e *Engine) SetUser(userID string) {
	e.mu.Lock()
	if userID == e.user && (e.session != nil || !e.running) {
		e.mu.Unlock()
		return
	}
	old := e.endSessionLocked()
	e.user = userID
	e.unread = 0
	e.status = SyncStatus{User: userID, State: SyncIdle}
	if e.running && userID != "" {
		e.startSessionLocked()
	}
	e.mu.Unlock()

	if old != nil {
		<-old.done
	}
	e.logger.Info("user changed", "user", userID)
	e.publishUnread(0)
}

// User returns the identity the engine currently polls for.
func (e *Engine) User() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user
}

// Status returns the sync status of the current session.
func (e *Engine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// UnreadCount returns the last published unread count.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread
}

// Refresh runs a poll through the session loop and waits for it. Ids in
// quiet are treated as part of the previous snapshot, so they are never
// announced by this poll; every other new unread record still is.
func (e *Engine) Refresh(ctx context.Context, quiet ...int64) error {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return gateway.ErrNoUser
	}

	req := pollRequest{quiet: quiet, reply: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-s.done:
		return ErrStale
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrStale
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshAll triggers an immediate poll without waiting for it.
func (e *Engine) RefreshAll() tea.Cmd {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return nil
	}

	select {
	case s.requests <- pollRequest{}:
	default:
		// A poll is already queued.
	}
	return nil
}

// RecountUnread republishes the unread count from the store. The inbox
// calls it after every applied command.
func (e *Engine) RecountUnread(ctx context.Context) {
	e.mu.Lock()
	user := e.user
	e.mu.Unlock()
	if user == "" {
		return
	}

	count, err := e.store.UnreadCount(ctx, user)
	if err != nil {
		e.logger.Warn("counting unread notifications", "user", user, "error", err)
		return
	}

	e.mu.Lock()
	if e.user != user {
		e.mu.Unlock()
		return
	}
	e.unread = count
	e.mu.Unlock()

	e.publishUnread(count)
	e.sendResult(UnreadCountMsg{User: user, Count: count})
}

// WaitForNextResult returns a tea.Cmd that waits for the next engine
// message. Call it after handling each SyncResultMsg or UnreadCountMsg.
func (e *Engine) WaitForNextResult() tea.Cmd {
	return e.waitForResult()
}

// startSessionLocked launches a loop for e.user. e.mu must be held.
func (e *Engine) startSessionLocked() {
	e.generation++
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		user:     e.user,
		gen:      e.generation,
		ctx:      ctx,
		cancel:   cancel,
		requests: make(chan pollRequest, 1),
		done:     make(chan struct{}),
	}
	e.session = s
	go e.run(s)
}

// endSessionLocked cancels the current session and returns it so the
// caller can wait for its loop after releasing e.mu.
func (e *Engine) endSessionLocked() *session {
	e.generation++
	old := e.session
	e.session = nil
	if old != nil {
		old.cancel()
	}
	return old
}

// run is the session loop. Every poll, scheduled or requested, happens
// here so two polls of a session are never in flight together.
func (e *Engine) run(s *session) {
	defer close(s.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	// Do an initial fetch immediately
	_ = e.poll(s, nil)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_ = e.poll(s, nil)
		case req := <-s.requests:
			err := e.poll(s, req.quiet)
			if req.reply != nil {
				req.reply <- err
			}
		}
	}
}

// poll fetches one snapshot and installs it if the session is still
// current.
func (e *Engine) poll(s *session, quiet []int64) error {
	if s.ctx.Err() != nil {
		return ErrStale
	}
	e.setState(s, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(s.ctx, e.fetchTimeout)
	defer cancel()

	start := time.Now()
	snapshot, err := e.gateway.FetchActive(ctx, s.user)
	metrics.PollDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if !e.isCurrent(s) {
			metrics.PollCount.WithLabelValues("stale").Inc()
			return ErrStale
		}
		metrics.PollCount.WithLabelValues("error").Inc()
		e.logger.Warn("poll failed", "user", s.user, "error", err)
		e.setState(s, SyncError, err)

		msg := SyncResultMsg{User: s.user, Error: err}
		if gateway.IsAuthError(err) {
			msg.AuthError = &AuthErrorMsg{
				User:    s.user,
				Message: fmt.Sprintf("%s: session expired. Press 'L' to sign in again.", s.user),
			}
		}
		e.sendResult(msg)
		return err
	}

	fresh, unread, err := e.install(s, snapshot, quiet)
	if err != nil {
		return err
	}

	if len(fresh) > 0 {
		metrics.NewUnread.Add(float64(len(fresh)))
		e.logger.Info("new unread notifications", "user", s.user, "count", len(fresh))
	}
	metrics.PollCount.WithLabelValues("ok").Inc()

	e.announce(s, fresh)
	e.publishUnread(unread)
	e.sendResult(SyncResultMsg{User: s.user, NewUnread: fresh, Unread: unread})
	return nil
}

// install writes snapshot to the store and moves the baseline. It holds
// e.mu across the write so a session that was replaced meanwhile cannot
// write back.
func (e *Engine) install(
	s *session,
	snapshot []model.Notification,
	quiet []int64,
) ([]model.Notification, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.gen != e.generation || s.ctx.Err() != nil {
		metrics.PollCount.WithLabelValues("stale").Inc()
		return nil, 0, ErrStale
	}

	var fresh []model.Notification
	if s.primed {
		for _, id := range quiet {
			s.baseline[id] = struct{}{}
		}
		fresh = Reconcile(s.baseline, snapshot)
	}

	if err := e.store.ReplaceAll(s.ctx, s.user, snapshot); err != nil {
		e.logger.Warn("installing snapshot", "user", s.user, "error", err)
		e.setStateLocked(SyncError, err)
		metrics.PollCount.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("installing snapshot: %w", err)
	}

	// The store drops duplicate ids, so count what it kept.
	unread, err := e.store.UnreadCount(s.ctx, s.user)
	if err != nil {
		e.logger.Warn("counting unread notifications", "user", s.user, "error", err)
		unread = model.UnreadCount(Dedupe(snapshot))
	}

	s.baseline = NewBaseline(snapshot)
	s.primed = true
	e.unread = unread
	e.setStateLocked(SyncIdle, nil)

	return fresh, e.unread, nil
}

// announce hands fresh to the OnNewUnread subscribers unless s was
// replaced after its snapshot was installed.
func (e *Engine) announce(s *session, fresh []model.Notification) {
	if len(fresh) == 0 {
		return
	}
	e.mu.Lock()
	if s.gen != e.generation || s.ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	subs := append([]func([]model.Notification){}, e.onNewUnread...)
	e.mu.Unlock()

	for _, fn := range subs {
		fn(fresh)
	}
}

// isCurrent reports whether s is still the engine's live session.
func (e *Engine) isCurrent(s *session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.gen == e.generation && s.ctx.Err() == nil
}

// setState updates the sync status if s is still current.
func (e *Engine) setState(s *session, state SyncState, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s.gen != e.generation {
		return
	}
	e.setStateLocked(state, err)
}

func (e *Engine) setStateLocked(state SyncState, err error) {
	e.status.State = state
	e.status.Error = err
	if state == SyncIdle && err == nil {
		e.status.LastSync = e.now()
	}
}

func (e *Engine) publishUnread(count int) {
	metrics.UnreadGauge.Set(float64(count))

	e.mu.Lock()
	subs := append([]func(int){}, e.onUnread...)
	e.mu.Unlock()
	for _, fn := range subs {
		fn(count)
	}
}

// sendResult sends msg on the result channel without blocking.
func (e *Engine) sendResult(msg tea.Msg) {
	select {
	case e.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poll loop
	}
}

// waitForResult returns a tea.Cmd that waits for the next message from
// the result channel.
func (e *Engine) waitForResult() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-e.resultCh
		if !ok {
			return nil
		}
		return msg
	}
}
