package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nhle/claims-inbox/internal/gateway"
	"github.com/nhle/claims-inbox/internal/metrics"
	"github.com/nhle/claims-inbox/internal/model"
	"github.com/nhle/claims-inbox/internal/store"
)

const (
	CommandMarkRead    = "mark-read"
	CommandMarkAllRead = "mark-all-read"
	CommandDelete      = "delete"
	CommandDeleteAll   = "delete-all"
	CommandRestore     = "restore"
	CommandLoadTrash   = "load-trash"
)

// Identity yields the signed-in username, or "" when nobody is signed in.
type Identity interface {
	UserID() string
}

// Syncer is the part of the sync engine the inbox drives.
type Syncer interface {
	// Refresh polls the active list. Ids in quiet are never announced by
	// that poll.
	Refresh(ctx context.Context, quiet ...int64) error
	// RecountUnread republishes the unread count from the store.
	RecountUnread(ctx context.Context)
}

// Options tunes a Manager.
type Options struct {
	// MarkAllRate paces mark-all-as-read, in calls per second.
	MarkAllRate float64

	// BulkMarkAll sends one read-all call instead of one call per id.
	BulkMarkAll bool

	Logger *slog.Logger
}

// Manager implements the read and trash commands. Every command calls the
// platform first and mutates the store only for what was acknowledged.
type Manager struct {
	gateway  gateway.Gateway
	store    store.Store
	sync     Syncer
	identity Identity
	limiter  *rate.Limiter
	bulk     bool
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a Manager.
func NewManager(
	gw gateway.Gateway,
	s store.Store,
	syncer Syncer,
	identity Identity,
	opts Options,
) *Manager {
	if opts.MarkAllRate <= 0 {
		opts.MarkAllRate = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		gateway:  gw,
		store:    s,
		sync:     syncer,
		identity: identity,
		limiter:  rate.NewLimiter(rate.Limit(opts.MarkAllRate), 1),
		bulk:     opts.BulkMarkAll,
		logger:   opts.Logger.With("component", "inbox"),
		now:      time.Now,
	}
}

// MarkAsRead acknowledges id remotely, then marks it read locally. Marking
// an already read record again leaves read_at as it was.
func (m *Manager) MarkAsRead(ctx context.Context, id int64) Result {
	user, res, ok := m.begin(CommandMarkRead)
	if !ok {
		return res
	}

	if err := m.gateway.MarkRead(ctx, id, user); err != nil {
		return m.fail(res, err, "id", id)
	}

	if _, err := m.store.MarkRead(ctx, user, id, m.now()); err != nil {
		return m.fail(res, err, "id", id)
	}

	res.IDs = []int64{id}
	return m.applied(ctx, res)
}

// MarkAllAsRead acknowledges every unread active notification, one call
// per id, and marks read locally only the ids the platform acknowledged.
// Ids whose call failed stay unread and are reported in FailedIDs.
func (m *Manager) MarkAllAsRead(ctx context.Context) Result {
	user, res, ok := m.begin(CommandMarkAllRead)
	if !ok {
		return res
	}

	active, err := m.store.Active(ctx, user)
	if err != nil {
		return m.fail(res, err)
	}
	var unread []int64
	for _, n := range active {
		if n.IsUnread() {
			unread = append(unread, n.ID)
		}
	}
	if len(unread) == 0 {
		return m.applied(ctx, res)
	}

	if m.bulk {
		if err := m.gateway.MarkAllRead(ctx, user); err != nil {
			return m.fail(res, err)
		}
		if _, err := m.store.MarkAllRead(ctx, user, unread, m.now()); err != nil {
			return m.fail(res, err)
		}
		res.IDs = unread
		return m.applied(ctx, res)
	}

	var (
		acked []int64
		errs  []error
	)
	for _, id := range unread {
		if err := m.limiter.Wait(ctx); err != nil {
			// Canceled: the rest were never sent.
			res.FailedIDs = append(res.FailedIDs, id)
			errs = append(errs, err)
			continue
		}
		if err := m.gateway.MarkRead(ctx, id, user); err != nil {
			m.logger.Warn("acknowledging notification", "id", id, "error", err)
			res.FailedIDs = append(res.FailedIDs, id)
			errs = append(errs, err)
			continue
		}
		acked = append(acked, id)
	}

	if len(acked) > 0 {
		if _, err := m.store.MarkAllRead(ctx, user, acked, m.now()); err != nil {
			return m.fail(res, err)
		}
	}
	res.IDs = acked

	if len(res.FailedIDs) == 0 {
		return m.applied(ctx, res)
	}

	res.Err = fmt.Errorf(
		"%d of %d acknowledgements failed: %w",
		len(res.FailedIDs), len(unread), errors.Join(errs...),
	)
	if len(acked) == 0 {
		res.Status = Failed
		metrics.CommandCount.WithLabelValues(res.Command, res.Status.String()).Inc()
		return res
	}

	res.Status = Partial
	m.logger.Warn("mark all as read partly applied",
		"acknowledged", len(acked), "failed", len(res.FailedIDs))
	metrics.CommandCount.WithLabelValues(res.Command, res.Status.String()).Inc()
	m.sync.RecountUnread(ctx)
	return res
}

// Delete trashes id remotely, then moves it from active to trash locally
// with all its fields. Action is left as it was: the trash partition
// already says the record is deleted, and the next trash load brings the
// platform's own copy.
func (m *Manager) Delete(ctx context.Context, id int64) Result {
	user, res, ok := m.begin(CommandDelete)
	if !ok {
		return res
	}

	if err := m.gateway.Delete(ctx, id, user); err != nil {
		return m.fail(res, err, "id", id)
	}

	removed, err := m.store.RemoveFromActive(ctx, user, id)
	if err != nil {
		return m.fail(res, err, "id", id)
	}
	if removed != nil {
		if err := m.store.AddToTrash(ctx, user, *removed); err != nil {
			return m.fail(res, err, "id", id)
		}
	}

	res.IDs = []int64{id}
	return m.applied(ctx, res)
}

// DeleteAll removes every notification remotely in one call, then clears
// the local active list. The trash is reconciled on the next trash load.
func (m *Manager) DeleteAll(ctx context.Context) Result {
	user, res, ok := m.begin(CommandDeleteAll)
	if !ok {
		return res
	}

	active, err := m.store.Active(ctx, user)
	if err != nil {
		return m.fail(res, err)
	}

	if err := m.gateway.DeleteAll(ctx, user); err != nil {
		return m.fail(res, err)
	}
	if err := m.store.ClearActive(ctx, user); err != nil {
		return m.fail(res, err)
	}

	res.IDs = model.IDs(active)
	return m.applied(ctx, res)
}

// Restore brings id back from the trash remotely, then reloads both the
// active list and the trash from the platform instead of splicing
// locally. The reload does not announce id itself; anything else that
// arrived meanwhile is announced as usual.
func (m *Manager) Restore(ctx context.Context, id int64) Result {
	user, res, ok := m.begin(CommandRestore)
	if !ok {
		return res
	}

	if err := m.gateway.Restore(ctx, id, user); err != nil {
		return m.fail(res, err, "id", id)
	}
	res.IDs = []int64{id}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := m.sync.Refresh(gctx, id); err != nil {
			return fmt.Errorf("reloading inbox: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return m.reloadTrash(gctx, user)
	})

	if err := g.Wait(); err != nil {
		// The platform restored it; only our copy is behind until the
		// next poll.
		res.Status = Partial
		res.Err = err
		m.logger.Warn("reload after restore", "id", id, "error", err)
		metrics.CommandCount.WithLabelValues(res.Command, res.Status.String()).Inc()
		m.sync.RecountUnread(ctx)
		return res
	}

	return m.applied(ctx, res)
}

// LoadTrash fetches the trash from the platform and installs it locally.
func (m *Manager) LoadTrash(ctx context.Context) Result {
	user, res, ok := m.begin(CommandLoadTrash)
	if !ok {
		return res
	}

	if err := m.reloadTrash(ctx, user); err != nil {
		return m.fail(res, err)
	}
	return m.applied(ctx, res)
}

// IsUnread reports whether id is an unread record in the local active
// list of the signed-in user.
func (m *Manager) IsUnread(ctx context.Context, id int64) bool {
	user := m.identity.UserID()
	if user == "" {
		return false
	}
	active, err := m.store.Active(ctx, user)
	if err != nil {
		m.logger.Warn("looking up notification", "id", id, "error", err)
		return true
	}
	for _, n := range active {
		if n.ID == id {
			return n.IsUnread()
		}
	}
	return false
}

// ServerUnreadCount asks the platform for its unread counter.
func (m *Manager) ServerUnreadCount(ctx context.Context) (int, error) {
	user := m.identity.UserID()
	if user == "" {
		return 0, gateway.ErrNoUser
	}
	return m.gateway.FetchUnreadCount(ctx, user)
}

func (m *Manager) reloadTrash(ctx context.Context, user string) error {
	trash, err := m.gateway.FetchTrashed(ctx, user)
	if err != nil {
		return err
	}
	if err := m.store.ReplaceTrash(ctx, user, trash); err != nil {
		return fmt.Errorf("installing trash: %w", err)
	}
	return nil
}

// begin resolves the signed-in user. Without one the command is skipped.
func (m *Manager) begin(command string) (string, Result, bool) {
	res := Result{Command: command}
	user := m.identity.UserID()
	if user == "" {
		res.Status = Skipped
		m.logger.Debug("command skipped without a signed-in user", "command", command)
		metrics.CommandCount.WithLabelValues(command, res.Status.String()).Inc()
		return "", res, false
	}
	return user, res, true
}

func (m *Manager) fail(res Result, err error, attrs ...any) Result {
	res.Status = Failed
	res.Err = err
	res.IDs = nil
	m.logger.Warn(res.Command+" failed", append(attrs, "error", err)...)
	metrics.CommandCount.WithLabelValues(res.Command, res.Status.String()).Inc()
	return res
}

func (m *Manager) applied(ctx context.Context, res Result) Result {
	res.Status = Applied
	metrics.CommandCount.WithLabelValues(res.Command, res.Status.String()).Inc()
	m.sync.RecountUnread(ctx)
	return res
}
