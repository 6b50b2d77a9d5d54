package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/claims-inbox/internal/model"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

// notificationColumns is the projection scanned into model.Notification.
const notificationColumns = `
	id, user_id, title, message, type, created_at,
	read, read_at, action, url, metadata`

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:"
	// databases from splitting across pooled connections.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// ReplaceAll swaps the user's active partition for records in a single
// transaction. A record whose id sits in the trash moves back to active.
func (s *SQLiteStore) ReplaceAll(
	ctx context.Context,
	userID string,
	records []model.Notification,
) error {
	return s.replacePartition(ctx, userID, PartitionActive, records)
}

// ReplaceTrash swaps the user's trash partition for records.
func (s *SQLiteStore) ReplaceTrash(
	ctx context.Context,
	userID string,
	records []model.Notification,
) error {
	return s.replacePartition(ctx, userID, PartitionTrash, records)
}

func (s *SQLiteStore) replacePartition(
	ctx context.Context,
	userID string,
	partition Partition,
	records []model.Notification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = ? AND folder = ?",
		userID, string(partition),
	); err != nil {
		return fmt.Errorf("clearing %s for %s: %w", partition, userID, err)
	}

	stmt, err := tx.PreparexContext(ctx, upsertQuery)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, n := range records {
		if _, err := stmt.ExecContext(ctx, upsertArgs(userID, partition, n)...); err != nil {
			return fmt.Errorf("upserting notification %d: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// Active returns the user's active notifications, newest first.
func (s *SQLiteStore) Active(
	ctx context.Context,
	userID string,
) ([]model.Notification, error) {
	return s.list(ctx, userID, PartitionActive)
}

// Trash returns the user's trashed notifications, newest first.
func (s *SQLiteStore) Trash(
	ctx context.Context,
	userID string,
) ([]model.Notification, error) {
	return s.list(ctx, userID, PartitionTrash)
}

func (s *SQLiteStore) list(
	ctx context.Context,
	userID string,
	partition Partition,
) ([]model.Notification, error) {
	query := "SELECT " + notificationColumns + ` FROM notifications
		WHERE user_id = ? AND folder = ?
		ORDER BY created_at DESC, id DESC`

	notifications := []model.Notification{}
	if err := s.db.SelectContext(ctx, &notifications, query, userID, string(partition)); err != nil {
		return nil, fmt.Errorf("querying %s notifications: %w", partition, err)
	}
	return notifications, nil
}

// UnreadCount counts unread records in the active partition.
func (s *SQLiteStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE user_id = ? AND folder = 'active' AND read = 0",
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips read on an unread active record. read_at is written only
// on that transition, so repeated calls leave it untouched.
func (s *SQLiteStore) MarkRead(
	ctx context.Context,
	userID string,
	id int64,
	at time.Time,
) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1, read_at = ?
		WHERE user_id = ? AND id = ? AND folder = 'active' AND read = 0`,
		at.UTC(), userID, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	return n > 0, nil
}

// MarkAllRead applies MarkRead to every id in one transaction and returns
// how many records changed.
func (s *SQLiteStore) MarkAllRead(
	ctx context.Context,
	userID string,
	ids []int64,
	at time.Time,
) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := sqlx.In(`
		UPDATE notifications SET read = 1, read_at = ?
		WHERE user_id = ? AND folder = 'active' AND read = 0 AND id IN (?)`,
		at.UTC(), userID, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("building mark-all query: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("marking notifications as read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking notifications as read: %w", err)
	}

	return int(n), tx.Commit()
}

// RemoveFromActive deletes an active record and returns what was removed.
func (s *SQLiteStore) RemoveFromActive(
	ctx context.Context,
	userID string,
	id int64,
) (*model.Notification, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var n model.Notification
	err = tx.GetContext(ctx, &n,
		"SELECT "+notificationColumns+" FROM notifications WHERE user_id = ? AND id = ? AND folder = 'active'",
		userID, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = ? AND id = ? AND folder = 'active'",
		userID, id,
	); err != nil {
		return nil, fmt.Errorf("removing notification %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing removal of %d: %w", id, err)
	}
	return &n, nil
}

// AddToActive inserts record into the active partition unless the id is
// already active. A trashed copy is moved.
func (s *SQLiteStore) AddToActive(
	ctx context.Context,
	userID string,
	record model.Notification,
) (bool, error) {
	res, err := s.db.ExecContext(ctx, upsertQuery+`
		WHERE NOT EXISTS (
			SELECT 1 FROM notifications WHERE user_id = ? AND id = ? AND folder = 'active'
		)`,
		append(upsertArgs(userID, PartitionActive, record), userID, record.ID)...,
	)
	if err != nil {
		return false, fmt.Errorf("adding notification %d: %w", record.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("adding notification %d: %w", record.ID, err)
	}
	return n > 0, nil
}

// AddToTrash puts record in the trash partition, moving it out of active
// if present there.
func (s *SQLiteStore) AddToTrash(
	ctx context.Context,
	userID string,
	record model.Notification,
) error {
	if _, err := s.db.ExecContext(ctx, upsertQuery, upsertArgs(userID, PartitionTrash, record)...); err != nil {
		return fmt.Errorf("trashing notification %d: %w", record.ID, err)
	}
	return nil
}

// ClearActive deletes the user's whole active partition.
func (s *SQLiteStore) ClearActive(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = ? AND folder = 'active'",
		userID,
	); err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", userID, err)
	}
	return nil
}

// upsertQuery writes one notification row; the (user_id, id) key keeps the
// partitions disjoint.
const upsertQuery = `
	INSERT OR REPLACE INTO notifications (
		user_id, id, folder,
		title, message, type, created_at,
		read, read_at, action, url, metadata
	) SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

// upsertArgs returns the positional arguments for upsertQuery.
func upsertArgs(userID string, partition Partition, n model.Notification) []interface{} {
	var readAt interface{}
	if n.ReadAt != nil {
		readAt = n.ReadAt.UTC()
	}
	return []interface{}{
		userID, n.ID, string(partition),
		n.Title, n.Message, string(n.Type), n.CreatedAt.UTC(),
		boolToInt(n.Read), readAt, n.Action, n.URL, n.Metadata,
	}
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
