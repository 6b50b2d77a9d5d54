package store

import (
	"context"
	"time"

	"github.com/nhle/claims-inbox/internal/model"
)

// Partition names the two disjoint collections a notification can live in.
type Partition string

const (
	PartitionActive Partition = "active"
	PartitionTrash  Partition = "trash"
)

// Store defines the local notification cache. Every collection is scoped
// to a user; an id lives in at most one partition per user.
//
// Only the sync engine (ReplaceAll) and the inbox manager (targeted
// mutations) write to it.
type Store interface {
	// === Active partition ===

	// ReplaceAll installs a full snapshot of the active partition. Local
	// read flags not reflected in records are overwritten.
	ReplaceAll(ctx context.Context, userID string, records []model.Notification) error
	Active(ctx context.Context, userID string) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)

	// MarkRead sets read and read_at on an unread active record. It
	// reports false when the record is missing or already read.
	MarkRead(ctx context.Context, userID string, id int64, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID string, ids []int64, at time.Time) (int, error)

	// RemoveFromActive deletes an active record and returns it, or nil
	// when it was not present.
	RemoveFromActive(ctx context.Context, userID string, id int64) (*model.Notification, error)

	// AddToActive inserts a record unless its id is already active.
	AddToActive(ctx context.Context, userID string, record model.Notification) (bool, error)
	ClearActive(ctx context.Context, userID string) error

	// === Trash partition ===

	ReplaceTrash(ctx context.Context, userID string, records []model.Notification) error
	AddToTrash(ctx context.Context, userID string, record model.Notification) error
	Trash(ctx context.Context, userID string) ([]model.Notification, error)
}
