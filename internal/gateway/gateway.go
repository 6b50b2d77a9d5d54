package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/claims-inbox/internal/model"
)

// ErrNoUser is returned without issuing a request when a call is made
// with an empty user identity.
var ErrNoUser = errors.New("no signed-in user")

// ErrRejected is returned when the platform answers {"success": false}.
var ErrRejected = errors.New("request rejected by server")

// AuthError indicates that authentication has failed or expired.
// It is returned when the platform answers 401.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Gateway defines the remote notification contract. Every call is keyed by
// the signed-in username.
type Gateway interface {
	// FetchActive returns the user's non-trashed notifications, newest first.
	FetchActive(ctx context.Context, userID string) ([]model.Notification, error)

	// FetchTrashed returns the user's soft-deleted notifications.
	FetchTrashed(ctx context.Context, userID string) ([]model.Notification, error)

	// FetchUnreadCount returns the server-side unread counter.
	FetchUnreadCount(ctx context.Context, userID string) (int, error)

	// MarkRead acknowledges a single notification as read.
	MarkRead(ctx context.Context, id int64, userID string) error

	// MarkAllRead acknowledges every unread notification in one call.
	MarkAllRead(ctx context.Context, userID string) error

	// Delete moves a notification to the trash.
	Delete(ctx context.Context, id int64, userID string) error

	// DeleteAll removes every notification of the user.
	DeleteAll(ctx context.Context, userID string) error

	// Restore moves a notification from the trash back to the inbox.
	Restore(ctx context.Context, id int64, userID string) error
}

// Authenticator signs a user in against the platform.
type Authenticator interface {
	Login(ctx context.Context, username, company, password string) (*model.User, error)
}
