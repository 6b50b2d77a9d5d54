package model

import "time"

// NotificationType is the category the platform attaches to a notification.
// It only drives presentation (icon, colour).
type NotificationType string

const (
	TypeCaseCreated               NotificationType = "CASE_CREATED"
	TypeCaseStatusChanged         NotificationType = "CASE_STATUS_CHANGED"
	TypeReportCreated             NotificationType = "REPORT_CREATED"
	TypeReportRequestToOwner      NotificationType = "REPORT_REQUEST_TO_OWNER"
	TypeReportRequestConfirmation NotificationType = "REPORT_REQUEST_CONFIRMATION"
	TypeValidationCodeGenerated   NotificationType = "VALIDATION_CODE_GENERATED"
	TypeReportDownloaded          NotificationType = "REPORT_DOWNLOADED"
	TypeDownloadCompleted         NotificationType = "DOWNLOAD_COMPLETED"
)

// Notification is a single inbox entry as delivered by the platform.
// Records are created remotely; the client only ever flips Read.
type Notification struct {
	// ID is unique within the owner's notification space.
	ID int64 `json:"id" db:"id"`

	// UserID is the username the notification belongs to.
	UserID string `json:"userId" db:"user_id"`

	Title   string           `json:"title" db:"title"`
	Message string           `json:"message" db:"message"`
	Type    NotificationType `json:"type" db:"type"`

	// CreatedAt is when the platform generated the notification.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// Read only ever transitions from false to true while the record is active.
	Read bool `json:"read" db:"read"`

	// ReadAt is set once, when Read becomes true.
	ReadAt *time.Time `json:"readAt,omitempty" db:"read_at"`

	// Action, URL and Metadata are opaque to the client.
	Action   string `json:"action,omitempty" db:"action"`
	URL      string `json:"url,omitempty" db:"url"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`
}

// IsUnread reports whether the notification still needs attention.
func (n Notification) IsUnread() bool {
	return !n.Read
}

// UnreadCount returns how many of the given notifications are unread.
func UnreadCount(ns []Notification) int {
	count := 0
	for _, n := range ns {
		if !n.Read {
			count++
		}
	}
	return count
}

// IDs returns the ids of ns in order.
func IDs(ns []Notification) []int64 {
	ids := make([]int64, len(ns))
	for i, n := range ns {
		ids[i] = n.ID
	}
	return ids
}
