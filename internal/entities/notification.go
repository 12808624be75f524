package entities

import "time"

const NotificationTypeOrder = "order"

// Notification is an outbox row: appended in the same transaction as the
// state change it announces, delivered to the sink asynchronously.
type Notification struct {
	ID        int64
	UserID    string
	Type      string
	Title     string
	Message   string
	CreatedAt time.Time
	SentAt    *time.Time
}
