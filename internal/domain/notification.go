package domain

import "time"

type NotificationStatus string

const (
	NotificationPending NotificationStatus = "PENDING"
	NotificationSent    NotificationStatus = "SENT"
	NotificationFailed  NotificationStatus = "FAILED"
)

// Notification records a single delivery attempt for a reminder.
type Notification struct {
	ID         string
	ReminderID string
	Status     NotificationStatus
	Error      string
	SentAt     *time.Time
	CreatedAt  time.Time
}
