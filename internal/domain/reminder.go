package domain

import "time"

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "PENDING"
	ReminderSent      ReminderStatus = "SENT"
	ReminderFailed    ReminderStatus = "FAILED"
	ReminderCancelled ReminderStatus = "CANCELLED"
)

// Reminder is the durable entity. EventAt is the real-world moment the user
// asked to be reminded about; NotifyAt = EventAt - AdvanceMinutes and is what
// the scheduler acts on. Status moves PENDING -> SENT/FAILED/CANCELLED and
// never leaves a terminal state. Rows are kept for listing, never deleted.
type Reminder struct {
	ID             string
	UserID         string
	Message        string
	EventAt        time.Time
	NotifyAt       time.Time
	AdvanceMinutes int
	Status         ReminderStatus
	CreatedAt      time.Time
}

func (r *Reminder) IsTerminal() bool {
	return r.Status != ReminderPending
}
