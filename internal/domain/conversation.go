package domain

import "time"

type ConversationState string

const (
	StateInitial               ConversationState = "INITIAL"
	StateAwaitingMoment        ConversationState = "AWAITING_MOMENT"
	StateAwaitingLeadTime      ConversationState = "AWAITING_LEAD_TIME"
	StateConfirming            ConversationState = "CONFIRMING"
	StateConfirmingDelete      ConversationState = "CONFIRMING_DELETE"
	StateSelectingDeleteTarget ConversationState = "SELECTING_DELETE_TARGET"
)

// Turn is one entry of the conversation history kept as extractor context.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
	At      time.Time
}

// DeleteCandidate is one entry of the numbered list shown when a delete
// keyword matches more than one reminder.
type DeleteCandidate struct {
	ReminderID string
	Message    string
	EventAt    time.Time
}

// MaxHistoryTurns bounds Context.History; oldest entries drop first.
const MaxHistoryTurns = 10

// Context is the in-flight dialog state for one identity. It is not durable:
// a restart loses it and the user simply resends the message.
type Context struct {
	Identity string
	UserID   string
	State    ConversationState

	DraftMessage     string
	DraftEventAt     *time.Time
	DraftLeadMinutes *int

	PendingDeleteID  string
	DeleteCandidates []DeleteCandidate

	History []Turn

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PushTurn appends to the bounded history.
func (c *Context) PushTurn(role, content string) {
	c.History = append(c.History, Turn{Role: role, Content: content, At: time.Now()})
	if len(c.History) > MaxHistoryTurns {
		c.History = c.History[len(c.History)-MaxHistoryTurns:]
	}
}
