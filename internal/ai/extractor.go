// Package ai extracts structured intent and slots from free-form chat text.
// The Gemini-backed extractor is the primary path; the deterministic offline
// extractor keeps the bot functional when the model is unreachable.
package ai

import (
	"context"
	"time"

	"github.com/Duhfx/LembrAI/internal/domain"
)

type Intent string

const (
	IntentCreate Intent = "create"
	IntentQuery  Intent = "query"
	IntentDelete Intent = "delete"
	IntentNone   Intent = "none"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CreateSlots carries the fields an extractor guessed for a new reminder.
// Any of them may be absent; the dialog fills the gaps turn by turn.
type CreateSlots struct {
	Message     string
	Moment      *time.Time
	LeadMinutes *int
}

type DeleteSlots struct {
	Keyword string
}

type QuerySlots struct {
	Period string
}

// Result is the extractor's best-effort guess for one message. Exactly the
// variant matching Intent is set; everything is validated locally before the
// state machine acts on it.
type Result struct {
	Intent     Intent
	Create     *CreateSlots
	Delete     *DeleteSlots
	Query      *QuerySlots
	Reply      string // model-suggested response, optional
	Confidence Confidence
}

// UserSnapshot gives the extractor plan context for better prompts.
type UserSnapshot struct {
	PlanType         domain.PlanType
	ActiveReminders  int
	MonthlyReminders int
}

// Extractor turns one user message plus dialog history into a Result. It must
// respect ctx deadlines and may fail; callers fall back to the offline
// extractor.
type Extractor interface {
	Extract(ctx context.Context, text string, history []domain.Turn, user UserSnapshot) (*Result, error)
}
