package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
)

func newGemini(t *testing.T) *GeminiExtractor {
	t.Helper()
	g := NewGeminiExtractor("test-key", nlp.NewParser(time.UTC))
	g.now = func() time.Time { return time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC) }
	g.fallback.now = g.now
	return g
}

func TestParseResponseCreate(t *testing.T) {
	g := newGemini(t)

	raw := "```json\n" + `{
		"intent": "create",
		"reply": "Anotado!",
		"message": "Pagar aluguel",
		"dateTime": "2025-06-12 10:00",
		"advanceMinutes": 30,
		"confidence": "high"
	}` + "\n```"

	result, err := g.parseResponse(raw)
	require.NoError(t, err)
	require.Equal(t, IntentCreate, result.Intent)
	assert.Equal(t, "Pagar aluguel", result.Create.Message)
	require.NotNil(t, result.Create.Moment)
	assert.Equal(t, time.Date(2025, 6, 12, 10, 0, 0, 0, time.UTC), *result.Create.Moment)
	require.NotNil(t, result.Create.LeadMinutes)
	assert.Equal(t, 30, *result.Create.LeadMinutes)
	assert.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestParseResponseDiscardsPastDatetime(t *testing.T) {
	g := newGemini(t)

	result, err := g.parseResponse(`{"intent": "create", "message": "x", "dateTime": "2025-06-10 10:00", "confidence": "high"}`)
	require.NoError(t, err)
	require.Equal(t, IntentCreate, result.Intent)
	assert.Nil(t, result.Create.Moment, "a past moment must not pass through")
}

func TestParseResponseDeleteWithoutKeywordDegrades(t *testing.T) {
	g := newGemini(t)

	result, err := g.parseResponse(`{"intent": "delete", "deleteKeyword": "", "confidence": "high"}`)
	require.NoError(t, err)
	assert.Equal(t, IntentNone, result.Intent)
}

func TestParseResponseQuery(t *testing.T) {
	g := newGemini(t)

	result, err := g.parseResponse(`{"intent": "query", "queryPeriod": "esta semana", "confidence": "medium"}`)
	require.NoError(t, err)
	require.Equal(t, IntentQuery, result.Intent)
	assert.Equal(t, "esta semana", result.Query.Period)
}

func TestParseResponseNoJSON(t *testing.T) {
	g := newGemini(t)

	_, err := g.parseResponse("desculpe, não entendi")
	assert.Error(t, err)
}

func TestExtractWithoutKeyUsesFallback(t *testing.T) {
	g := NewGeminiExtractor("", nlp.NewParser(time.UTC))
	assert.False(t, g.IsConfigured())

	result, err := g.Extract(context.Background(), "cancela o lembrete do dentista", nil, UserSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, IntentDelete, result.Intent)
}

func TestBuildPromptIncludesHistoryAndPlan(t *testing.T) {
	g := newGemini(t)

	prompt := g.buildPrompt("e amanhã?", []domain.Turn{{Role: "user", Content: "quais lembretes tenho hoje?"}}, UserSnapshot{PlanType: "FREE", ActiveReminders: 2})
	assert.Contains(t, prompt, "PLANO: FREE")
	assert.Contains(t, prompt, "quais lembretes tenho hoje?")
	assert.Contains(t, prompt, "e amanhã?")
}
