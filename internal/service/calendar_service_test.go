package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Duhfx/LembrAI/internal/domain"
)

func TestFeedForToken(t *testing.T) {
	store := newTestStorage(t)
	svc := NewCalendarService(store)
	u := createTestUser(t, store, domain.PlanFree)

	eventAt := time.Now().Add(24 * time.Hour)
	r := &domain.Reminder{UserID: u.ID, Message: "Consulta médica", EventAt: eventAt, NotifyAt: eventAt}
	require.NoError(t, store.CreateReminder(r))

	data, found, err := svc.FeedForToken(u.FeedToken)
	require.NoError(t, err)
	require.True(t, found)

	ics := string(data)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "BEGIN:VEVENT")
	assert.Contains(t, ics, "Consulta médica")
	assert.Contains(t, ics, r.ID+"@lembrai")
}

func TestFeedForTokenUnknown(t *testing.T) {
	store := newTestStorage(t)
	svc := NewCalendarService(store)

	_, found, err := svc.FeedForToken("no-such-token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFeedOmitsTerminalReminders(t *testing.T) {
	store := newTestStorage(t)
	svc := NewCalendarService(store)
	u := createTestUser(t, store, domain.PlanFree)

	eventAt := time.Now().Add(24 * time.Hour)
	r := &domain.Reminder{UserID: u.ID, Message: "Já cancelado", EventAt: eventAt, NotifyAt: eventAt}
	require.NoError(t, store.CreateReminder(r))
	_, err := store.CancelReminder(r.ID)
	require.NoError(t, err)

	data, found, err := svc.FeedForToken(u.FeedToken)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, string(data), "Já cancelado")
}
