package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Duhfx/LembrAI/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Storage, phone string) *domain.User {
	t.Helper()
	u := &domain.User{Phone: phone}
	require.NoError(t, s.CreateUser(u))
	return u
}

func createTestReminder(t *testing.T, s *Storage, userID string, eventAt time.Time, advance int) *domain.Reminder {
	t.Helper()
	r := &domain.Reminder{
		UserID:         userID,
		Message:        "Pagar aluguel",
		EventAt:        eventAt,
		NotifyAt:       eventAt.Add(-time.Duration(advance) * time.Minute),
		AdvanceMinutes: advance,
	}
	require.NoError(t, s.CreateReminder(r))
	return r
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStorage(t)

	u := createTestUser(t, s, "5511999990000")
	assert.NotEmpty(t, u.ID)
	assert.NotEmpty(t, u.FeedToken)
	assert.Equal(t, domain.PlanFree, u.PlanType)

	got, err := s.GetUserByPhone("5511999990000")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.FirstContactSent)

	byID, err := s.GetUserByID(u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)

	byToken, err := s.GetUserByFeedToken(u.FeedToken)
	require.NoError(t, err)
	require.NotNil(t, byToken)
	assert.Equal(t, u.ID, byToken.ID)
}

func TestGetUserMissing(t *testing.T) {
	s := newTestStorage(t)

	got, err := s.GetUserByPhone("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarkFirstContactSentOnlyOnce(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")

	flipped, err := s.MarkFirstContactSent(u.ID)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = s.MarkFirstContactSent(u.ID)
	require.NoError(t, err)
	assert.False(t, flipped)

	got, err := s.GetUserByID(u.ID)
	require.NoError(t, err)
	assert.True(t, got.FirstContactSent)
}

func TestUpdateUserPlan(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")

	require.NoError(t, s.UpdateUserPlan(u.ID, domain.PlanPaid))

	got, err := s.GetUserByID(u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanPaid, got.PlanType)
}

func TestClaimReminderAtMostOnce(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	r := createTestReminder(t, s, u.ID, time.Now().Add(time.Hour), 0)

	claimed, err := s.ClaimReminder(r.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimReminder(r.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "second claim must lose")

	got, err := s.GetReminder(r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderSent, got.Status)
}

func TestClaimReminderConcurrent(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	r := createTestReminder(t, s, u.ID, time.Now().Add(time.Hour), 0)

	const workers = 10
	wins := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.ClaimReminder(r.ID)
			if err == nil && claimed {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	assert.Len(t, wins, 1, "exactly one claimer wins")
}

func TestCancelReminder(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	r := createTestReminder(t, s, u.ID, time.Now().Add(time.Hour), 0)

	cancelled, err := s.CancelReminder(r.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	// Terminal states are final.
	cancelled, err = s.CancelReminder(r.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	claimed, err := s.ClaimReminder(r.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "a cancelled reminder must never be claimed")
}

func TestListDueRemindersWindow(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	now := time.Now()

	due := createTestReminder(t, s, u.ID, now.Add(-time.Minute), 0)
	future := createTestReminder(t, s, u.ID, now.Add(time.Hour), 0)
	tooOld := createTestReminder(t, s, u.ID, now.Add(-10*time.Minute), 0)

	got, err := s.ListDueReminders(now, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)

	// Neither the future nor the abandoned reminder changed state.
	for _, id := range []string{future.ID, tooOld.ID} {
		r, err := s.GetReminder(id)
		require.NoError(t, err)
		assert.Equal(t, domain.ReminderPending, r.Status)
	}
}

func TestListDueRemindersAcrossZones(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")

	// Written in a UTC-3 wall clock, queried with a UTC now: the same instant
	// must land inside the window regardless of zone.
	saoPaulo := time.FixedZone("-03", -3*60*60)
	notifyAt := time.Now().In(saoPaulo).Add(-time.Minute)
	r := &domain.Reminder{UserID: u.ID, Message: "x", EventAt: notifyAt.Add(30 * time.Minute), NotifyAt: notifyAt}
	require.NoError(t, s.CreateReminder(r))

	got, err := s.ListDueReminders(time.Now().UTC(), 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.ID, got[0].ID)
}

func TestCountCreatedSinceAcrossZones(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	createTestReminder(t, s, u.ID, time.Now().Add(time.Hour), 0)

	saoPaulo := time.FixedZone("-03", -3*60*60)

	count, err := s.CountCreatedSince(u.ID, time.Now().In(saoPaulo).Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = s.CountCreatedSince(u.ID, time.Now().In(saoPaulo).Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, count, "a zoned month start must not let earlier rows through")
}

func TestListByUserAndPeriod(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	now := time.Now()

	inside := createTestReminder(t, s, u.ID, now.Add(24*time.Hour), 0)
	createTestReminder(t, s, u.ID, now.Add(10*24*time.Hour), 0)

	cancelled := createTestReminder(t, s, u.ID, now.Add(25*time.Hour), 0)
	_, err := s.CancelReminder(cancelled.ID)
	require.NoError(t, err)

	got, err := s.ListByUserAndPeriod(u.ID, now, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inside.ID, got[0].ID)
}

func TestSearchPendingByKeyword(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	now := time.Now().Add(time.Hour)

	dentist := &domain.Reminder{UserID: u.ID, Message: "Consulta no Dentista", EventAt: now, NotifyAt: now}
	require.NoError(t, s.CreateReminder(dentist))
	rent := &domain.Reminder{UserID: u.ID, Message: "Pagar aluguel", EventAt: now, NotifyAt: now}
	require.NoError(t, s.CreateReminder(rent))

	got, err := s.SearchPendingByKeyword(u.ID, "dentista")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, dentist.ID, got[0].ID)

	got, err = s.SearchPendingByKeyword(u.ID, "nada a ver")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCounts(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	now := time.Now()

	createTestReminder(t, s, u.ID, now.Add(time.Hour), 0)
	sent := createTestReminder(t, s, u.ID, now.Add(2*time.Hour), 0)
	_, err := s.ClaimReminder(sent.ID)
	require.NoError(t, err)

	pending, err := s.CountPendingByUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	// The monthly count includes sent and cancelled rows.
	total, err := s.CountCreatedSince(u.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestNotificationLifecycle(t *testing.T) {
	s := newTestStorage(t)
	u := createTestUser(t, s, "551")
	r := createTestReminder(t, s, u.ID, time.Now().Add(time.Hour), 0)

	n := &domain.Notification{ReminderID: r.ID}
	require.NoError(t, s.CreateNotification(n))
	assert.Equal(t, domain.NotificationPending, n.Status)

	require.NoError(t, s.UpdateNotificationStatus(n.ID, domain.NotificationSent, ""))

	list, err := s.ListNotificationsByReminder(r.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.NotificationSent, list[0].Status)
	assert.NotNil(t, list[0].SentAt)

	require.NoError(t, s.UpdateNotificationStatus(n.ID, domain.NotificationFailed, "timeout"))
	list, err = s.ListNotificationsByReminder(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "timeout", list[0].Error)
}
