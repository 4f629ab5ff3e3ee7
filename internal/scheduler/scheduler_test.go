package scheduler

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Duhfx/LembrAI/internal/convo"
	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
	"github.com/Duhfx/LembrAI/internal/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string // identities
	fail bool
}

func (f *fakeSender) SendText(identity, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("connection refused")
	}
	f.sent = append(f.sent, identity)
	return "msg-1", nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *storage.Storage, *fakeSender) {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sender := &fakeSender{}
	s := New(time.UTC, store, convo.NewMemoryStore(convo.DefaultTimeout), nlp.NewParser(time.UTC))
	s.SetSender(sender)
	return s, store, sender
}

func seedDue(t *testing.T, store *storage.Storage, notifyAt time.Time) (*domain.User, *domain.Reminder) {
	t.Helper()
	u := &domain.User{Phone: "5511999990000"}
	require.NoError(t, store.CreateUser(u))
	r := &domain.Reminder{UserID: u.ID, Message: "Dentista", EventAt: notifyAt.Add(30 * time.Minute), NotifyAt: notifyAt, AdvanceMinutes: 30}
	require.NoError(t, store.CreateReminder(r))
	return u, r
}

func TestSweepDeliversDueReminder(t *testing.T) {
	s, store, sender := newTestScheduler(t)
	u, r := seedDue(t, store, time.Now().Add(-time.Minute))

	s.sweepDueReminders()

	assert.Equal(t, []string{u.Phone}, sender.sent)

	got, err := store.GetReminder(r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderSent, got.Status)

	notifications, err := store.ListNotificationsByReminder(r.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.NotificationSent, notifications[0].Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	s, store, sender := newTestScheduler(t)
	_, r := seedDue(t, store, time.Now().Add(-time.Minute))

	s.sweepDueReminders()
	s.sweepDueReminders()

	assert.Len(t, sender.sent, 1, "a claimed reminder never goes out twice")

	notifications, err := store.ListNotificationsByReminder(r.ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestConcurrentSweepsDeliverOnce(t *testing.T) {
	s, store, sender := newTestScheduler(t)
	_, r := seedDue(t, store, time.Now().Add(-time.Minute))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.sweepDueReminders()
		}()
	}
	wg.Wait()

	assert.Len(t, sender.sent, 1, "racing sweeps must produce exactly one delivery")

	notifications, err := store.ListNotificationsByReminder(r.ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)
}

func TestDeliverUserNotFound(t *testing.T) {
	s, store, sender := newTestScheduler(t)
	_, r := seedDue(t, store, time.Now().Add(-time.Minute))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	// The row is claimable but the owner cannot be resolved.
	orphan := *r
	orphan.UserID = "ghost"
	s.deliver(&orphan)

	assert.Empty(t, sender.sent)
	assert.Contains(t, buf.String(), "not found")
	assert.NotContains(t, buf.String(), "<nil>")

	notifications, err := store.ListNotificationsByReminder(r.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.NotificationFailed, notifications[0].Status)
	assert.Equal(t, "user not found", notifications[0].Error)
}

func TestSendFailureDoesNotReopenReminder(t *testing.T) {
	s, store, sender := newTestScheduler(t)
	sender.fail = true
	_, r := seedDue(t, store, time.Now().Add(-time.Minute))

	s.sweepDueReminders()

	got, err := store.GetReminder(r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderSent, got.Status, "delivery is at-most-once, not retried")

	notifications, err := store.ListNotificationsByReminder(r.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, domain.NotificationFailed, notifications[0].Status)
	assert.Contains(t, notifications[0].Error, "connection refused")

	// Another sweep skips the already claimed reminder.
	sender.fail = false
	s.sweepDueReminders()
	assert.Empty(t, sender.sent)
}

func TestSweepIgnoresOldAndFutureReminders(t *testing.T) {
	s, store, sender := newTestScheduler(t)
	_, old := seedDue(t, store, time.Now().Add(-BackWindow-time.Minute))

	future := &domain.Reminder{UserID: old.UserID, Message: "x", EventAt: time.Now().Add(2 * time.Hour), NotifyAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.CreateReminder(future))

	s.sweepDueReminders()

	assert.Empty(t, sender.sent)
	for _, id := range []string{old.ID, future.ID} {
		r, err := store.GetReminder(id)
		require.NoError(t, err)
		assert.Equal(t, domain.ReminderPending, r.Status)
	}
}

func TestNoticeText(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	eventAt := time.Date(2025, 6, 12, 15, 0, 0, 0, time.UTC)
	withLead := &domain.Reminder{Message: "Dentista", EventAt: eventAt, AdvanceMinutes: 30}
	assert.Contains(t, s.noticeText(withLead), "em 30 minutos")
	assert.Contains(t, s.noticeText(withLead), "Dentista")

	atEvent := &domain.Reminder{Message: "Reunião", EventAt: eventAt}
	assert.Contains(t, s.noticeText(atEvent), "agora")
}
