// Package scheduler sweeps due reminders once a minute and delivers them with
// at-most-once semantics: a reminder is claimed before its message is sent, so
// a crash can lose one delivery but never duplicate it.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Duhfx/LembrAI/internal/convo"
	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
	"github.com/Duhfx/LembrAI/internal/storage"
)

// BackWindow bounds how far behind a sweep looks. Reminders missed for longer
// than this (long downtime) stay PENDING and are never delivered late.
const BackWindow = 5 * time.Minute

type MessageSender interface {
	SendText(identity, text string) (string, error)
}

type Scheduler struct {
	cron     *cron.Cron
	storage  *storage.Storage
	contexts convo.Store
	parser   *nlp.Parser
	sender   MessageSender
	now      func() time.Time
}

func New(loc *time.Location, store *storage.Storage, contexts convo.Store, parser *nlp.Parser) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		storage:  store,
		contexts: contexts,
		parser:   parser,
		now:      time.Now,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("* * * * *", s.sweepDueReminders); err != nil {
		return fmt.Errorf("add reminder sweep: %w", err)
	}
	if _, err := s.cron.AddFunc("* * * * *", func() { s.contexts.SweepExpired() }); err != nil {
		return fmt.Errorf("add context sweep: %w", err)
	}

	s.cron.Start()
	log.Println("Scheduler started")

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// sweepDueReminders is one delivery pass. Every failure is logged and skipped;
// the sweep itself never aborts halfway.
func (s *Scheduler) sweepDueReminders() {
	if s.sender == nil {
		return
	}

	due, err := s.storage.ListDueReminders(s.now(), BackWindow)
	if err != nil {
		log.Printf("Error listing due reminders: %v", err)
		return
	}

	for _, r := range due {
		s.deliver(r)
	}
}

// deliver claims one reminder and sends its notice. The claim happens first:
// losing the race to another sweep means someone else owns delivery.
func (s *Scheduler) deliver(r *domain.Reminder) {
	claimed, err := s.storage.ClaimReminder(r.ID)
	if err != nil {
		log.Printf("Error claiming reminder %s: %v", r.ID, err)
		return
	}
	if !claimed {
		return
	}

	notification := &domain.Notification{ReminderID: r.ID}
	if err := s.storage.CreateNotification(notification); err != nil {
		log.Printf("Error creating notification for reminder %s: %v", r.ID, err)
	}

	user, err := s.storage.GetUserByID(r.UserID)
	if err != nil {
		log.Printf("Error resolving user %s for reminder %s: %v", r.UserID, r.ID, err)
		s.finishNotification(notification.ID, domain.NotificationFailed, err.Error())
		return
	}
	if user == nil {
		log.Printf("User %s not found for reminder %s", r.UserID, r.ID)
		s.finishNotification(notification.ID, domain.NotificationFailed, "user not found")
		return
	}

	if _, err := s.sender.SendText(user.Phone, s.noticeText(r)); err != nil {
		// The reminder stays SENT: delivery is at-most-once, never retried.
		log.Printf("Error sending reminder %s to %s: %v", r.ID, user.Phone, err)
		s.finishNotification(notification.ID, domain.NotificationFailed, err.Error())
		return
	}

	s.finishNotification(notification.ID, domain.NotificationSent, "")
	log.Printf("Delivered reminder %s to %s", r.ID, user.Phone)
}

func (s *Scheduler) finishNotification(id string, status domain.NotificationStatus, errText string) {
	if id == "" {
		return
	}
	if err := s.storage.UpdateNotificationStatus(id, status, errText); err != nil {
		log.Printf("Error updating notification %s: %v", id, err)
	}
}

func (s *Scheduler) noticeText(r *domain.Reminder) string {
	if r.AdvanceMinutes > 0 {
		return fmt.Sprintf("🔔 *Lembrete*\n\n%s\n🗓 %s (em %d minutos)",
			r.Message, s.parser.FormatMoment(r.EventAt), r.AdvanceMinutes)
	}
	return fmt.Sprintf("🔔 *Lembrete*\n\n%s\n🗓 agora", r.Message)
}
