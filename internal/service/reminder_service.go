package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
	"github.com/Duhfx/LembrAI/internal/storage"
)

type ReminderService struct {
	storage *storage.Storage
	parser  *nlp.Parser
}

func NewReminderService(s *storage.Storage, parser *nlp.Parser) *ReminderService {
	return &ReminderService{storage: s, parser: parser}
}

// Create persists a confirmed reminder. NotifyAt is derived here so the
// invariant NotifyAt <= EventAt holds everywhere downstream.
func (s *ReminderService) Create(userID, message string, eventAt time.Time, advanceMinutes int) (*domain.Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("reminder message cannot be empty")
	}
	if advanceMinutes < 0 {
		return nil, fmt.Errorf("advance minutes cannot be negative")
	}

	reminder := &domain.Reminder{
		UserID:         userID,
		Message:        message,
		EventAt:        eventAt,
		NotifyAt:       eventAt.Add(-time.Duration(advanceMinutes) * time.Minute),
		AdvanceMinutes: advanceMinutes,
		Status:         domain.ReminderPending,
	}

	if err := s.storage.CreateReminder(reminder); err != nil {
		return nil, fmt.Errorf("create reminder: %w", err)
	}
	return reminder, nil
}

// Cancel flips a pending reminder to CANCELLED. Reports false when the
// reminder had already fired or was cancelled before.
func (s *ReminderService) Cancel(reminderID, userID string) (bool, error) {
	reminder, err := s.storage.GetReminder(reminderID)
	if err != nil {
		return false, fmt.Errorf("get reminder: %w", err)
	}
	if reminder == nil {
		return false, fmt.Errorf("reminder not found")
	}
	if reminder.UserID != userID {
		return false, fmt.Errorf("access denied")
	}
	return s.storage.CancelReminder(reminderID)
}

func (s *ReminderService) ListPending(userID string) ([]*domain.Reminder, error) {
	return s.storage.ListPendingByUser(userID)
}

func (s *ReminderService) ListForPeriod(userID string, period nlp.Period) ([]*domain.Reminder, error) {
	return s.storage.ListByUserAndPeriod(userID, period.Start, period.End)
}

func (s *ReminderService) SearchByKeyword(userID, keyword string) ([]*domain.Reminder, error) {
	return s.storage.SearchPendingByKeyword(userID, keyword)
}

// FormatList renders a numbered listing for the chat.
func (s *ReminderService) FormatList(reminders []*domain.Reminder) string {
	if len(reminders) == 0 {
		return "📭 Você não tem lembretes ativos."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 *Seus lembretes (%d):*\n\n", len(reminders))
	for i, r := range reminders {
		fmt.Fprintf(&sb, "%d. %s\n   🔔 %s\n\n", i+1, r.Message, s.parser.FormatMoment(r.EventAt))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatPeriodList renders a query result grouped by day, times sorted within
// each day.
func (s *ReminderService) FormatPeriodList(reminders []*domain.Reminder, label string) string {
	if len(reminders) == 0 {
		return fmt.Sprintf("Você não tem lembretes para %s. 📅", label)
	}

	sorted := make([]*domain.Reminder, len(reminders))
	copy(sorted, reminders)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EventAt.Before(sorted[j].EventAt)
	})

	loc := s.parser.Location()
	var days []string
	grouped := make(map[string][]*domain.Reminder)
	for _, r := range sorted {
		key := r.EventAt.In(loc).Format("2006-01-02")
		if _, ok := grouped[key]; !ok {
			days = append(days, key)
		}
		grouped[key] = append(grouped[key], r)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 *Seus lembretes para %s:*\n\n", label)
	for i, day := range days {
		dayReminders := grouped[day]
		if len(days) > 1 {
			fmt.Fprintf(&sb, "*%s*\n", s.dayLabel(dayReminders[0].EventAt))
		}
		for j, r := range dayReminders {
			fmt.Fprintf(&sb, "%d. ⏰ %s - %s\n", j+1, r.EventAt.In(loc).Format("15:04"), r.Message)
		}
		if i < len(days)-1 {
			sb.WriteString("\n")
		}
	}

	unit := "lembretes"
	if len(reminders) == 1 {
		unit = "lembrete"
	}
	fmt.Fprintf(&sb, "\n_Total: %d %s_", len(reminders), unit)
	return sb.String()
}

var ptDayNames = [...]string{"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}

func (s *ReminderService) dayLabel(t time.Time) string {
	loc := s.parser.Location()
	t = t.In(loc)
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	target := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	diffDays := int(target.Sub(today).Hours() / 24)

	datePart := t.Format("02/01")
	switch {
	case diffDays == 0:
		return fmt.Sprintf("Hoje (%s)", datePart)
	case diffDays == 1:
		return fmt.Sprintf("Amanhã (%s)", datePart)
	case diffDays == 2:
		return fmt.Sprintf("Depois de amanhã (%s)", datePart)
	default:
		return fmt.Sprintf("%s (%s)", ptDayNames[int(t.Weekday())], datePart)
	}
}
