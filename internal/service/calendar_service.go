package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/Duhfx/LembrAI/internal/storage"
)

// CalendarService renders a user's pending reminders as an iCalendar feed so
// they can subscribe from any calendar app.
type CalendarService struct {
	storage *storage.Storage
}

func NewCalendarService(s *storage.Storage) *CalendarService {
	return &CalendarService{storage: s}
}

// FeedForToken resolves a personal feed token and returns the serialized
// calendar. The second return is false when the token matches no user.
func (s *CalendarService) FeedForToken(token string) ([]byte, bool, error) {
	user, err := s.storage.GetUserByFeedToken(token)
	if err != nil {
		return nil, false, fmt.Errorf("get user by token: %w", err)
	}
	if user == nil {
		return nil, false, nil
	}

	reminders, err := s.storage.ListPendingByUser(user.ID)
	if err != nil {
		return nil, false, fmt.Errorf("list reminders: %w", err)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//LembrAI//Lembretes//PT-BR")

	now := time.Now().UTC()
	for _, r := range reminders {
		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, r.ID+"@lembrai")
		vevent.Props.SetText(ical.PropSummary, r.Message)
		vevent.Props.SetDateTime(ical.PropDateTimeStart, r.EventAt.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, now)
		cal.Children = append(cal.Children, vevent.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, false, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), true, nil
}
