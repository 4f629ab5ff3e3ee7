package nlp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Period is a resolved date range for a reminder query plus the label echoed
// back to the user.
type Period struct {
	Start time.Time
	End   time.Time
	Label string
}

var reNextDays = regexp.MustCompile(`proximos?\s+(\d+)\s+dias?`)

// Ordered so the -feira forms win over their prefixes, with accented labels
// for the echo back to the user.
var periodWeekdays = []struct {
	name  string
	label string
	day   time.Weekday
}{
	{"segunda-feira", "segunda-feira", time.Monday},
	{"terca-feira", "terça-feira", time.Tuesday},
	{"quarta-feira", "quarta-feira", time.Wednesday},
	{"quinta-feira", "quinta-feira", time.Thursday},
	{"sexta-feira", "sexta-feira", time.Friday},
	{"domingo", "domingo", time.Sunday},
	{"segunda", "segunda", time.Monday},
	{"terca", "terça", time.Tuesday},
	{"quarta", "quarta", time.Wednesday},
	{"quinta", "quinta", time.Thursday},
	{"sexta", "sexta", time.Friday},
	{"sabado", "sábado", time.Saturday},
}

// ParsePeriod resolves a named period ("hoje", "esta semana", "próximos 3
// dias", a weekday name) into a concrete range. Unrecognized input defaults
// to the next 7 days.
func (p *Parser) ParsePeriod(period string, ref time.Time) Period {
	ref = ref.In(p.loc)
	normalized := Normalize(period)

	startOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
	}
	endOfDay := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, p.loc)
	}

	switch {
	// "depois de amanhã" before "amanhã", which it contains.
	case contains(normalized, "depois de amanha"):
		day := ref.AddDate(0, 0, 2)
		return Period{startOfDay(day), endOfDay(day), "depois de amanhã"}

	case contains(normalized, "amanha"):
		day := ref.AddDate(0, 0, 1)
		return Period{startOfDay(day), endOfDay(day), "amanhã"}

	case contains(normalized, "hoje"):
		return Period{startOfDay(ref), endOfDay(ref), "hoje"}

	case contains(normalized, "esta semana", "essa semana"):
		daysUntilSunday := 7 - int(ref.Weekday())
		return Period{startOfDay(ref), endOfDay(ref.AddDate(0, 0, daysUntilSunday)), "esta semana"}

	case contains(normalized, "proxima semana"):
		daysUntilMonday := (8 - int(ref.Weekday())) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		start := ref.AddDate(0, 0, daysUntilMonday)
		return Period{startOfDay(start), endOfDay(start.AddDate(0, 0, 6)), "próxima semana"}

	case contains(normalized, "este mes", "esse mes"):
		lastDay := time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, p.loc)
		return Period{startOfDay(ref), endOfDay(lastDay), "este mês"}

	case contains(normalized, "proximo mes"):
		first := time.Date(ref.Year(), ref.Month()+1, 1, 0, 0, 0, 0, p.loc)
		last := time.Date(ref.Year(), ref.Month()+2, 0, 0, 0, 0, 0, p.loc)
		return Period{startOfDay(first), endOfDay(last), "próximo mês"}
	}

	for _, w := range periodWeekdays {
		if contains(normalized, w.name) {
			daysToAdd := int(w.day - ref.Weekday())
			if daysToAdd <= 0 {
				daysToAdd += 7
			}
			day := ref.AddDate(0, 0, daysToAdd)
			return Period{startOfDay(day), endOfDay(day), w.label}
		}
	}

	if m := reNextDays.FindStringSubmatch(normalized); m != nil {
		days, _ := strconv.Atoi(m[1])
		if days > 0 {
			return Period{
				startOfDay(ref),
				endOfDay(ref.AddDate(0, 0, days-1)),
				fmt.Sprintf("próximos %d dias", days),
			}
		}
	}

	return Period{startOfDay(ref), endOfDay(ref.AddDate(0, 0, 6)), "próximos 7 dias"}
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
