// Package nlp is the deterministic Brazilian-Portuguese parser for dates,
// periods and lead times. It backs the offline extractor and double-checks
// every moment the AI extractor proposes.
package nlp

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxHorizon is how far into the future a reminder may be scheduled.
const MaxHorizon = 365 * 24 * time.Hour

type Parser struct {
	loc *time.Location
}

func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

func (p *Parser) Location() *time.Location {
	return p.loc
}

var (
	reTimeColon  = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	reTimeH      = regexp.MustCompile(`(\d{1,2})h(\d{2})?`)
	reTimeAMPM   = regexp.MustCompile(`(\d{1,2})\s*(am|pm)`)
	reInHours    = regexp.MustCompile(`em (\d+) horas?`)
	reInMinutes  = regexp.MustCompile(`(?:em|daqui) (\d+) minutos?`)
	reInDays     = regexp.MustCompile(`em (\d+) dias?`)
	reDayMonth   = regexp.MustCompile(`(\d{1,2})/(\d{1,2})\s+(?:as\s+)?(\d{1,2}):(\d{2})`)
	reDateAnchor = regexp.MustCompile(`hoje|amanha|segunda|terca|quarta|quinta|sexta|sabado|domingo`)
)

var weekdays = map[string]time.Weekday{
	"domingo":       time.Sunday,
	"segunda-feira": time.Monday,
	"segunda":       time.Monday,
	"terca-feira":   time.Tuesday,
	"terca":         time.Tuesday,
	"quarta-feira":  time.Wednesday,
	"quarta":        time.Wednesday,
	"quinta-feira":  time.Thursday,
	"quinta":        time.Thursday,
	"sexta-feira":   time.Friday,
	"sexta":         time.Friday,
	"sabado":        time.Saturday,
}

// ParseMoment resolves a natural-language moment relative to ref. The second
// return is false when nothing usable was found.
func (p *Parser) ParseMoment(text string, ref time.Time) (time.Time, bool) {
	ref = ref.In(p.loc)
	normalized := Normalize(text)

	if t, ok := p.parseRelativeDay(normalized, ref); ok {
		return t, true
	}
	if t, ok := p.parseWeekday(normalized, ref); ok {
		return t, true
	}
	if t, ok := p.parseRelativeTime(normalized, ref); ok {
		return t, true
	}
	if t, ok := p.parseBareTime(normalized, ref); ok {
		return t, true
	}
	if t, ok := p.parseDayMonth(normalized, ref); ok {
		return t, true
	}
	return time.Time{}, false
}

// Validate reports whether a moment is strictly in the future and within the
// one-year horizon.
func (p *Parser) Validate(moment, now time.Time) bool {
	return moment.After(now) && moment.Before(now.Add(MaxHorizon))
}

func (p *Parser) parseRelativeDay(text string, ref time.Time) (time.Time, bool) {
	var daysToAdd int
	switch {
	case strings.Contains(text, "depois de amanha"):
		daysToAdd = 2
	case strings.Contains(text, "amanha"):
		daysToAdd = 1
	case strings.Contains(text, "hoje"):
		daysToAdd = 0
	default:
		return time.Time{}, false
	}

	hour, minute, ok := extractTime(text)
	if !ok {
		return time.Time{}, false
	}

	day := ref.AddDate(0, 0, daysToAdd)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.loc), true
}

func (p *Parser) parseWeekday(text string, ref time.Time) (time.Time, bool) {
	var target time.Weekday
	found := false
	// Check the -feira forms first so "segunda-feira" does not half-match.
	for _, name := range []string{
		"segunda-feira", "terca-feira", "quarta-feira", "quinta-feira", "sexta-feira",
		"domingo", "segunda", "terca", "quarta", "quinta", "sexta", "sabado",
	} {
		if strings.Contains(text, name) {
			target = weekdays[name]
			found = true
			break
		}
	}
	if !found {
		return time.Time{}, false
	}

	hour, minute, ok := extractTime(text)
	if !ok {
		return time.Time{}, false
	}

	daysUntil := int(target - ref.Weekday())
	if daysUntil <= 0 {
		daysUntil += 7
	}

	day := ref.AddDate(0, 0, daysUntil)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, p.loc), true
}

func (p *Parser) parseRelativeTime(text string, ref time.Time) (time.Time, bool) {
	if m := reInHours.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.Add(time.Duration(n) * time.Hour), true
	}
	if m := reInMinutes.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.Add(time.Duration(n) * time.Minute), true
	}
	if m := reInDays.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.AddDate(0, 0, n), true
	}
	return time.Time{}, false
}

// parseBareTime handles a time with no date anchor ("15h", "9:30"); a time
// already past today rolls over to tomorrow.
func (p *Parser) parseBareTime(text string, ref time.Time) (time.Time, bool) {
	if reDateAnchor.MatchString(text) {
		return time.Time{}, false
	}

	hour, minute, ok := extractTime(text)
	if !ok {
		return time.Time{}, false
	}

	result := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, p.loc)
	if !result.After(ref) {
		result = result.AddDate(0, 0, 1)
	}
	return result, true
}

// parseDayMonth handles "25/12 às 18:00"; a date already past rolls to next
// year.
func (p *Parser) parseDayMonth(text string, ref time.Time) (time.Time, bool) {
	m := reDayMonth.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	result := time.Date(ref.Year(), time.Month(month), day, hour, minute, 0, 0, p.loc)
	if !result.After(ref) {
		result = result.AddDate(1, 0, 0)
	}
	return result, true
}

func extractTime(text string) (hour, minute int, ok bool) {
	if m := reTimeColon.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		return hour, minute, hour <= 23 && minute <= 59
	}
	if m := reTimeH.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		return hour, minute, hour <= 23 && minute <= 59
	}
	if m := reTimeAMPM.FindStringSubmatch(text); m != nil {
		hour, _ = strconv.Atoi(m[1])
		if m[2] == "pm" && hour < 12 {
			hour += 12
		}
		if m[2] == "am" && hour == 12 {
			hour = 0
		}
		return hour, 0, hour <= 23
	}
	if strings.Contains(text, "meio-dia") || strings.Contains(text, "meio dia") {
		return 12, 0, true
	}
	if strings.Contains(text, "meia-noite") || strings.Contains(text, "meia noite") {
		return 0, 0, true
	}
	return 0, 0, false
}

var accentReplacer = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u",
	"ç", "c",
)

// Normalize lowercases, trims and strips Portuguese accents.
func Normalize(text string) string {
	return accentReplacer.Replace(strings.ToLower(strings.TrimSpace(text)))
}

var ptWeekdayNames = [...]string{
	"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado",
}

// FormatMoment renders a moment the way the bot talks about dates:
// "Sexta, 25/12 às 18:00".
func (p *Parser) FormatMoment(t time.Time) string {
	t = t.In(p.loc)
	return ptWeekdayNames[int(t.Weekday())] + ", " + t.Format("02/01") + " às " + t.Format("15:04")
}
