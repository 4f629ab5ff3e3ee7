package nlp

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reLeadMinutes = regexp.MustCompile(`(\d+)\s*minutos?`)
	reLeadHours   = regexp.MustCompile(`(\d+)\s*horas?`)
	reLeadBare    = regexp.MustCompile(`^(\d+)$`)
)

// ParseLeadMinutes reads how long before the event the user wants the notice:
// "30 minutos", "2 horas", a bare number (minutes) or "na hora" for zero.
// The second return is false when nothing parses.
func ParseLeadMinutes(text string) (int, bool) {
	normalized := Normalize(text)

	if m := reLeadMinutes.FindStringSubmatch(normalized); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := reLeadHours.FindStringSubmatch(normalized); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 60, true
	}
	if m := reLeadBare.FindStringSubmatch(normalized); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if strings.Contains(normalized, "na hora") || strings.Contains(normalized, "hora exata") {
		return 0, true
	}
	return 0, false
}
