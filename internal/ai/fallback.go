package ai

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
)

// OfflineExtractor is the keyword/regex fallback. Same output shape as the
// AI extractor, lower confidence.
type OfflineExtractor struct {
	parser *nlp.Parser
	now    func() time.Time
}

func NewOfflineExtractor(parser *nlp.Parser) *OfflineExtractor {
	return &OfflineExtractor{parser: parser, now: time.Now}
}

var (
	reDeleteVerb = regexp.MustCompile(`^(cancelar?|remover?|deletar?|apagar?|tirar?|nao (preciso|quero) mais)\b`)
	reDeleteTail = regexp.MustCompile(`^(o |a |os |as |de |do |da |lembrete |lembretes )`)
	reQueryHint  = regexp.MustCompile(`(quais|que|meus|tenho|lembretes?).*(hoje|amanha|semana|mes|proximos|segunda|terca|quarta|quinta|sexta|sabado|domingo)`)
	reCreateLead = regexp.MustCompile(`^(me lembra de |me lembre de |me lembra |me lembre |lembrar de |lembrete de |lembrete |lembra de )`)
)

func (e *OfflineExtractor) Extract(_ context.Context, text string, _ []domain.Turn, _ UserSnapshot) (*Result, error) {
	normalized := nlp.Normalize(text)

	if kw, ok := deleteKeyword(normalized); ok {
		return &Result{
			Intent:     IntentDelete,
			Delete:     &DeleteSlots{Keyword: kw},
			Confidence: ConfidenceMedium,
		}, nil
	}

	if reQueryHint.MatchString(normalized) && !reCreateLead.MatchString(normalized) {
		return &Result{
			Intent:     IntentQuery,
			Query:      &QuerySlots{Period: normalized},
			Confidence: ConfidenceMedium,
		}, nil
	}

	slots := &CreateSlots{Message: cleanReminderText(text)}
	confidence := ConfidenceLow
	if moment, ok := e.parser.ParseMoment(text, e.now()); ok {
		slots.Moment = &moment
		confidence = ConfidenceMedium
	}
	return &Result{
		Intent:     IntentCreate,
		Create:     slots,
		Confidence: confidence,
	}, nil
}

func deleteKeyword(normalized string) (string, bool) {
	loc := reDeleteVerb.FindStringIndex(normalized)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimSpace(normalized[loc[1]:])
	for {
		stripped := reDeleteTail.ReplaceAllString(rest, "")
		if stripped == rest {
			break
		}
		rest = stripped
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s+(amanha)\s+(as\s+)?\d{1,2}(h\d{0,2}|:\d{2})?`),
	regexp.MustCompile(`\s+(hoje)\s+(as\s+)?\d{1,2}(h\d{0,2}|:\d{2})?`),
	regexp.MustCompile(`\s+(segunda|terca|quarta|quinta|sexta|sabado|domingo)(-feira)?\s+(as\s+)?\d{1,2}(h\d{0,2}|:\d{2})?`),
	regexp.MustCompile(`\s+em\s+\d+\s+(minutos?|horas?|dias?)`),
	regexp.MustCompile(`\s+(as)\s+\d{1,2}(h\d{0,2}|:\d{2})?`),
	regexp.MustCompile(`\s+\d{1,2}(h\d{0,2}|:\d{2})`),
}

// cleanReminderText strips the "remind me to" lead and date/time expressions
// so the stored message is just the thing to remember. Falls back to the
// original text when stripping leaves too little behind.
func cleanReminderText(text string) string {
	cleaned := nlp.Normalize(text)
	cleaned = reCreateLead.ReplaceAllString(cleaned, "")
	for _, p := range datePatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if len(cleaned) < 3 {
		return strings.TrimSpace(text)
	}
	return cleaned
}
