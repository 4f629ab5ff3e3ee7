package chatbot

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Duhfx/LembrAI/internal/ai"
	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
)

var affirmativeTokens = map[string]bool{
	"sim":       true,
	"s":         true,
	"yes":       true,
	"y":         true,
	"confirmar": true,
	"confirm":   true,
	"ok":        true,
}

var negativeTokens = map[string]bool{
	"nao": true,
	"n":   true,
	"no":  true,
}

func isAffirmative(text string) bool {
	return affirmativeTokens[nlp.Normalize(text)]
}

func isNegative(text string) bool {
	return negativeTokens[nlp.Normalize(text)]
}

// handleInitial classifies a fresh message and opens the matching flow.
func (b *Chatbot) handleInitial(identity string, user *domain.User, text string) response {
	ctx := b.contexts.GetOrCreate(identity)
	result := b.extract(text, ctx, user)

	switch result.Intent {
	case ai.IntentCreate:
		return b.startCreateFlow(identity, user, result.Create)
	case ai.IntentQuery:
		return b.answerQuery(user, result.Query.Period)
	case ai.IntentDelete:
		return b.startDeleteFlow(identity, user, result.Delete.Keyword)
	default:
		if result.Reply != "" {
			return response{message: result.Reply, nextState: domain.StateInitial}
		}
		return response{
			message: "🤔 Não entendi. Me diga o que você quer lembrar e quando.\n" +
				"Exemplo: _\"me lembre de pagar o aluguel amanhã às 10h\"_\n\n" +
				"Digite /ajuda para ver tudo que eu sei fazer.",
			nextState: domain.StateInitial,
		}
	}
}

// startCreateFlow seeds the draft from whatever slots the extractor resolved
// and asks for the first missing one.
func (b *Chatbot) startCreateFlow(identity string, user *domain.User, slots *ai.CreateSlots) response {
	decision, err := b.plans.CanCreate(user.ID)
	if err != nil {
		log.Printf("Error checking plan for %s: %v", user.ID, err)
		return response{message: genericApology, nextState: domain.StateInitial}
	}
	if !decision.Allowed {
		return response{message: "🚫 " + decision.Reason, nextState: domain.StateInitial}
	}

	message := strings.TrimSpace(slots.Message)
	if message == "" {
		return response{
			message:   "📝 O que você quer que eu lembre você?",
			nextState: domain.StateInitial,
		}
	}

	now := b.now()
	if slots.Moment == nil || !b.parser.Validate(*slots.Moment, now) {
		b.contexts.Update(identity, func(c *domain.Context) {
			c.DraftMessage = message
		})
		return response{
			message: fmt.Sprintf("📝 Entendi: *%s*\n\nPara quando é esse lembrete?\n"+
				"Exemplo: _\"amanhã às 15h\"_ ou _\"25/12 às 18:00\"_", message),
			nextState: domain.StateAwaitingMoment,
		}
	}

	eventAt := *slots.Moment

	if slots.LeadMinutes != nil {
		lead := *slots.LeadMinutes
		decision, err := b.plans.ValidateLeadTime(user.ID, lead)
		if err != nil {
			log.Printf("Error validating lead time for %s: %v", user.ID, err)
			return response{message: genericApology, nextState: domain.StateInitial}
		}
		if decision.Allowed {
			b.contexts.Update(identity, func(c *domain.Context) {
				c.DraftMessage = message
				c.DraftEventAt = &eventAt
				c.DraftLeadMinutes = &lead
			})
			return response{
				message:   b.confirmationSummary(message, eventAt, lead),
				nextState: domain.StateConfirming,
			}
		}
	}

	b.contexts.Update(identity, func(c *domain.Context) {
		c.DraftMessage = message
		c.DraftEventAt = &eventAt
	})
	return response{
		message: fmt.Sprintf("📝 *%s*\n🗓 %s\n\nQuantos minutos antes você quer ser avisado?\n"+
			"Responda um número ou _\"na hora\"_.", message, b.parser.FormatMoment(eventAt)),
		nextState: domain.StateAwaitingLeadTime,
	}
}

func (b *Chatbot) answerQuery(user *domain.User, periodText string) response {
	period := b.parser.ParsePeriod(periodText, b.now())
	reminders, err := b.reminders.ListForPeriod(user.ID, period)
	if err != nil {
		log.Printf("Error listing reminders for %s: %v", user.ID, err)
		return response{message: genericApology, nextState: domain.StateInitial}
	}
	return response{
		message:   b.reminders.FormatPeriodList(reminders, period.Label),
		nextState: domain.StateInitial,
	}
}

// startDeleteFlow resolves the keyword against pending reminders: zero matches
// ends the dialog, one goes straight to confirmation, several ask the user to
// pick.
func (b *Chatbot) startDeleteFlow(identity string, user *domain.User, keyword string) response {
	matches, err := b.reminders.SearchByKeyword(user.ID, keyword)
	if err != nil {
		log.Printf("Error searching reminders for %s: %v", user.ID, err)
		return response{message: genericApology, nextState: domain.StateInitial}
	}

	switch len(matches) {
	case 0:
		return response{
			message:   fmt.Sprintf("🔍 Não encontrei nenhum lembrete ativo com _\"%s\"_.\n\nDigite /lembretes para ver todos.", keyword),
			nextState: domain.StateInitial,
		}
	case 1:
		target := matches[0]
		b.contexts.Update(identity, func(c *domain.Context) {
			c.PendingDeleteID = target.ID
		})
		return response{
			message: fmt.Sprintf("🗑 Cancelar este lembrete?\n\n*%s*\n🔔 %s\n\nResponda *sim* ou *não*.",
				target.Message, b.parser.FormatMoment(target.EventAt)),
			nextState: domain.StateConfirmingDelete,
		}
	default:
		candidates := make([]domain.DeleteCandidate, len(matches))
		var sb strings.Builder
		sb.WriteString("🔍 Encontrei mais de um lembrete. Qual deles?\n\n")
		for i, r := range matches {
			candidates[i] = domain.DeleteCandidate{ReminderID: r.ID, Message: r.Message, EventAt: r.EventAt}
			fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, r.Message, b.parser.FormatMoment(r.EventAt))
		}
		sb.WriteString("\nResponda com o número.")
		b.contexts.Update(identity, func(c *domain.Context) {
			c.DeleteCandidates = candidates
		})
		return response{message: sb.String(), nextState: domain.StateSelectingDeleteTarget}
	}
}

// handleAwaitingMoment fills the moment slot. Anything unparsable or outside
// the valid window re-prompts without losing the draft.
func (b *Chatbot) handleAwaitingMoment(identity string, text string) response {
	now := b.now()
	moment, ok := b.parser.ParseMoment(text, now)
	if !ok {
		return response{
			message: "🗓 Não consegui entender a data. Tente algo como:\n" +
				"_\"amanhã às 15h\"_, _\"sexta às 9:30\"_ ou _\"25/12 às 18:00\"_",
			nextState: domain.StateAwaitingMoment,
		}
	}
	if !b.parser.Validate(moment, now) {
		return response{
			message:   "⏰ Esse horário já passou ou está longe demais (máximo 1 ano). Me diga outra data.",
			nextState: domain.StateAwaitingMoment,
		}
	}

	ctx := b.contexts.GetOrCreate(identity)
	b.contexts.Update(identity, func(c *domain.Context) {
		c.DraftEventAt = &moment
	})
	return response{
		message: fmt.Sprintf("📝 *%s*\n🗓 %s\n\nQuantos minutos antes você quer ser avisado?\n"+
			"Responda um número ou _\"na hora\"_.", ctx.DraftMessage, b.parser.FormatMoment(moment)),
		nextState: domain.StateAwaitingLeadTime,
	}
}

// handleAwaitingLeadTime fills the lead-time slot and moves to confirmation.
func (b *Chatbot) handleAwaitingLeadTime(identity string, user *domain.User, text string) response {
	minutes, ok := nlp.ParseLeadMinutes(text)
	if !ok {
		return response{
			message: "⏰ Não entendi. Me diga quantos minutos antes você quer ser avisado.\n" +
				"Exemplo: _\"30\"_, _\"2 horas\"_ ou _\"na hora\"_.",
			nextState: domain.StateAwaitingLeadTime,
		}
	}

	decision, err := b.plans.ValidateLeadTime(user.ID, minutes)
	if err != nil {
		log.Printf("Error validating lead time for %s: %v", user.ID, err)
		return response{message: genericApology, nextState: domain.StateAwaitingLeadTime}
	}
	if !decision.Allowed {
		return response{message: "🚫 " + decision.Reason, nextState: domain.StateAwaitingLeadTime}
	}

	ctx := b.contexts.GetOrCreate(identity)
	if ctx.DraftEventAt == nil {
		// Draft lost mid-dialog; restart cleanly rather than confirm garbage.
		return response{
			message:   "❌ Perdi o fio da meada. Vamos recomeçar: o que você quer lembrar?",
			nextState: domain.StateInitial,
		}
	}

	b.contexts.Update(identity, func(c *domain.Context) {
		c.DraftLeadMinutes = &minutes
	})
	return response{
		message:   b.confirmationSummary(ctx.DraftMessage, *ctx.DraftEventAt, minutes),
		nextState: domain.StateConfirming,
	}
}

// handleConfirming creates the reminder on an affirmative answer. The quota is
// re-checked here because turns may be minutes apart.
func (b *Chatbot) handleConfirming(identity string, user *domain.User, text string) response {
	if !isAffirmative(text) {
		return response{
			message:   "❌ Tudo bem, lembrete descartado. Quando precisar, é só me chamar!",
			nextState: domain.StateInitial,
		}
	}

	ctx := b.contexts.GetOrCreate(identity)
	if ctx.DraftEventAt == nil || ctx.DraftLeadMinutes == nil || ctx.DraftMessage == "" {
		return response{
			message:   "❌ Perdi o fio da meada. Vamos recomeçar: o que você quer lembrar?",
			nextState: domain.StateInitial,
		}
	}

	decision, err := b.plans.CanCreate(user.ID)
	if err != nil {
		log.Printf("Error re-checking plan for %s: %v", user.ID, err)
		return response{message: genericApology, nextState: domain.StateConfirming}
	}
	if !decision.Allowed {
		return response{message: "🚫 " + decision.Reason, nextState: domain.StateInitial}
	}

	reminder, err := b.reminders.Create(user.ID, ctx.DraftMessage, *ctx.DraftEventAt, *ctx.DraftLeadMinutes)
	if err != nil {
		log.Printf("Error creating reminder for %s: %v", user.ID, err)
		return response{message: genericApology, nextState: domain.StateConfirming}
	}

	log.Printf("Created reminder %s for user %s", reminder.ID, user.ID)
	notice := "na hora do evento"
	if reminder.AdvanceMinutes > 0 {
		notice = fmt.Sprintf("%d minutos antes", reminder.AdvanceMinutes)
	}
	return response{
		message: fmt.Sprintf("✅ Lembrete criado!\n\n*%s*\n🗓 %s\n🔔 Aviso: %s",
			reminder.Message, b.parser.FormatMoment(reminder.EventAt), notice),
		nextState: domain.StateInitial,
	}
}

// handleConfirmingDelete cancels the pending target on yes, keeps it on no,
// and re-prompts on anything else.
func (b *Chatbot) handleConfirmingDelete(identity string, user *domain.User, text string) response {
	switch {
	case isAffirmative(text):
		ctx := b.contexts.GetOrCreate(identity)
		if ctx.PendingDeleteID == "" {
			return response{
				message:   "❌ Não achei o lembrete selecionado. Digite /lembretes e tente de novo.",
				nextState: domain.StateInitial,
			}
		}
		cancelled, err := b.reminders.Cancel(ctx.PendingDeleteID, user.ID)
		if err != nil {
			log.Printf("Error cancelling reminder %s: %v", ctx.PendingDeleteID, err)
			return response{message: genericApology, nextState: domain.StateInitial}
		}
		if !cancelled {
			return response{
				message:   "⚠️ Esse lembrete já foi enviado ou cancelado antes.",
				nextState: domain.StateInitial,
			}
		}
		return response{message: "🗑 Lembrete cancelado!", nextState: domain.StateInitial}

	case isNegative(text):
		return response{message: "👍 Beleza, o lembrete continua ativo.", nextState: domain.StateInitial}

	default:
		return response{
			message:   "Responda *sim* para cancelar o lembrete ou *não* para mantê-lo.",
			nextState: domain.StateConfirmingDelete,
		}
	}
}

// handleSelectingDeleteTarget resolves a 1-based pick from the candidate list.
func (b *Chatbot) handleSelectingDeleteTarget(identity string, text string) response {
	ctx := b.contexts.GetOrCreate(identity)
	if len(ctx.DeleteCandidates) == 0 {
		return response{
			message:   "❌ Não achei a lista de lembretes. Digite /lembretes e tente de novo.",
			nextState: domain.StateInitial,
		}
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > len(ctx.DeleteCandidates) {
		return response{
			message:   fmt.Sprintf("Responda com um número de 1 a %d.", len(ctx.DeleteCandidates)),
			nextState: domain.StateSelectingDeleteTarget,
		}
	}

	target := ctx.DeleteCandidates[n-1]
	b.contexts.Update(identity, func(c *domain.Context) {
		c.PendingDeleteID = target.ReminderID
		c.DeleteCandidates = nil
	})
	return response{
		message: fmt.Sprintf("🗑 Cancelar este lembrete?\n\n*%s*\n🔔 %s\n\nResponda *sim* ou *não*.",
			target.Message, b.parser.FormatMoment(target.EventAt)),
		nextState: domain.StateConfirmingDelete,
	}
}

func (b *Chatbot) confirmationSummary(message string, eventAt time.Time, leadMinutes int) string {
	notice := "na hora do evento"
	if leadMinutes > 0 {
		notice = fmt.Sprintf("%d minutos antes", leadMinutes)
	}
	return fmt.Sprintf("Confirma o lembrete?\n\n*%s*\n🗓 %s\n🔔 Aviso: %s\n\nResponda *sim* para confirmar.",
		message, b.parser.FormatMoment(eventAt), notice)
}
