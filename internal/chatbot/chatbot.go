// Package chatbot is the dialog state machine. One inbound message is
// processed fully before the next one for the same identity; every path ends
// in a state transition and a reply, never a hard failure.
package chatbot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Duhfx/LembrAI/internal/ai"
	"github.com/Duhfx/LembrAI/internal/convo"
	"github.com/Duhfx/LembrAI/internal/domain"
	"github.com/Duhfx/LembrAI/internal/nlp"
	"github.com/Duhfx/LembrAI/internal/service"
	"github.com/Duhfx/LembrAI/internal/storage"
)

// Messenger is the outbound channel. All sends are fallible and carry no
// retry at this boundary.
type Messenger interface {
	SendText(identity, text string) (string, error)
	SendWelcome(identity string) (string, error)
}

type Chatbot struct {
	contexts  convo.Store
	storage   *storage.Storage
	reminders *service.ReminderService
	plans     *service.PlanService
	extractor ai.Extractor
	parser    *nlp.Parser
	messenger Messenger
	feedBase  string // public base URL for calendar feed links
	now       func() time.Time
}

func New(
	contexts convo.Store,
	store *storage.Storage,
	reminderSvc *service.ReminderService,
	planSvc *service.PlanService,
	extractor ai.Extractor,
	parser *nlp.Parser,
	messenger Messenger,
	feedBase string,
) *Chatbot {
	return &Chatbot{
		contexts:  contexts,
		storage:   store,
		reminders: reminderSvc,
		plans:     planSvc,
		extractor: extractor,
		parser:    parser,
		messenger: messenger,
		feedBase:  strings.TrimRight(feedBase, "/"),
		now:       time.Now,
	}
}

// response is one handler's outcome: what to say and where the dialog goes.
type response struct {
	message   string
	nextState domain.ConversationState
}

const genericApology = "❌ Ops! Algo deu errado. Por favor, tente novamente."

// ProcessMessage runs one dialog turn. Turns for the same identity are
// serialized; different identities proceed in parallel.
func (b *Chatbot) ProcessMessage(identity, text string, isVoiceOrigin bool) {
	release := b.contexts.Acquire(identity)
	defer release()

	text = strings.TrimSpace(text)
	log.Printf("Processing message from %s: %q", identity, text)

	ctx := b.contexts.GetOrCreate(identity)

	user, err := b.ensureUser(identity, ctx)
	if err != nil {
		log.Printf("Error resolving user %s: %v", identity, err)
		b.send(identity, genericApology)
		return
	}

	b.maybeSendWelcome(user)

	if isVoiceOrigin && text == "" {
		b.send(identity, "🎤 Ainda não consigo ouvir áudios. Me manda por texto o que você quer lembrar!")
		return
	}
	if text == "" {
		return
	}

	// Command tokens escape the state machine from anywhere.
	if strings.HasPrefix(text, "/") {
		b.handleCommand(identity, user, text)
		return
	}

	var resp response
	switch ctx.State {
	case domain.StateInitial:
		resp = b.handleInitial(identity, user, text)
	case domain.StateAwaitingMoment:
		resp = b.handleAwaitingMoment(identity, text)
	case domain.StateAwaitingLeadTime:
		resp = b.handleAwaitingLeadTime(identity, user, text)
	case domain.StateConfirming:
		resp = b.handleConfirming(identity, user, text)
	case domain.StateConfirmingDelete:
		resp = b.handleConfirmingDelete(identity, user, text)
	case domain.StateSelectingDeleteTarget:
		resp = b.handleSelectingDeleteTarget(identity, text)
	default:
		resp = response{
			message:   "❌ Estado desconhecido. Digite /cancelar para recomeçar.",
			nextState: domain.StateInitial,
		}
	}

	if resp.message != "" {
		b.send(identity, resp.message)
	}

	if resp.nextState == domain.StateInitial {
		// Terminal transition: the dialog is over, drop the context.
		b.contexts.Clear(identity)
		return
	}

	b.contexts.Update(identity, func(c *domain.Context) {
		c.State = resp.nextState
		c.PushTurn("user", text)
		c.PushTurn("assistant", resp.message)
	})
}

// ensureUser looks the identity up, creating the user row on first contact.
func (b *Chatbot) ensureUser(identity string, ctx *domain.Context) (*domain.User, error) {
	user, err := b.storage.GetUserByPhone(identity)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		user = &domain.User{Phone: identity}
		if err := b.storage.CreateUser(user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		log.Printf("Created new user %s for %s", user.ID, identity)
	}

	if ctx.UserID == "" {
		b.contexts.Update(identity, func(c *domain.Context) {
			c.UserID = user.ID
		})
		ctx.UserID = user.ID
	}
	return user, nil
}

// maybeSendWelcome sends the onboarding message exactly once per user. The
// flag flip is atomic, so racing messages cannot double-send it.
func (b *Chatbot) maybeSendWelcome(user *domain.User) {
	if user.FirstContactSent {
		return
	}
	flipped, err := b.storage.MarkFirstContactSent(user.ID)
	if err != nil {
		log.Printf("Error marking first contact for %s: %v", user.ID, err)
		return
	}
	if !flipped {
		return
	}
	if _, err := b.messenger.SendWelcome(user.Phone); err != nil {
		log.Printf("Error sending welcome to %s: %v", user.Phone, err)
	}
}

func (b *Chatbot) send(identity, text string) {
	if _, err := b.messenger.SendText(identity, text); err != nil {
		log.Printf("Error sending message to %s: %v", identity, err)
	}
}

func (b *Chatbot) extract(text string, ctx *domain.Context, user *domain.User) *ai.Result {
	snapshot := ai.UserSnapshot{PlanType: user.PlanType}
	if usage, err := b.plans.Usage(user.ID); err == nil {
		snapshot.ActiveReminders = usage.ActiveReminders
		snapshot.MonthlyReminders = usage.MonthlyReminders
	}

	callCtx, cancel := context.WithTimeout(context.Background(), ai.RequestTimeout)
	defer cancel()

	result, err := b.extractor.Extract(callCtx, text, ctx.History, snapshot)
	if err != nil {
		log.Printf("Extractor failed for %s: %v", ctx.Identity, err)
		return &ai.Result{Intent: ai.IntentNone, Confidence: ai.ConfidenceLow}
	}
	return result
}
