// Package bot is the Telegram transport. It owns the webhook server and the
// outbound send calls; everything conversational lives in the chatbot package.
package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Duhfx/LembrAI/config"
	"github.com/Duhfx/LembrAI/internal/service"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	calendar *service.CalendarService
	handler  MessageHandler
	server   *http.Server
}

// MessageHandler consumes one inbound message. Implemented by the chatbot.
type MessageHandler interface {
	ProcessMessage(identity, text string, isVoiceOrigin bool)
}

func New(cfg *config.Config, calendarSvc *service.CalendarService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:      api,
		cfg:      cfg,
		calendar: calendarSvc,
	}
	bot.setCommands()
	return bot, nil
}

// SetHandler wires the dialog engine in. Must be called before Start.
func (b *Bot) SetHandler(h MessageHandler) {
	b.handler = h
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "lembretes", Description: "📋 Listar lembretes ativos"},
		{Command: "plano", Description: "💎 Ver plano e uso"},
		{Command: "agenda", Description: "📅 Link do calendário"},
		{Command: "cancelar", Description: "❌ Abandonar a conversa atual"},
		{Command: "ajuda", Description: "❓ Ajuda"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.LastErrorDate != 0 {
		log.Printf("Webhook last error: %s", info.LastErrorMessage)
	}

	log.Printf("Webhook set to: %s", webhookURL)
	return nil
}

func (b *Bot) Start(ctx context.Context) error {
	updates := b.api.ListenForWebhook("/bot")

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	http.HandleFunc("/feed/", b.handleFeed)

	b.server = &http.Server{
		Addr:    ":" + b.cfg.ServerPort,
		Handler: nil, // use DefaultServeMux
	}

	go func() {
		log.Printf("Starting webhook server on :%s", b.cfg.ServerPort)
		if err := b.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	if b.server != nil {
		return b.server.Shutdown(ctx)
	}
	return nil
}

// handleFeed serves a user's iCalendar feed at /feed/<token>.ics.
func (b *Bot) handleFeed(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/feed/"), ".ics")
	if token == "" || strings.Contains(token, "/") {
		http.NotFound(w, r)
		return
	}

	data, found, err := b.calendar.FeedForToken(token)
	if err != nil {
		log.Printf("Error building calendar feed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write(data)
}

// SendText sends a Markdown message to the chat behind identity.
func (b *Bot) SendText(identity, text string) (string, error) {
	chatID, err := strconv.ParseInt(identity, 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad identity %q: %w", identity, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	sent, err := b.api.Send(msg)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}

const welcomeText = `👋 *Oi! Eu sou o LembrAI.*

Me mande o que você quer lembrar em linguagem natural, por exemplo:
_"me lembre de pagar o aluguel amanhã às 10h"_

Eu pergunto o que faltar, confirmo com você e te aviso na hora certa. ⏰

Digite /ajuda para ver tudo que eu sei fazer.`

// SendWelcome sends the one-time onboarding message.
func (b *Bot) SendWelcome(identity string) (string, error) {
	return b.SendText(identity, welcomeText)
}
