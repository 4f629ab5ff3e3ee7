package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Duhfx/LembrAI/config"
	"github.com/Duhfx/LembrAI/internal/ai"
	"github.com/Duhfx/LembrAI/internal/bot"
	"github.com/Duhfx/LembrAI/internal/chatbot"
	"github.com/Duhfx/LembrAI/internal/convo"
	"github.com/Duhfx/LembrAI/internal/nlp"
	"github.com/Duhfx/LembrAI/internal/scheduler"
	"github.com/Duhfx/LembrAI/internal/service"
	"github.com/Duhfx/LembrAI/internal/storage"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to init storage: %v", err)
	}
	defer store.Close()

	parser := nlp.NewParser(cfg.Timezone)

	reminderSvc := service.NewReminderService(store, parser)
	planSvc := service.NewPlanService(store, cfg.Timezone)
	calendarSvc := service.NewCalendarService(store)

	extractor := ai.NewGeminiExtractor(cfg.GeminiAPIKey, parser)
	if extractor.IsConfigured() {
		log.Println("Gemini extractor enabled")
	} else {
		log.Println("GEMINI_API_KEY not set, using offline parser only")
	}

	contexts := convo.NewMemoryStore(convo.DefaultTimeout)

	tgBot, err := bot.New(cfg, calendarSvc)
	if err != nil {
		log.Fatalf("Failed to init bot: %v", err)
	}

	dialog := chatbot.New(contexts, store, reminderSvc, planSvc, extractor, parser, tgBot, cfg.PublicBaseURL)
	tgBot.SetHandler(dialog)

	if err := tgBot.SetupWebhook(); err != nil {
		log.Fatalf("Failed to setup webhook: %v", err)
	}

	sched := scheduler.New(cfg.Timezone, store, contexts, parser)
	sched.SetSender(tgBot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Printf("Bot error: %v", err)
		}
	}()

	log.Println("LembrAI started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := tgBot.Stop(shutdownCtx); err != nil {
		log.Printf("Error stopping bot: %v", err)
	}

	log.Println("LembrAI stopped")
}
