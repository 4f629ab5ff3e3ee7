package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	TelegramToken string
	WebhookURL    string
	ServerPort    string
	DatabasePath  string
	Timezone      *time.Location
	GeminiAPIKey  string
	PublicBaseURL string
}

func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL == "" {
		return nil, fmt.Errorf("WEBHOOK_URL is required")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/lembrai.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "America/Sao_Paulo"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	// Empty key is fine: the offline parser takes over.
	geminiKey := os.Getenv("GEMINI_API_KEY")

	publicBaseURL := os.Getenv("PUBLIC_BASE_URL")
	if publicBaseURL == "" {
		publicBaseURL = webhookURL
	}

	return &Config{
		TelegramToken: token,
		WebhookURL:    webhookURL,
		ServerPort:    serverPort,
		DatabasePath:  dbPath,
		Timezone:      tz,
		GeminiAPIKey:  geminiKey,
		PublicBaseURL: publicBaseURL,
	}, nil
}
