// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath         string
	HTTPAddr             string
	LogLevel             string
	StaticDir            string
	GeminiAPIKey         string
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	AIModel              string
	FetchIntervalMinutes int
	PacingSeconds        int
	MaxNewsAgeHours      int
	TelegramBotToken     string
	TelegramChannelID    int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:  envOrDefault("DATABASE_PATH", "./data/news.db"),
		HTTPAddr:      envOrDefault("HTTP_ADDR", "127.0.0.1:8000"),
		LogLevel:      envOrDefault("LOG_LEVEL", "info"),
		StaticDir:     envOrDefault("STATIC_DIR", "./static"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		AIModel:       envOrDefault("AI_MODEL", "gpt-4o-mini"),
	}

	var err error
	if cfg.FetchIntervalMinutes, err = envInt("FETCH_INTERVAL_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.FetchIntervalMinutes <= 0 {
		return nil, fmt.Errorf("FETCH_INTERVAL_MINUTES must be positive")
	}
	if cfg.PacingSeconds, err = envInt("PACING_SECONDS", 4); err != nil {
		return nil, err
	}
	if cfg.MaxNewsAgeHours, err = envInt("MAX_NEWS_AGE_HOURS", 48); err != nil {
		return nil, err
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if raw := os.Getenv("TELEGRAM_CHANNEL_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHANNEL_ID %q: %w", raw, err)
		}
		cfg.TelegramChannelID = id
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}
