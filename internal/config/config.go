package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the tracker.
type Config struct {
	ListenAddr  string
	DatabaseURL string
	UploadDir   string
	BaseURL     string
	Debug       bool

	JWTSecret string
	TokenTTL  time.Duration
	JWKSURL   string

	RedisURL string
	CacheTTL time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	TelegramToken  string
	TelegramChatID int64

	NotifyTimeout  time.Duration
	ReminderTime   string
	ReminderWindow time.Duration
}

// MailEnabled reports whether SMTP delivery is configured.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// TelegramEnabled reports whether Telegram delivery is configured.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:     env("LISTEN_ADDR"),
		DatabaseURL:    env("DATABASE_URL"),
		UploadDir:      env("UPLOAD_DIR"),
		BaseURL:        strings.TrimRight(env("BASE_URL"), "/"),
		JWTSecret:      env("JWT_SECRET"),
		JWKSURL:        env("JWKS_URL"),
		RedisURL:       env("REDIS_URL"),
		SMTPHost:       env("SMTP_HOST"),
		SMTPUser:       env("SMTP_USER"),
		SMTPPassword:   env("SMTP_PASSWORD"),
		MailFrom:       env("MAIL_FROM"),
		TelegramToken:  env("TELEGRAM_TOKEN"),
		ReminderTime:   env("REMINDER_TIME"),
		TokenTTL:       time.Hour,
		CacheTTL:       5 * time.Minute,
		SMTPPort:       587,
		NotifyTimeout:  30 * time.Second,
		ReminderWindow: 48 * time.Hour,
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "task_tracker.db"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}
	if cfg.ReminderTime == "" {
		cfg.ReminderTime = "09:00"
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = cfg.SMTPUser
	}

	var err error
	if raw := env("DEBUG"); raw != "" {
		if cfg.Debug, err = strconv.ParseBool(raw); err != nil {
			return cfg, fmt.Errorf("invalid DEBUG: %w", err)
		}
	}
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return cfg, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", cfg.CacheTTL); err != nil {
		return cfg, err
	}
	if cfg.NotifyTimeout, err = durationEnv("NOTIFY_TIMEOUT", cfg.NotifyTimeout); err != nil {
		return cfg, err
	}
	if cfg.ReminderWindow, err = durationEnv("REMINDER_WINDOW", cfg.ReminderWindow); err != nil {
		return cfg, err
	}
	if raw := env("SMTP_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return cfg, fmt.Errorf("invalid SMTP_PORT %q", raw)
		}
		cfg.SMTPPort = port
	}
	if raw := env("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q", raw)
		}
		cfg.TelegramChatID = id
	}

	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return cfg, fmt.Errorf("JWT_SECRET or JWKS_URL is required")
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}
