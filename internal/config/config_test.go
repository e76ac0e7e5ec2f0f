package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.DatabaseURL != "task_tracker.db" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.UploadDir != "uploads" {
		t.Fatalf("unexpected upload dir %q", cfg.UploadDir)
	}
	if cfg.TokenTTL != time.Hour {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.ReminderWindow != 48*time.Hour {
		t.Fatalf("unexpected reminder window %v", cfg.ReminderWindow)
	}
	if cfg.MailEnabled() || cfg.TelegramEnabled() {
		t.Fatal("expected notifications to be disabled by default")
	}
}

func TestLoadRequiresTokenVerifier(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWKS_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET or JWKS_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BASE_URL", "https://tasks.example.com/")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://tasks.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl %v", cfg.TokenTTL)
	}
	if cfg.SMTPPort != 2525 || !cfg.MailEnabled() {
		t.Fatalf("unexpected smtp config %+v", cfg)
	}
	if cfg.MailFrom != "bot@example.com" {
		t.Fatalf("expected MailFrom to default to SMTP_USER, got %q", cfg.MailFrom)
	}
	if !cfg.TelegramEnabled() || cfg.TelegramChatID != -1001 {
		t.Fatalf("unexpected telegram config %+v", cfg)
	}
	if !cfg.Debug {
		t.Fatal("expected debug to be enabled")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CACHE_TTL", "-1s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative CACHE_TTL")
	}
}
