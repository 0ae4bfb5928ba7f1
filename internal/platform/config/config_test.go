package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// 置空表示“未设置”，Load 必须回落到默认值
	for _, key := range []string{
		"ADDR", "GENERATOR_SLOT", "CLICK_FLUSH_THRESHOLD",
		"SESSION_IDLE_LIFETIME", "SESSION_ABSOLUTE_LIFETIME",
		"SESSION_COOKIE_NAME", "RATELIMIT_ENABLED", "MIGRATE_ON_START",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Addr != ":9999" {
		t.Fatalf("Addr: got %q, want %q", cfg.Addr, ":9999")
	}
	if cfg.GeneratorSlot != 0 {
		t.Fatalf("GeneratorSlot: got %d, want 0", cfg.GeneratorSlot)
	}
	if cfg.ClickFlushThreshold != 5 {
		t.Fatalf("ClickFlushThreshold: got %d, want 5", cfg.ClickFlushThreshold)
	}
	if cfg.SessionIdleLifetime != 30*time.Minute {
		t.Fatalf("SessionIdleLifetime: got %v, want 30m", cfg.SessionIdleLifetime)
	}
	if cfg.SessionAbsoluteLifetime != 3*time.Hour {
		t.Fatalf("SessionAbsoluteLifetime: got %v, want 3h", cfg.SessionAbsoluteLifetime)
	}
	if cfg.SessionCookieName != "session_id" {
		t.Fatalf("SessionCookieName: got %q, want %q", cfg.SessionCookieName, "session_id")
	}
	if !cfg.RateLimitEnabled {
		t.Fatal("RateLimitEnabled: got false, want true by default")
	}
	if cfg.MigrateOnStart {
		t.Fatal("MigrateOnStart: got true, want false by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ADDR", ":8080")
	t.Setenv("GENERATOR_SLOT", "42")
	t.Setenv("CLICK_FLUSH_THRESHOLD", "25")
	t.Setenv("SESSION_IDLE_LIFETIME", "45m")
	t.Setenv("SESSION_ABSOLUTE_LIFETIME", "6h")
	t.Setenv("SESSION_COOKIE_NAME", "sid")
	t.Setenv("SESSION_COOKIE_SECURE", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("RATELIMIT_ENABLED", "false")
	t.Setenv("MIGRATE_ON_START", "true")

	cfg := Load()

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr: got %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.GeneratorSlot != 42 {
		t.Fatalf("GeneratorSlot: got %d, want 42", cfg.GeneratorSlot)
	}
	if cfg.ClickFlushThreshold != 25 {
		t.Fatalf("ClickFlushThreshold: got %d, want 25", cfg.ClickFlushThreshold)
	}
	if cfg.SessionIdleLifetime != 45*time.Minute {
		t.Fatalf("SessionIdleLifetime: got %v, want 45m", cfg.SessionIdleLifetime)
	}
	if cfg.SessionAbsoluteLifetime != 6*time.Hour {
		t.Fatalf("SessionAbsoluteLifetime: got %v, want 6h", cfg.SessionAbsoluteLifetime)
	}
	if cfg.SessionCookieName != "sid" {
		t.Fatalf("SessionCookieName: got %q, want %q", cfg.SessionCookieName, "sid")
	}
	if !cfg.SessionCookieSecure {
		t.Fatal("SessionCookieSecure: got false, want true")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel: got %v, want debug", cfg.LogLevel)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:9092" || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("KafkaBrokers: got %v, want [a:9092 b:9092]", cfg.KafkaBrokers)
	}
	if cfg.RateLimitEnabled {
		t.Fatal("RateLimitEnabled: got true, want false")
	}
	if !cfg.MigrateOnStart {
		t.Fatal("MigrateOnStart: got false, want true")
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("GENERATOR_SLOT", "not-a-number")
	t.Setenv("CLICK_FLUSH_THRESHOLD", "-3")
	t.Setenv("SESSION_IDLE_LIFETIME", "soon")
	t.Setenv("REDIS_DB", "-1")

	cfg := Load()

	if cfg.GeneratorSlot != 0 {
		t.Fatalf("GeneratorSlot with garbage env: got %d, want default 0", cfg.GeneratorSlot)
	}
	if cfg.ClickFlushThreshold != 5 {
		t.Fatalf("ClickFlushThreshold with negative env: got %d, want default 5", cfg.ClickFlushThreshold)
	}
	if cfg.SessionIdleLifetime != 30*time.Minute {
		t.Fatalf("SessionIdleLifetime with garbage env: got %v, want default 30m", cfg.SessionIdleLifetime)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("RedisDB with negative env: got %d, want default 0", cfg.RedisDB)
	}
}
