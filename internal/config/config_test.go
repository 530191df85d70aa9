package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "REDIS_URL", "CHAT_BACKEND", "THINK_DELAY_MS", "ORIGIN_ALLOWLIST"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.ProgressKey != "tacticsProgress" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ThinkDelay != time.Second || cfg.DefaultTimeControl != "10+5" {
		t.Fatalf("unexpected game defaults: %+v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("ORIGIN_ALLOWLIST", " http://a.test , ,http://b.test")
	t.Setenv("THINK_DELAY_MS", "250")
	t.Setenv("CHAT_BACKEND", "groq")
	t.Setenv("GROQ_API_KEY", "gk")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.OriginAllowlist) != 2 || cfg.OriginAllowlist[1] != "http://b.test" {
		t.Fatalf("allowlist = %v", cfg.OriginAllowlist)
	}
	if cfg.ThinkDelay != 250*time.Millisecond {
		t.Fatalf("think delay = %v", cfg.ThinkDelay)
	}
	if cfg.ChatKey() != "gk" {
		t.Fatalf("chat key = %q", cfg.ChatKey())
	}
}

func TestLoadRequiresChatKey(t *testing.T) {
	t.Setenv("CHAT_BACKEND", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing key error")
	}
	t.Setenv("CHAT_BACKEND", "claude")
	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}
