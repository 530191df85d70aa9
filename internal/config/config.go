package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	HTTPAddr        string
	OriginAllowlist []string

	RedisURL    string
	ProgressKey string
	DatabaseURL string

	ChatBackend string
	OpenAIKey   string
	GroqKey     string
	ChatBaseURL string
	ChatTimeout time.Duration

	DefaultTimeControl string
	ThinkDelay         time.Duration
	SessionIdleTTL     time.Duration

	MessagesDir string
}

// ChatKey returns the API key for the configured chat backend.
func (c *AppConfig) ChatKey() string {
	if c.ChatBackend == "groq" {
		return c.GroqKey
	}
	return c.OpenAIKey
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:           ":8080",
		ProgressKey:        "tacticsProgress",
		ChatTimeout:        20 * time.Second,
		DefaultTimeControl: "10+5",
		ThinkDelay:         time.Second,
		SessionIdleTTL:     time.Hour,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.OriginAllowlist = splitList(os.Getenv("ORIGIN_ALLOWLIST"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	if v := strings.TrimSpace(os.Getenv("PROGRESS_KEY")); v != "" {
		cfg.ProgressKey = v
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.ChatBackend = strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_BACKEND")))
	cfg.OpenAIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.GroqKey = strings.TrimSpace(os.Getenv("GROQ_API_KEY"))
	cfg.ChatBaseURL = strings.TrimSpace(os.Getenv("CHAT_BASE_URL"))
	if v := strings.TrimSpace(os.Getenv("CHAT_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChatTimeout = time.Duration(n) * time.Second
		}
	}

	if v := strings.TrimSpace(os.Getenv("DEFAULT_TIME_CONTROL")); v != "" {
		cfg.DefaultTimeControl = v
	}
	if v := strings.TrimSpace(os.Getenv("THINK_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ThinkDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_IDLE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionIdleTTL = time.Duration(n) * time.Second
		}
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	switch cfg.ChatBackend {
	case "":
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required when CHAT_BACKEND=openai")
		}
	case "groq":
		if cfg.GroqKey == "" {
			return nil, errors.New("GROQ_API_KEY is required when CHAT_BACKEND=groq")
		}
	default:
		return nil, fmt.Errorf("unknown CHAT_BACKEND %q", cfg.ChatBackend)
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
