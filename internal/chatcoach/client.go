package chatcoach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Backend selects a chat-completion provider.
type Backend string

const (
	OpenAI Backend = "openai"
	Groq   Backend = "groq"
)

const (
	openAIURL   = "https://api.openai.com/v1/chat/completions"
	groqURL     = "https://api.groq.com/openai/v1/chat/completions"
	openAIModel = "gpt-3.5-turbo"
	groqModel   = "mixtral-8x7b-32768"

	defaultTemperature = 0.7
	defaultMaxTokens   = 150
)

var (
	ErrMalformedResponse = errors.New("invalid response from AI service")
	ErrNotConfigured     = errors.New("chat backend not configured")
)

// ParseBackend maps a config value to a Backend. Unknown values default to OpenAI.
func ParseBackend(s string) Backend {
	if strings.EqualFold(strings.TrimSpace(s), string(Groq)) {
		return Groq
	}
	return OpenAI
}

// Message is one chat turn. Role is system, user or assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Completer returns the assistant text for a message list.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

type Client struct {
	url    string
	model  string
	apiKey string
	http   *fasthttp.Client
	logger *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// WithBaseURL replaces the backend endpoint, typically for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.url = strings.TrimSpace(u)
		}
	}
}

func WithModel(m string) Option {
	return func(c *Client) {
		if strings.TrimSpace(m) != "" {
			c.model = m
		}
	}
}

// WithDial swaps the transport dialer, e.g. for an in-memory listener.
func WithDial(dial fasthttp.DialFunc) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(backend Backend, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:            openAIURL,
		model:          openAIModel,
		apiKey:         strings.TrimSpace(apiKey),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		logger:         zap.NewNop(),
		defaultTimeout: 20 * time.Second,
		retryMax:       3,
	}
	if backend == Groq {
		c.url = groqURL
		c.model = groqModel
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete posts msgs and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, msgs []Message) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", ErrNotConfigured
	}
	in := completionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	var out completionResponse
	if err := c.doJSON(ctx, in, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ErrMalformedResponse
	}
	return out.Choices[0].Message.Content, nil
}

func (c *Client) doJSON(ctx context.Context, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.url)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return lastErr
			}
			c.logger.Warn("chat_request_retry", zap.Int("attempt", attempt), zap.Error(err))
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			err := fmt.Errorf("chat api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if attempt == attempts || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			c.logger.Warn("chat_status_retry", zap.Int("attempt", attempt), zap.Int("status", status))
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
