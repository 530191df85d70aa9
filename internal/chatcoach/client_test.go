package chatcoach

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Shutdown()
		_ = ln.Close()
	})
	return NewClient(OpenAI, "test-key",
		WithBaseURL("http://chat.test/v1/chat/completions"),
		WithTimeout(2*time.Second),
		WithDial(func(string) (net.Conn, error) { return ln.Dial() }),
	)
}

func TestCompleteSendsPayload(t *testing.T) {
	var seen completionRequest
	var auth string
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		auth = string(ctx.Request.Header.Peek("Authorization"))
		_ = json.Unmarshal(ctx.PostBody(), &seen)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"choices":[{"message":{"role":"assistant","content":"Play e2e4"}}]}`)
	})
	got, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "Play e2e4" {
		t.Fatalf("content = %q", got)
	}
	if auth != "Bearer test-key" {
		t.Fatalf("auth = %q", auth)
	}
	if seen.Model != openAIModel || seen.Temperature != 0.7 || seen.MaxTokens != 150 || len(seen.Messages) != 1 {
		t.Fatalf("payload = %+v", seen)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"choices":[]}`)
	})
	if _, err := c.Complete(context.Background(), nil); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusBadGateway)
			return
		}
		ctx.SetBodyString(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	})
	got, err := c.Complete(context.Background(), nil)
	if err != nil || got != "ok" {
		t.Fatalf("Complete = %q, %v", got, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	})
	if _, err := c.Complete(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d", calls.Load())
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	c := NewClient(Groq, "")
	if _, err := c.Complete(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if c.model != groqModel || c.url != groqURL {
		t.Fatalf("groq defaults not applied: %s %s", c.model, c.url)
	}
}
