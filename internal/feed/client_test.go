package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-trainer/internal/session"
)

// newTestFeed serves one snapshot per connection and then closes it, so a
// client reconnects and sees a second snapshot.
func newTestFeed(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	n := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		n++
		version := uint64(n)
		mu.Unlock()
		_ = wsjson.Write(r.Context(), c, session.Snapshot{ID: "s1", Version: version})
		_ = c.Close(websocket.StatusGoingAway, "bye")
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFeedURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/":  "ws://localhost:8080/sessions/abc/feed",
		"https://trainer.example": "wss://trainer.example/sessions/abc/feed",
		"ws://h":                  "ws://h/sessions/abc/feed",
	}
	for in, want := range cases {
		if got := FeedURL(in, "abc"); got != want {
			t.Fatalf("FeedURL(%q) = %q want %q", in, got, want)
		}
	}
}

func TestBackoff(t *testing.T) {
	if Backoff(time.Second, 1) != time.Second || Backoff(time.Second, 3) != 4*time.Second {
		t.Fatalf("unexpected backoff progression")
	}
	if Backoff(time.Second, 20) != maxBackoff {
		t.Fatalf("backoff not capped")
	}
	if Backoff(0, 1) != time.Second {
		t.Fatalf("zero base should default")
	}
}

func TestClientReconnects(t *testing.T) {
	ts := newTestFeed(t)
	c := New(FeedURL(ts.URL, "s1"), 3, 10*time.Millisecond)

	got := make(chan uint64, 8)
	c.OnSnapshot(func(s session.Snapshot) { got <- s.Version })
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	seen := map[uint64]bool{}
	deadline := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case v := <-got:
			seen[v] = true
		case <-deadline:
			t.Fatalf("saw versions %v before deadline", seen)
		}
	}
}

func TestCloseStopsClient(t *testing.T) {
	ts := newTestFeed(t)
	c := New(FeedURL(ts.URL, "s1"), 0, time.Millisecond)
	var states []State
	var mu sync.Mutex
	c.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.State() != StateDisconnected {
		t.Fatalf("state = %s", c.State())
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Fatalf("connect after close should fail")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 || states[0] != StateConnecting {
		t.Fatalf("states = %v", states)
	}
}
