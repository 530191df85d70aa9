package feed

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-trainer/internal/session"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

type SnapshotCallback func(snap session.Snapshot)

type StateCallback func(state State)

const (
	dialTimeout      = 10 * time.Second
	pingTimeout      = 3 * time.Second
	maxBackoff       = 30 * time.Second
	maxPingFailures  = 2
	defaultPingEvery = 30 * time.Second
)

// Client follows one session feed and reconnects with backoff when the
// connection drops.
type Client struct {
	url         string
	maxAttempts int
	baseDelay   time.Duration
	pingEvery   time.Duration
	header      http.Header
	log         *zap.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	stateMu sync.RWMutex
	state   State

	cbMu     sync.RWMutex
	nextCB   int
	snapCbs  map[int]SnapshotCallback
	stateCbs map[int]StateCallback

	rootCtx    context.Context
	rootCancel context.CancelFunc
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

type Option func(*Client)

func WithPingInterval(d time.Duration) Option { return func(c *Client) { c.pingEvery = d } }

func WithHeader(h http.Header) Option { return func(c *Client) { c.header = h.Clone() } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New builds a client for a ws:// or wss:// feed URL. maxAttempts <= 0
// disables reconnecting.
func New(url string, maxAttempts int, baseDelay time.Duration, opts ...Option) *Client {
	c := &Client{
		url:         url,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		pingEvery:   defaultPingEvery,
		header:      http.Header{},
		log:         zap.NewNop(),
		state:       StateDisconnected,
		snapCbs:     make(map[int]SnapshotCallback),
		stateCbs:    make(map[int]StateCallback),
		stopCh:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	return c
}

// FeedURL turns an http(s) base URL and session id into the feed address.
func FeedURL(baseURL, sessionID string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/sessions/" + sessionID + "/feed"
}

func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) Connect(ctx context.Context) error {
	if s := c.State(); s == StateConnected || s == StateConnecting {
		return nil
	}
	if c.stopping() {
		return errors.New("feed client closed")
	}
	c.setState(StateConnecting)
	if err := c.dial(ctx); err != nil {
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.header,
	})
	if err != nil {
		return err
	}
	c.connMu.Lock()
	if c.stopping() {
		c.connMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "close")
		return errors.New("feed client closed")
	}
	c.conn = conn
	c.wg.Add(2)
	c.connMu.Unlock()
	c.setState(StateConnected)

	go c.listen(conn)
	go c.pingLoop(conn)
	return nil
}

func (c *Client) listen(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var snap session.Snapshot
		if err := wsjson.Read(c.rootCtx, conn, &snap); err != nil {
			if c.stopping() {
				return
			}
			c.log.Debug("feed_read_failed", zap.Error(err))
			c.drop(conn, "reconnect")
			return
		}
		c.cbMu.RLock()
		cbs := make([]SnapshotCallback, 0, len(c.snapCbs))
		for _, cb := range c.snapCbs {
			cbs = append(cbs, cb)
		}
		c.cbMu.RUnlock()
		for _, cb := range cbs {
			cb(snap)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingEvery)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-c.rootCtx.Done():
			return
		case <-t.C:
			if c.current() != conn {
				return
			}
			ctx, cancel := context.WithTimeout(c.rootCtx, pingTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= maxPingFailures {
				c.drop(conn, "ping failure")
				return
			}
		}
	}
}

// drop closes conn if it is still current and starts reconnecting.
func (c *Client) drop(conn *websocket.Conn, reason string) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn = nil
	c.connMu.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, reason)
	if c.stopping() {
		return
	}
	c.setState(StateDisconnected)
	c.scheduleReconnect()
}

func (c *Client) current() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *Client) scheduleReconnect() {
	if c.maxAttempts <= 0 || c.stopping() {
		return
	}
	c.setState(StateReconnecting)
	go func() {
		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(Backoff(c.baseDelay, attempt)):
			}
			if err := c.dial(c.rootCtx); err != nil {
				c.log.Debug("feed_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			return
		}
		c.setState(StateFailed)
	}()
}

// Backoff doubles base per attempt, capped at 30s.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

func (c *Client) OnSnapshot(cb SnapshotCallback) int {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextCB++
	c.snapCbs[c.nextCB] = cb
	return c.nextCB
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.nextCB++
	c.stateCbs[c.nextCB] = cb
	return c.nextCB
}

func (c *Client) RemoveCallback(id int) {
	c.cbMu.Lock()
	delete(c.snapCbs, id)
	delete(c.stateCbs, id)
	c.cbMu.Unlock()
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	changed := c.state != s
	c.state = s
	c.stateMu.Unlock()
	if !changed {
		return
	}
	c.cbMu.RLock()
	cbs := make([]StateCallback, 0, len(c.stateCbs))
	for _, cb := range c.stateCbs {
		cbs = append(cbs, cb)
	}
	c.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(s)
	}
}

// Close stops reconnecting, closes the connection and waits for the
// reader and pinger to exit.
func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	c.rootCancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.setState(StateDisconnected)
		return nil
	}
}

func (c *Client) stopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
