package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/session"
	"github.com/park285/cheese-trainer/internal/store"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultPlayer  = "guest"
	archiveTimeout = 5 * time.Second
)

type entry struct {
	sess   *session.Session
	player string
}

// Hub owns the live sessions. Each session has its own lock; the hub only
// guards the registry.
type Hub struct {
	deps     session.Deps
	defaults session.Config
	repo     store.Repository
	idleTTL  time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry

	closeOnce sync.Once
	stop      chan struct{}
}

type HubOption func(*Hub)

// WithRepository archives finished games and updates profiles.
func WithRepository(r store.Repository) HubOption { return func(h *Hub) { h.repo = r } }

// WithDefaults sets the config that start requests overlay.
func WithDefaults(cfg session.Config) HubOption { return func(h *Hub) { h.defaults = cfg } }

func WithIdleTTL(d time.Duration) HubOption { return func(h *Hub) { h.idleTTL = d } }

func WithClock(now func() time.Time) HubOption { return func(h *Hub) { h.now = now } }

func NewHub(deps session.Deps, logger *zap.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	h := &Hub{
		deps:     deps,
		defaults: session.DefaultConfig(),
		idleTTL:  time.Hour,
		log:      logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
		stop:     make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Defaults is the config start requests overlay.
func (h *Hub) Defaults() session.Config { return h.defaults }

// Create registers a new session in Setup for player.
func (h *Hub) Create(player string) (string, *session.Session) {
	player = strings.TrimSpace(player)
	if player == "" {
		player = DefaultPlayer
	}
	id := uuid.NewString()
	s := session.New(id, h.deps)
	if h.repo != nil {
		s.OnFinish(func(snap session.Snapshot) { h.archive(player, snap) })
	}
	h.mu.Lock()
	h.sessions[id] = &entry{sess: s, player: player}
	h.mu.Unlock()
	h.log.Info("session_created", zap.String("session_id", id), zap.String("player", player))
	return id, s
}

func (h *Hub) Get(id string) (*session.Session, error) {
	h.mu.RLock()
	e, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e.sess, nil
}

func (h *Hub) Player(id string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if e, ok := h.sessions[id]; ok {
		return e.player
	}
	return ""
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Remove closes and forgets a session.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	e, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		e.sess.Close()
	}
	return ok
}

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (h *Hub) Sweep() int {
	if h.idleTTL <= 0 {
		return 0
	}
	cutoff := h.now().Add(-h.idleTTL)
	var stale []*entry
	h.mu.Lock()
	for id, e := range h.sessions {
		if e.sess.LastActivity().Before(cutoff) {
			stale = append(stale, e)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()
	for _, e := range stale {
		e.sess.Close()
		h.log.Info("session_expired", zap.String("session_id", e.sess.ID()))
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx ends or Close is called.
func (h *Hub) Run(ctx context.Context) {
	interval := h.idleTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-t.C:
			h.Sweep()
		}
	}
}

// Close stops every session. Safe to call more than once.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.stop)
		h.mu.Lock()
		all := h.sessions
		h.sessions = make(map[string]*entry)
		h.mu.Unlock()
		for _, e := range all {
			e.sess.Close()
		}
	})
}

func (h *Hub) archive(player string, snap session.Snapshot) {
	g := GameRecord(player, snap)
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	profile, delta, err := store.Archive(ctx, h.repo, g)
	if err != nil {
		h.log.Error("archive_failed", zap.String("session_id", snap.ID), zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.String("session_id", snap.ID),
		zap.String("player", player),
		zap.String("outcome", string(snap.Outcome)),
		zap.Int("rating_delta", delta),
	}
	if profile != nil {
		fields = append(fields, zap.Int("rating", profile.Rating))
	}
	h.log.Info("game_archived", fields...)
}

// GameRecord converts a finished snapshot into an archive row. The archive
// key is derived from the session id and start time, since one session can
// host several games.
func GameRecord(player string, snap session.Snapshot) *store.Game {
	key := uuid.NewSHA1(uuid.NameSpaceURL, []byte(snap.ID+"@"+snap.StartedAt.UTC().Format(time.RFC3339Nano)))
	return &store.Game{
		SessionUUID:    key.String(),
		Player:         player,
		Mode:           string(snap.Mode),
		Tier:           string(snap.Config.Tier),
		HumanColor:     string(snap.Config.HumanColor),
		Opponent:       snap.Opponent.Name,
		OpponentRating: snap.Opponent.Rating,
		TimeControl:    snap.Config.TimeControl.String(),
		Result:         snap.Result,
		Outcome:        string(snap.Outcome),
		Method:         snap.Method,
		MovesUCI:       snap.UCIHistory,
		MovesSAN:       snap.MoveHistory,
		StartedAt:      snap.StartedAt,
		EndedAt:        snap.EndedAt,
	}
}
