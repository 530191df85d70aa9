package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is the repository used when no database is configured.
type Memory struct {
	mu sync.RWMutex

	nextID    int64
	byID      map[int64]*Game
	byPlayer  map[string][]*Game
	bySession map[string]*Game
	profiles  map[string]*Profile
}

func NewMemory() *Memory {
	return &Memory{
		byID:      make(map[int64]*Game),
		byPlayer:  make(map[string][]*Game),
		bySession: make(map[string]*Game),
		profiles:  make(map[string]*Profile),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) InsertGame(_ context.Context, game *Game) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("insert game: %w", ErrNilPayload)
	}
	key := strings.TrimSpace(game.SessionUUID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySession[key]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	g := cloneGame(game)
	g.ID = m.nextID
	m.byID[g.ID] = g
	m.bySession[key] = g
	m.byPlayer[g.Player] = append(m.byPlayer[g.Player], g)
	return g.ID, nil
}

func (m *Memory) GetRecentGames(_ context.Context, player string, limit int) ([]*Game, error) {
	limit = clampLimit(limit, defaultRecentLimit)
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := append([]*Game(nil), m.byPlayer[player]...)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]*Game, len(items))
	for i, g := range items {
		out[i] = cloneGame(g)
	}
	return out, nil
}

func (m *Memory) GetGame(_ context.Context, id int64) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.byID[id]; ok {
		return cloneGame(g), nil
	}
	return nil, nil
}

func (m *Memory) GetGameBySession(_ context.Context, sessionUUID string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.bySession[strings.TrimSpace(sessionUUID)]; ok {
		return cloneGame(g), nil
	}
	return nil, nil
}

func (m *Memory) GetProfile(_ context.Context, player string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[strings.TrimSpace(player)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) UpsertProfile(_ context.Context, p *Profile) error {
	if p == nil {
		return fmt.Errorf("upsert profile: %w", ErrNilPayload)
	}
	cp := *p
	m.mu.Lock()
	m.profiles[strings.TrimSpace(p.Player)] = &cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) UpdateProfile(_ context.Context, player string, fn func(*Profile) *Profile) (*Profile, error) {
	key := strings.TrimSpace(player)
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur *Profile
	if p, ok := m.profiles[key]; ok {
		cp := *p
		cur = &cp
	}
	next := fn(cur)
	if next == nil {
		return nil, fmt.Errorf("update profile: %w", ErrNilPayload)
	}
	stored := *next
	m.profiles[key] = &stored
	out := *next
	return &out, nil
}

func (m *Memory) Leaderboard(_ context.Context, limit int) ([]*Profile, error) {
	limit = clampLimit(limit, defaultLeaderboardLimit)
	m.mu.RLock()
	out := make([]*Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		if p.GamesPlayed == 0 {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		if out[i].GamesPlayed != out[j].GamesPlayed {
			return out[i].GamesPlayed > out[j].GamesPlayed
		}
		return out[i].Player < out[j].Player
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneGame(g *Game) *Game {
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &cp
}
