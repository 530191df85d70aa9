package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is where the whole progress map lives.
const DefaultKey = "tacticsProgress"

// Store persists the drill-name -> percent map as one value. Save replaces
// whatever was stored; there is no merge.
type Store interface {
	Load(ctx context.Context) (map[string]float64, error)
	Save(ctx context.Context, m map[string]float64) error
}

type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to redisURL and pings it.
func NewRedisStore(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, errors.New("REDIS_URL required for progress store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, key), nil
}

func NewRedisStoreWithClient(rdb *redis.Client, key string) *RedisStore {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]float64, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]float64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	m := map[string]float64{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return m, nil
}

func (s *RedisStore) Save(ctx context.Context, m map[string]float64) error {
	if m == nil {
		m = map[string]float64{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key, raw, 0).Err(); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// parseRedisURL accepts redis:// and rediss:// URLs. A missing port means
// 6379 and rediss enables TLS.
func parseRedisURL(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

// MemoryStore keeps the map in process.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]float64
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{m: map[string]float64{}} }

func (s *MemoryStore) Load(context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.m), nil
}

func (s *MemoryStore) Save(_ context.Context, m map[string]float64) error {
	s.mu.Lock()
	s.m = copyMap(m)
	s.mu.Unlock()
	return nil
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Record loads the map, sets name to pct and writes the whole map back.
func Record(ctx context.Context, s Store, name string, pct float64) (map[string]float64, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	m[name] = pct
	if err := s.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
