package progress

import (
	"context"
	"fmt"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	s, err := NewRedisStore(context.Background(), fmt.Sprintf("redis://%s/0", mr.Addr()), "")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisLoadEmpty(t *testing.T) {
	s, _ := newTestRedisStore(t)
	m, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
}

func TestRedisSaveReplacesWholeMap(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, map[string]float64{"Back Rank Mate": 100, "Fool's Mate": 50}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, map[string]float64{"Queen Mate": 25}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	m, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m) != 1 || m["Queen Mate"] != 25 {
		t.Fatalf("map = %v", m)
	}
	raw, err := mr.Get(DefaultKey)
	if err != nil || raw != `{"Queen Mate":25}` {
		t.Fatalf("raw value = %q, %v", raw, err)
	}
}

func TestRedisCorruptValue(t *testing.T) {
	s, mr := newTestRedisStore(t)
	if err := mr.Set(DefaultKey, "not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRecordAgainstMemory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := Record(ctx, s, "a", 50); err != nil {
		t.Fatal(err)
	}
	m, err := Record(ctx, s, "b", 100)
	if err != nil {
		t.Fatal(err)
	}
	if m["a"] != 50 || m["b"] != 100 {
		t.Fatalf("map = %v", m)
	}
	m["a"] = 0
	again, _ := s.Load(ctx)
	if again["a"] != 50 {
		t.Fatalf("store aliased caller map")
	}
}

func TestBadRedisURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "http://x", ""); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := NewRedisStore(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected required error")
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("rediss://:pw@cache.example:6380/2")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.TLSConfig == nil {
		t.Fatalf("rediss without TLS config")
	}
	if opts.Addr != "cache.example:6380" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("opts = addr %q pass %q db %d", opts.Addr, opts.Password, opts.DB)
	}

	opts, err = parseRedisURL("redis://localhost")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.TLSConfig != nil {
		t.Fatalf("opts = addr %q tls %v", opts.Addr, opts.TLSConfig != nil)
	}
}
