package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/cheese-trainer/internal/api"
	"github.com/park285/cheese-trainer/internal/chatcoach"
	"github.com/park285/cheese-trainer/internal/clock"
	"github.com/park285/cheese-trainer/internal/config"
	"github.com/park285/cheese-trainer/internal/drills"
	"github.com/park285/cheese-trainer/internal/evaluator"
	"github.com/park285/cheese-trainer/internal/msgcat"
	"github.com/park285/cheese-trainer/internal/progress"
	"github.com/park285/cheese-trainer/internal/session"
	"github.com/park285/cheese-trainer/internal/store"
)

// Deps is everything the trainer process owns.
type Deps struct {
	Server   *api.Server
	Hub      *api.Hub
	Repo     store.Repository
	Progress progress.Store
	Drills   *drills.Catalog
	Catalog  *msgcat.Catalog
	Coach    *chatcoach.Coach

	closers []func() error
}

// Build wires the process from cfg. Redis and Postgres are optional; without
// them progress and game history live in memory.
func Build(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Catalog = cat

	d.Drills, err = drills.Load()
	if err != nil {
		return nil, fmt.Errorf("load drills: %w", err)
	}

	tc, err := clock.ParseTimeControl(cfg.DefaultTimeControl)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_TIME_CONTROL: %w", err)
	}

	d.Coach = newCoach(cfg, cat, logger)

	if strings.TrimSpace(cfg.RedisURL) != "" {
		rs, err := progress.NewRedisStore(ctx, cfg.RedisURL, cfg.ProgressKey)
		if err != nil {
			return nil, fmt.Errorf("init progress store: %w", err)
		}
		d.Progress = rs
		d.closers = append(d.closers, rs.Close)
	} else {
		logger.Warn("progress_store_memory", zap.String("reason", "REDIS_URL unset"))
		d.Progress = progress.NewMemoryStore()
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("init game store: %w", err)
		}
		d.Repo = pg
	} else {
		logger.Warn("game_store_memory", zap.String("reason", "DATABASE_URL unset"))
		d.Repo = store.NewMemory()
	}
	d.closers = append(d.closers, d.Repo.Close)

	eval := evaluator.NewRandom()
	sessDeps := session.Deps{
		Providers: session.DefaultProviders(eval, d.Coach, cat),
		Fallback:  eval,
		Catalog:   cat,
		Logger:    logger,
	}
	defaults := session.DefaultConfig()
	defaults.TimeControl = tc
	defaults.ThinkDelay = cfg.ThinkDelay

	d.Hub = api.NewHub(sessDeps, logger,
		api.WithRepository(d.Repo),
		api.WithIdleTTL(cfg.SessionIdleTTL),
		api.WithDefaults(defaults),
	)
	d.Server = api.NewServer(api.Options{
		Hub:      d.Hub,
		Drills:   d.Drills,
		Progress: d.Progress,
		Repo:     d.Repo,
		Catalog:  cat,
		Logger:   logger,
		Origins:  cfg.OriginAllowlist,
	})
	return d, nil
}

// newCoach returns nil when no chat backend is configured; coach games then
// play evaluator moves.
func newCoach(cfg *config.AppConfig, cat *msgcat.Catalog, logger *zap.Logger) *chatcoach.Coach {
	if cfg.ChatBackend == "" {
		return nil
	}
	opts := []chatcoach.Option{
		chatcoach.WithTimeout(cfg.ChatTimeout),
		chatcoach.WithLogger(logger),
	}
	if cfg.ChatBaseURL != "" {
		opts = append(opts, chatcoach.WithBaseURL(cfg.ChatBaseURL))
	}
	client := chatcoach.NewClient(chatcoach.ParseBackend(cfg.ChatBackend), cfg.ChatKey(), opts...)
	return chatcoach.NewCoach(client, cat, logger)
}

// Close stops sessions and releases stores, last opened first.
func (d *Deps) Close() error {
	if d.Hub != nil {
		d.Hub.Close()
	}
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
