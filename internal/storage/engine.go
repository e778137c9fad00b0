package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/storage/memory"
	"github.com/cwa-verification/tanserver/internal/storage/pgstore"
	"github.com/cwa-verification/tanserver/internal/storage/redisstore"
	"github.com/cwa-verification/tanserver/internal/storage/sqlite"
)

// Engine names.
const (
	EngineMemory   = "memory"
	EngineBadger   = "badger"
	EngineRedis    = "redis"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

// Engines lists the accepted engine names.
var Engines = []string{EngineMemory, EngineBadger, EngineRedis, EngineSQLite, EnginePostgres}

// Config configures the storage engine.
type Config struct {
	// Engine selects the backend (default: memory).
	Engine string

	Badger   BadgerConfig
	Redis    redisstore.Config
	SQLite   sqlite.Config
	Postgres pgstore.Config

	// Logger is the structured logger.
	Logger *slog.Logger

	// Registry receives engine metrics when set.
	Registry prometheus.Registerer
}

// Engine is an open TAN store.
type Engine interface {
	service.TanRepository

	// Name returns the engine name.
	Name() string

	// Close releases the engine's resources.
	Close() error
}

// closer is implemented by every backing store.
type closer interface {
	service.TanRepository
	Close() error
}

type engine struct {
	closer
	name string
}

func (e *engine) Name() string { return e.name }

// Open opens the configured engine.
func Open(ctx context.Context, cfg Config) (Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Engine))
	if name == "" {
		name = EngineMemory
	}
	logger := cfg.Logger.With("engine", name)

	var (
		store closer
		err   error
	)
	switch name {
	case EngineMemory:
		store = memory.New()
	case EngineBadger:
		var bs *BadgerStore
		bs, err = NewBadgerStore(cfg.Badger, logger)
		if err == nil && cfg.Registry != nil {
			bs.RegisterMetrics(cfg.Registry)
		}
		store = bs
	case EngineRedis:
		store, err = redisstore.New(ctx, cfg.Redis, logger)
	case EngineSQLite:
		store, err = sqlite.Open(ctx, cfg.SQLite, logger)
	case EnginePostgres:
		store, err = pgstore.Open(ctx, cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("storage: unknown engine %q (want one of %s)", cfg.Engine, strings.Join(Engines, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", name, err)
	}

	logger.Info("storage engine opened")
	return &engine{closer: store, name: name}, nil
}
