package config

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/storage"
	"github.com/cwa-verification/tanserver/internal/storage/pgstore"
	"github.com/cwa-verification/tanserver/internal/storage/redisstore"
	"github.com/cwa-verification/tanserver/internal/storage/sqlite"
)

// StorageConfig maps the storage section onto storage.Open settings.
func (c *ServerConfig) StorageConfig(logger *slog.Logger, reg prometheus.Registerer) storage.Config {
	badger := storage.DefaultBadgerConfig(c.Storage.Badger.Dir)
	badger.SyncWrites = c.Storage.Badger.SyncWrites
	if c.Storage.Badger.GCInterval > 0 {
		badger.GCInterval = c.Storage.Badger.GCInterval
	}

	return storage.Config{
		Engine: c.Storage.Engine,
		Badger: badger,
		Redis: redisstore.Config{
			Addr:      c.Storage.Redis.Addr,
			Password:  c.Storage.Redis.Password,
			DB:        c.Storage.Redis.DB,
			KeyPrefix: c.Storage.Redis.KeyPrefix,
			TTL:       c.Storage.Redis.TTL,
		},
		SQLite: sqlite.Config{
			Path: c.Storage.SQLite.Path,
		},
		Postgres: pgstore.Config{
			DSN:          c.Storage.Postgres.DSN,
			MaxOpenConns: c.Storage.Postgres.MaxOpenConns,
		},
		Logger:   logger,
		Registry: reg,
	}
}

// TanServiceConfig maps the tan section onto service settings.
func (c *ServerConfig) TanServiceConfig() *service.TanServiceConfig {
	cfg := service.DefaultTanServiceConfig()
	cfg.TanValidity = c.Tan.Standard.ValidFor
	cfg.TeleTanValidity = c.Tan.Tele.ValidFor
	cfg.MaxGenerationAttempts = c.Tan.MaxGenerationAttempts
	return cfg
}

// NewTeleTanLimiter builds the issuance limiter, or nil when disabled.
func (c *ServerConfig) NewTeleTanLimiter(logger *slog.Logger) *service.TeleTanLimiter {
	rl := c.Tan.Tele.RateLimit
	return service.NewTeleTanLimiter(rl.Count, rl.Period, rl.ThresholdPercent, logger)
}
