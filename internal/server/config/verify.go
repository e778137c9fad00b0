package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/cwa-verification/tanserver/internal/storage"
	"github.com/cwa-verification/tanserver/internal/telemetry/logger"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// Verify validates the configuration. All violations are reported together.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyTan(&cfg.Tan),
		verifyStorage(&cfg.Storage),
		verifyCleanup(&cfg.Cleanup),
		verifyLab(&cfg.Lab),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if cfg.HTTP.ReadTimeout < 0 || cfg.HTTP.WriteTimeout < 0 {
		return errors.New("server.http timeouts must not be negative")
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		return errors.New("server.http.shutdown_timeout must be positive")
	}
	for _, entry := range cfg.HTTP.AdminAllowList {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("server.http.admin_allow_list: %w", err)
			}
		} else if net.ParseIP(entry) == nil {
			return fmt.Errorf("server.http.admin_allow_list: invalid IP %q", entry)
		}
	}
	// sun_path is 108 bytes on Linux and 104 on macOS.
	if len(cfg.Local.SocketPath) > 100 {
		return fmt.Errorf("server.local.socket_path: longer than 100 bytes")
	}
	return nil
}

func verifyTan(cfg *TanSection) error {
	var errs []error
	if cfg.MaxGenerationAttempts < 1 {
		errs = append(errs, errors.New("tan.max_generation_attempts must be at least 1"))
	}
	if cfg.Standard.ValidFor <= 0 {
		errs = append(errs, errors.New("tan.standard.valid_for must be positive"))
	}
	if cfg.Tele.ValidFor <= 0 {
		errs = append(errs, errors.New("tan.tele.valid_for must be positive"))
	}
	if _, err := token.NewGenerator(cfg.Tele.Alphabet, cfg.Tele.Length); err != nil {
		errs = append(errs, fmt.Errorf("tan.tele: %w", err))
	}

	rl := cfg.Tele.RateLimit
	if rl.Count < 0 {
		errs = append(errs, errors.New("tan.tele.rate_limit.count must not be negative"))
	}
	if rl.Count > 0 && rl.Period <= 0 {
		errs = append(errs, errors.New("tan.tele.rate_limit.period must be positive when count is set"))
	}
	if rl.ThresholdPercent < 0 || rl.ThresholdPercent > 100 {
		errs = append(errs, errors.New("tan.tele.rate_limit.threshold_percent must be within 0..100"))
	}
	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	engine := strings.ToLower(cfg.Engine)
	if engine == "" {
		engine = storage.EngineMemory
	}

	switch engine {
	case storage.EngineMemory:
	case storage.EngineBadger:
		if cfg.Badger.Dir == "" {
			return errors.New("storage.badger.dir is required")
		}
		if cfg.Badger.GCInterval < 0 {
			return errors.New("storage.badger.gc_interval must not be negative")
		}
	case storage.EngineRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required")
		}
		if cfg.Redis.DB < 0 {
			return errors.New("storage.redis.db must not be negative")
		}
	case storage.EngineSQLite:
		if cfg.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required")
		}
	case storage.EnginePostgres:
		if cfg.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("storage.engine %q is not one of %s", cfg.Engine, strings.Join(storage.Engines, ", "))
	}
	return nil
}

func verifyCleanup(cfg *CleanupSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Interval <= 0 {
		return errors.New("cleanup.interval must be positive")
	}
	if cfg.Retention <= 0 {
		return errors.New("cleanup.retention must be positive")
	}
	return nil
}

func verifyLab(cfg *LabSection) error {
	if cfg.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("lab.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("lab.base_url must be an http or https URL")
	}
	if cfg.Timeout <= 0 {
		return errors.New("lab.timeout must be positive")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
		return nil
	}
	return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
}
