package config

import (
	"time"

	"github.com/cwa-verification/tanserver/pkg/token"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultMaxGenerationAttempts = 16
	DefaultTanValidFor           = 14 * 24 * time.Hour
	DefaultTeleTanValidFor       = time.Hour
	DefaultTeleTanRateCount      = 1000
	DefaultTeleTanRatePeriod     = time.Hour
	DefaultTeleTanThreshold      = 80

	DefaultEngine           = "memory"
	DefaultBadgerDir        = "data/badger"
	DefaultBadgerGCInterval = 10 * time.Minute
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultRedisKeyPrefix   = "tan:"
	DefaultSQLitePath       = "data/tans.db"

	DefaultCleanupInterval  = time.Hour
	DefaultCleanupRetention = 21 * 24 * time.Hour

	DefaultLabTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				AccessLog:       true,
			},
		},
		Tan: TanSection{
			MaxGenerationAttempts: DefaultMaxGenerationAttempts,
			Standard: StandardTanConfig{
				ValidFor: DefaultTanValidFor,
			},
			Tele: TeleTanConfig{
				ValidFor: DefaultTeleTanValidFor,
				Length:   token.TeleTanLength,
				Alphabet: token.TeleTanAlphabet,
				RateLimit: RateLimitConfig{
					Count:            DefaultTeleTanRateCount,
					Period:           DefaultTeleTanRatePeriod,
					ThresholdPercent: DefaultTeleTanThreshold,
				},
			},
		},
		Storage: StorageSection{
			Engine: DefaultEngine,
			Badger: BadgerConfig{
				Dir:        DefaultBadgerDir,
				GCInterval: DefaultBadgerGCInterval,
				SyncWrites: true,
			},
			Redis: RedisConfig{
				Addr:      DefaultRedisAddr,
				KeyPrefix: DefaultRedisKeyPrefix,
			},
			SQLite: SQLiteConfig{
				Path: DefaultSQLitePath,
			},
		},
		Cleanup: CleanupSection{
			Enabled:   false,
			Interval:  DefaultCleanupInterval,
			Retention: DefaultCleanupRetention,
		},
		Lab: LabSection{
			Timeout: DefaultLabTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
