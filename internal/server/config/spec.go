package config

import "time"

// ServerConfig is the root configuration for tan-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server" yaml:"server"`
	Tan     TanSection     `koanf:"tan" yaml:"tan"`
	Storage StorageSection `koanf:"storage" yaml:"storage"`
	Cleanup CleanupSection `koanf:"cleanup" yaml:"cleanup"`
	Lab     LabSection     `koanf:"lab" yaml:"lab"`
	Log     LogSection     `koanf:"log" yaml:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig  `koanf:"http" yaml:"http"`
	Local LocalConfig `koanf:"local" yaml:"local"`
}

// LocalConfig configures the Unix socket listener. An empty SocketPath
// disables it.
type LocalConfig struct {
	SocketPath string `koanf:"socket_path" yaml:"socket_path"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`

	// AdminAllowList restricts /admin/ to these IPs or CIDRs. Empty allows all.
	AdminAllowList []string `koanf:"admin_allow_list" yaml:"admin_allow_list"`

	// TrustProxy honours X-Forwarded-For when resolving client IPs.
	TrustProxy bool `koanf:"trust_proxy" yaml:"trust_proxy"`

	AccessLog bool `koanf:"access_log" yaml:"access_log"`
}

// TanSection configures issuance.
type TanSection struct {
	// MaxGenerationAttempts caps candidates per issuance.
	MaxGenerationAttempts int `koanf:"max_generation_attempts" yaml:"max_generation_attempts"`

	Standard StandardTanConfig `koanf:"standard" yaml:"standard"`
	Tele     TeleTanConfig     `koanf:"tele" yaml:"tele"`
}

// StandardTanConfig configures standard TANs.
type StandardTanConfig struct {
	ValidFor time.Duration `koanf:"valid_for" yaml:"valid_for"`
}

// TeleTanConfig configures TeleTANs.
type TeleTanConfig struct {
	ValidFor  time.Duration   `koanf:"valid_for" yaml:"valid_for"`
	Length    int             `koanf:"length" yaml:"length"`
	Alphabet  string          `koanf:"alphabet" yaml:"alphabet"`
	RateLimit RateLimitConfig `koanf:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig bounds TeleTAN issuance. Count 0 disables the limit.
type RateLimitConfig struct {
	Count            int           `koanf:"count" yaml:"count"`
	Period           time.Duration `koanf:"period" yaml:"period"`
	ThresholdPercent int           `koanf:"threshold_percent" yaml:"threshold_percent"`
}

// StorageSection selects and configures the record store.
type StorageSection struct {
	// Engine is one of memory, badger, redis, sqlite, postgres.
	Engine   string         `koanf:"engine" yaml:"engine"`
	Badger   BadgerConfig   `koanf:"badger" yaml:"badger"`
	Redis    RedisConfig    `koanf:"redis" yaml:"redis"`
	SQLite   SQLiteConfig   `koanf:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres" yaml:"postgres"`
}

// BadgerConfig configures the embedded Badger store.
type BadgerConfig struct {
	Dir        string        `koanf:"dir" yaml:"dir"`
	GCInterval time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes" yaml:"sync_writes"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr      string        `koanf:"addr" yaml:"addr"`
	Password  string        `koanf:"password" yaml:"password"`
	DB        int           `koanf:"db" yaml:"db"`
	KeyPrefix string        `koanf:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `koanf:"ttl" yaml:"ttl"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// PostgresConfig configures the PostgreSQL store.
type PostgresConfig struct {
	DSN          string `koanf:"dsn" yaml:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns" yaml:"max_open_conns"`
}

// CleanupSection configures the retention purge loop.
type CleanupSection struct {
	Enabled   bool          `koanf:"enabled" yaml:"enabled"`
	Interval  time.Duration `koanf:"interval" yaml:"interval"`
	Retention time.Duration `koanf:"retention" yaml:"retention"`
}

// LabSection configures the upstream lab result server.
// An empty BaseURL disables the test result endpoint.
type LabSection struct {
	BaseURL string        `koanf:"base_url" yaml:"base_url"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
