package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of environment variables read by Load.
const DefaultEnvPrefix = "TANSERVER_"

// envLevelSeparator separates nesting levels in environment variable
// names, so TANSERVER_TAN__TELE__RATE_LIMIT__COUNT sets
// tan.tele.rate_limit.count. Single underscores stay part of the key.
const envLevelSeparator = "__"

// Loader layers configuration sources into a struct tagged with `koanf`.
type Loader struct {
	k          *koanf.Koanf
	envPrefix  string
	filePath   string
	dotEnvPath string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile reads a YAML file. The file must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithDotEnv reads a .env file into the process environment before the
// environment is consulted. Variables already set win; a missing file is
// ignored.
func WithDotEnv(path string) Option {
	return func(l *Loader) {
		l.dotEnvPath = path
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every configured source and unmarshals the merged result
// into target. Fields of target absent from all sources keep their
// current values, so callers pass a struct pre-filled with defaults.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", l.filePath, err)
		}
	}

	if l.dotEnvPath != "" {
		err := godotenv.Load(l.dotEnvPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load dotenv %s: %w", l.dotEnvPath, err)
		}
	}

	prefix := l.envPrefix
	toKey := func(name string) string {
		name = strings.ToLower(strings.TrimPrefix(name, prefix))
		return strings.ReplaceAll(name, envLevelSeparator, ".")
	}
	if err := l.k.Load(env.Provider(prefix, ".", toKey), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// Keys returns the dotted keys set by any source, sorted.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
