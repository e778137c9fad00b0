package config

import (
	"net/url"
	"regexp"
	"strings"
)

// Sanitize returns a copy of the config with secrets masked.
// Used for logging configuration.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if sanitized.Storage.Redis.Password != "" {
		sanitized.Storage.Redis.Password = maskSecret(sanitized.Storage.Redis.Password)
	}
	if sanitized.Storage.Postgres.DSN != "" {
		sanitized.Storage.Postgres.DSN = maskDSN(sanitized.Storage.Postgres.DSN)
	}

	return &sanitized
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

var dsnPasswordPattern = regexp.MustCompile(`(?i)(password\s*=\s*)('[^']*'|\S+)`)

// maskDSN hides the password of a postgres URL or keyword/value DSN.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "****"
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
		}
		q := u.Query()
		if q.Has("password") {
			q.Set("password", "****")
			u.RawQuery = q.Encode()
		}
		return u.String()
	}
	return dsnPasswordPattern.ReplaceAllString(dsn, "${1}****")
}
