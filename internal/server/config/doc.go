// Package config defines the tan-server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of secrets before logging
//   - convert.go: mapping to service and storage settings
//
// Configuration is loaded via internal/infra/confloader.
package config
