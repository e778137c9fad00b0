// Command tan-server issues, verifies and redeems TANs and TeleTANs over
// HTTP and proxies lab test result lookups.
//
// Usage:
//
//	tan-server [flags]
//	tan-server -config /etc/tan-server/config.yaml
//	tan-server -config config.yaml -env-file .env
//
// Configuration is layered: built-in defaults, the YAML file, then
// TANSERVER_* environment variables (nested keys use "__", e.g.
// TANSERVER_LOG__LEVEL). Editing log.level in the file while the server
// runs takes effect without a restart.
package main
