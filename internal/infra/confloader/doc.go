// Package confloader loads configuration with koanf.
//
// Sources, lowest priority first: the defaults already present in the
// target struct, a YAML file, a .env file and the process environment. A
// Watcher reports changes to the config file so selected settings, such
// as the log level, can be reapplied without a restart.
package confloader
