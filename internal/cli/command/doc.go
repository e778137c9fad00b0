// Package command provides the tan-cli command tree.
//
//   - root.go: App, global flags and output helpers
//   - tan.go: offline commands (generate, hash, check)
//   - remote.go: commands that call a running tan-server
package command
