// Package shutdown coordinates graceful process termination.
//
// Components register named hooks as they start. On SIGINT, SIGTERM or
// cancellation of the parent context the hooks run in reverse order of
// registration under a shared timeout, so the HTTP server stops accepting
// requests before the store it depends on is closed.
package shutdown
