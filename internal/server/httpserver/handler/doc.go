// Package handler provides the HTTP handlers of tan-server.
//
// Handlers decode requests, call the core services and encode the
// standard response envelope. They hold no business logic.
package handler
