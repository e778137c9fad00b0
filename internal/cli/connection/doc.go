// Package connection provides the HTTP client tan-cli uses to talk to a
// tan-server instance.
//
// Responses arrive in the server's envelope ({code, message, data}). The
// client unwraps data on success and turns error envelopes into *APIError.
package connection
