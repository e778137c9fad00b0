// Package httpserver provides the HTTP server of tan-server.
//
// Routes:
//
//   - POST /v1/tans, /v1/tans/verify, /v1/tans/redeem
//   - POST /v1/testresult (when a lab is configured)
//   - DELETE /admin/v1/tans/{hash}
//   - GET /health, /ready, /version, /metrics
//
// Middleware: Recover, RequestID, AccessLog, Metrics and a network ACL
// on /admin/. There is no TLS termination and no caller authentication.
package httpserver
