// Package localserver serves the HTTP API on a Unix domain socket.
//
// The socket gives operators on the host access to the admin routes
// without listing loopback in the TCP admin allowlist. File system
// permissions on the socket (0600 by default) control who may connect.
package localserver
