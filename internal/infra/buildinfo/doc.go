// Package buildinfo exposes build-time version information.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/cwa-verification/tanserver/internal/infra/buildinfo.Version=v1.2.0 \
//	  -X github.com/cwa-verification/tanserver/internal/infra/buildinfo.Commit=abc123"
//
// GoVersion falls back to the running toolchain when not injected.
package buildinfo
