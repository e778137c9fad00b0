package buildinfo

import (
	"runtime"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version != Version || info.Commit != Commit || info.BuildTime != BuildTime {
		t.Errorf("Get() = %+v, want package variables", info)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should not be empty")
	}
}

func TestGet_GoVersionFallback(t *testing.T) {
	orig := GoVersion
	t.Cleanup(func() { GoVersion = orig })

	GoVersion = ""
	if got := Get().GoVersion; got != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", got, runtime.Version())
	}

	GoVersion = "go1.24.4"
	if got := Get().GoVersion; got != "go1.24.4" {
		t.Errorf("GoVersion = %q, want injected value", got)
	}
}

func TestString(t *testing.T) {
	origV, origC, origB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = origV, origC, origB })

	Version, Commit, BuildTime = "v1.2.0", "abc123", "2026-10-01T12:00:00Z"
	if got, want := String(), "v1.2.0 (abc123) built at 2026-10-01T12:00:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
