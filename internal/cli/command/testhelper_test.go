package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/server/httpserver/handler"
	"github.com/cwa-verification/tanserver/internal/storage/memory"
)

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m.handlers[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// handle registers a handler for "METHOD /path".
func (m *mockServer) handle(pattern string, h http.HandlerFunc) {
	m.handlers[pattern] = h
}

// jsonResponse writes data inside a success envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    "OK",
		"message": "Success",
		"data":    data,
	})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":       code,
		"message":    message,
		"request_id": "req-1",
	})
}

type stubLab struct {
	result domain.TestResult
}

func (s stubLab) Result(context.Context, string) (domain.TestResult, error) {
	return s.result, nil
}

// newLiveServer serves the real API over an in-memory store.
func newLiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tanSvc := service.NewTanService(memory.New(), nil, service.WithLogger(log))
	labSvc := service.NewLabResultService(stubLab{result: domain.ResultNegative}, log, nil)

	srv := httptest.NewServer(handler.New(tanSvc, log, handler.WithLabResultService(labSvc)))
	t.Cleanup(srv.Close)
	return srv
}

// run executes tan-cli with args and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut

	err := app.Run(append([]string{"tan-cli"}, args...))
	return out.String(), err
}

// runJSON executes tan-cli with -o json and decodes stdout into target.
func runJSON(t *testing.T, target any, args ...string) error {
	t.Helper()
	out, err := run(t, append([]string{"-o", "json"}, args...)...)
	if err != nil {
		return err
	}
	if decErr := json.NewDecoder(strings.NewReader(out)).Decode(target); decErr != nil {
		t.Fatalf("decode output %q: %v", out, decErr)
	}
	return nil
}
