package labclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/core/service"
)

const testHash = "f0e4c2f76c58916ec258f246851bea091d14d4247a2fc3e18694461b1816e13b"

var _ service.LabResultClient = (*Client)(nil)

func newLabServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Timeout: time.Second})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_Result(t *testing.T) {
	c := newLabServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != ResultPath {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["id"] != testHash {
			t.Errorf("id = %q", req["id"])
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"testResult":2}`))
	})

	got, err := c.Result(context.Background(), testHash)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if got != domain.ResultPositive {
		t.Errorf("Result() = %v, want positive", got)
	}
}

func TestClient_Result_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `oops`, "unexpected status 500"},
		{"not found", http.StatusNotFound, ``, "unexpected status 404"},
		{"bad json", http.StatusOK, `{"testResult":`, "decode response"},
		{"missing field", http.StatusOK, `{"result":2}`, "no testResult"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newLabServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Result(context.Background(), testHash)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Result() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Result_OutOfRangePassesThrough(t *testing.T) {
	c := newLabServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"testResult":7}`))
	})

	got, err := c.Result(context.Background(), testHash)
	if err != nil || got != domain.TestResult(7) {
		t.Errorf("Result() = %v, %v; want 7, nil", got, err)
	}

	svc := service.NewLabResultService(c, nil, nil)
	if res, err := svc.Result(context.Background(), testHash); err != nil || res != domain.ResultInvalid {
		t.Errorf("service Result() = %v, %v; want invalid", res, err)
	}
}

func TestClient_Result_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	c, err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Result(context.Background(), testHash); err == nil {
		t.Error("Result() error = nil, want timeout")
	}
}

func TestNew_Errors(t *testing.T) {
	for _, base := range []string{"", "ftp://lab", "://bad"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) error = nil", base)
		}
	}
}
