package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name   string
		server string
		want   string
	}{
		{"with http prefix", "http://localhost:8080", "http://localhost:8080"},
		{"with https prefix", "https://tan.example/", "https://tan.example"},
		{"without prefix", "localhost:8080", "http://localhost:8080"},
		{"unix socket", "unix:///run/tan.sock", "http://localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewHTTPClient(tt.server, 0).BaseURL(); got != tt.want {
				t.Errorf("BaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_Methods(t *testing.T) {
	type seen struct {
		method, path, contentType, userAgent, body string
	}
	requests := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- seen{r.Method, r.URL.Path, r.Header.Get("Content-Type"), r.Header.Get("User-Agent"), string(body)}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	ctx := context.Background()

	tests := []struct {
		name     string
		call     func() (*http.Response, error)
		method   string
		path     string
		wantBody string
	}{
		{"get", func() (*http.Response, error) { return c.Get(ctx, "/health") }, http.MethodGet, "/health", ""},
		{"post", func() (*http.Response, error) { return c.Post(ctx, "/v1/tans/verify", map[string]string{"tan": "29zAE4E"}) },
			http.MethodPost, "/v1/tans/verify", `{"tan":"29zAE4E"}`},
		{"post nil body", func() (*http.Response, error) { return c.Post(ctx, "/v1/tans", nil) }, http.MethodPost, "/v1/tans", ""},
		{"delete", func() (*http.Response, error) { return c.Delete(ctx, "/admin/v1/tans/abc") }, http.MethodDelete, "/admin/v1/tans/abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.call()
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			resp.Body.Close()

			got := <-requests
			if got.method != tt.method || got.path != tt.path {
				t.Errorf("request = %s %s, want %s %s", got.method, got.path, tt.method, tt.path)
			}
			if got.body != tt.wantBody {
				t.Errorf("body = %q, want %q", got.body, tt.wantBody)
			}
			if (tt.wantBody != "") != (got.contentType == "application/json") {
				t.Errorf("Content-Type = %q with body %q", got.contentType, got.body)
			}
			if !strings.HasPrefix(got.userAgent, "tan-cli/") {
				t.Errorf("User-Agent = %q", got.userAgent)
			}
		})
	}
}

func TestHTTPClient_UnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "tancli")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "tan.sock")

	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":"OK","data":{"status":"ok"}}`)
	})}
	go srv.Serve(l)
	defer srv.Close()

	resp, err := NewHTTPClient("unix://"+path, time.Second).Get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var got struct {
		Status string `json:"status"`
	}
	if err := ParseResponse(resp, &got); err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got.Status != "ok" {
		t.Errorf("status = %q", got.Status)
	}
}

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponse_Success(t *testing.T) {
	resp := newResponse(http.StatusOK, `{"code":"OK","message":"Success","data":{"tan":"29zAE4E","type":"TELETAN"}}`)

	var got struct {
		Tan  string `json:"tan"`
		Type string `json:"type"`
	}
	if err := ParseResponse(resp, &got); err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if got.Tan != "29zAE4E" || got.Type != "TELETAN" {
		t.Errorf("data = %+v", got)
	}
}

func TestParseResponse_Error(t *testing.T) {
	tests := []struct {
		name     string
		resp     *http.Response
		wantCode string
		wantMsg  string
	}{
		{
			name:     "envelope",
			resp:     newResponse(http.StatusNotFound, `{"code":"TV-TAN-4040","message":"tan cannot be redeemed","request_id":"01J"}`),
			wantCode: "TV-TAN-4040",
			wantMsg:  "tan cannot be redeemed",
		},
		{
			name: "plain body with header",
			resp: func() *http.Response {
				r := newResponse(http.StatusServiceUnavailable, "busy")
				r.Header.Set("X-Error-Code", "TV-SYS-5000")
				return r
			}(),
			wantCode: "TV-SYS-5000",
			wantMsg:  "status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseResponse(tt.resp, nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.resp.StatusCode || apiErr.Code != tt.wantCode {
				t.Errorf("APIError = %+v", apiErr)
			}
			if !strings.Contains(apiErr.Error(), tt.wantMsg) {
				t.Errorf("Error() = %q, want %q", apiErr.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	var target map[string]any

	if err := ParseResponse(newResponse(http.StatusOK, "not json"), &target); err == nil {
		t.Error("non-JSON body accepted")
	}
	if err := ParseResponse(newResponse(http.StatusOK, `{"code":"OK"}`), &target); err == nil {
		t.Error("envelope without data accepted")
	}
}

func TestParseResponse_NilTarget(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"code": "OK", "data": map[string]int{"n": 1}})
	if err := ParseResponse(newResponse(http.StatusOK, string(body)), nil); err != nil {
		t.Errorf("ParseResponse(nil target) error = %v", err)
	}
	if err := ParseResponse(newResponse(http.StatusNoContent, ""), nil); err != nil {
		t.Errorf("ParseResponse(204) error = %v", err)
	}
}
