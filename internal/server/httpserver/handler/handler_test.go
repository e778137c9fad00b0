package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/storage/memory"
	"github.com/cwa-verification/tanserver/internal/telemetry/logger"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// testClock is a settable service.Clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingRepo fails every call with err.
type failingRepo struct {
	err error
}

func (f failingRepo) Get(context.Context, string) (*domain.Tan, error)  { return nil, f.err }
func (f failingRepo) Exists(context.Context, string) (bool, error)      { return false, f.err }
func (f failingRepo) Create(context.Context, *domain.Tan) error         { return f.err }
func (f failingRepo) Update(context.Context, *domain.Tan, uint64) error { return f.err }
func (f failingRepo) Delete(context.Context, string) error              { return f.err }
func (f failingRepo) DeleteCreatedBefore(context.Context, time.Time) (int, error) {
	return 0, f.err
}

// stubLab returns a fixed result.
type stubLab struct {
	result domain.TestResult
	err    error
	calls  int
}

func (s *stubLab) Result(context.Context, string) (domain.TestResult, error) {
	s.calls++
	return s.result, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	handler *Handler
	clock   *testClock
	lab     *stubLab
}

func newTestEnv(t *testing.T, svcOpts ...service.Option) *testEnv {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	svcOpts = append([]service.Option{service.WithClock(clock)}, svcOpts...)
	tanSvc := service.NewTanService(memory.New(), nil, svcOpts...)

	lab := &stubLab{result: domain.ResultPositive}
	labSvc := service.NewLabResultService(lab, testLogger(), nil)

	return &testEnv{
		handler: New(tanSvc, testLogger(), WithLabResultService(labSvc)),
		clock:   clock,
		lab:     lab,
	}
}

// do sends a request and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-test"))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func dataField(t *testing.T, resp Response, key string) any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %#v, want object", resp.Data)
	}
	return data[key]
}

func (e *testEnv) issue(t *testing.T, body string) string {
	t.Helper()
	rec, resp := e.do(t, http.MethodPost, "/v1/tans", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return dataField(t, resp, "tan").(string)
}

func TestHandler_IssueTan(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantType string
	}{
		{"default type", `{}`, http.StatusCreated, "TAN"},
		{"standard", `{"type":"TAN","source_of_trust":"CONNECTED_LAB"}`, http.StatusCreated, "TAN"},
		{"teletan", `{"type":"teletan"}`, http.StatusCreated, "TELETAN"},
		{"unknown type", `{"type":"PIN"}`, http.StatusBadRequest, ""},
		{"unknown source", `{"source_of_trust":"HOTLINE"}`, http.StatusBadRequest, ""},
		{"unknown field", `{"kind":"TAN"}`, http.StatusBadRequest, ""},
		{"not json", `TAN`, http.StatusBadRequest, ""},
		{"two objects", `{}{}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec, resp := env.do(t, http.MethodPost, "/v1/tans", tt.body)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if resp.RequestID != "req-test" {
				t.Errorf("request_id = %q, want req-test", resp.RequestID)
			}
			if tt.wantType == "" {
				if rec.Header().Get("X-Error-Code") == "" {
					t.Error("X-Error-Code header missing on error")
				}
				return
			}

			if got := dataField(t, resp, "type"); got != tt.wantType {
				t.Errorf("type = %v, want %s", got, tt.wantType)
			}
			plaintext := dataField(t, resp, "tan").(string)
			switch tt.wantType {
			case "TAN":
				if !token.IsTanSyntaxValid(plaintext) {
					t.Errorf("tan = %q, not a TAN", plaintext)
				}
			case "TELETAN":
				if len(plaintext) != token.TeleTanLength {
					t.Errorf("tan = %q, not a TeleTAN", plaintext)
				}
			}
			if rec.Header().Get("Cache-Control") != "no-store" {
				t.Error("Cache-Control: no-store missing")
			}
		})
	}
}

func TestHandler_IssueTeleTan_RateLimited(t *testing.T) {
	limiter := service.NewTeleTanLimiter(1, time.Hour, 0, testLogger())
	env := newTestEnv(t, service.WithTeleTanLimiter(limiter))

	env.issue(t, `{"type":"TELETAN"}`)

	rec, resp := env.do(t, http.MethodPost, "/v1/tans", `{"type":"TELETAN"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if resp.Code != domain.ErrTeleTanRateLimited.Code {
		t.Errorf("code = %q", resp.Code)
	}

	// Standard TANs are not budgeted.
	env.issue(t, `{"type":"TAN"}`)
}

func TestHandler_VerifyTan(t *testing.T) {
	env := newTestEnv(t)
	plaintext := env.issue(t, `{}`)

	verify := func(tan string) (int, any) {
		body, _ := json.Marshal(TanRequest{Tan: tan})
		rec, resp := env.do(t, http.MethodPost, "/v1/tans/verify", string(body))
		if rec.Code != http.StatusOK {
			return rec.Code, resp.Code
		}
		return rec.Code, dataField(t, resp, "status")
	}

	if code, status := verify(plaintext); code != http.StatusOK || status != "valid" {
		t.Errorf("verify(issued) = %d %v, want 200 valid", code, status)
	}
	if code, status := verify("ffc079f1-7060-4adb-93f8-6a6b95ad1124"); code != http.StatusOK || status != "unknown" {
		t.Errorf("verify(unknown) = %d %v, want 200 unknown", code, status)
	}
	if code, errCode := verify("not-a-tan"); code != http.StatusBadRequest || errCode != domain.ErrTanMalformed.Code {
		t.Errorf("verify(malformed) = %d %v, want 400 %s", code, errCode, domain.ErrTanMalformed.Code)
	}
	if code, _ := verify(""); code != http.StatusBadRequest {
		t.Errorf("verify(empty) = %d, want 400", code)
	}

	env.clock.Advance(15 * 24 * time.Hour)
	if _, status := verify(plaintext); status != "expired" {
		t.Errorf("verify(after window) = %v, want expired", status)
	}
}

func TestHandler_RedeemTan(t *testing.T) {
	env := newTestEnv(t)
	plaintext := env.issue(t, `{}`)
	body := `{"tan":"` + plaintext + `"}`

	rec, resp := env.do(t, http.MethodPost, "/v1/tans/redeem", body)
	if rec.Code != http.StatusOK || dataField(t, resp, "redeemed") != true {
		t.Fatalf("first redeem = %d %s", rec.Code, rec.Body.String())
	}

	failures := []string{
		body,
		`{"tan":"ffc079f1-7060-4adb-93f8-6a6b95ad1124"}`,
		`{"tan":"bogus"}`,
		`{"tan":""}`,
	}
	for _, b := range failures {
		rec, resp := env.do(t, http.MethodPost, "/v1/tans/redeem", b)
		if rec.Code != http.StatusNotFound {
			t.Errorf("redeem(%s) status = %d, want 404", b, rec.Code)
		}
		if resp.Message != "tan cannot be redeemed" {
			t.Errorf("redeem(%s) message = %q, want the generic failure", b, resp.Message)
		}
	}

	_, resp = env.do(t, http.MethodPost, "/v1/tans/verify", body)
	if dataField(t, resp, "status") != "redeemed" {
		t.Errorf("status after redeem = %v", dataField(t, resp, "status"))
	}
}

func TestHandler_DeleteTan(t *testing.T) {
	env := newTestEnv(t)
	plaintext := env.issue(t, `{}`)
	hash := token.Hash(plaintext)

	rec, _ := env.do(t, http.MethodDelete, "/admin/v1/tans/"+hash, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	_, resp := env.do(t, http.MethodPost, "/v1/tans/verify", `{"tan":"`+plaintext+`"}`)
	if dataField(t, resp, "status") != "unknown" {
		t.Errorf("status after delete = %v, want unknown", dataField(t, resp, "status"))
	}

	rec, _ = env.do(t, http.MethodDelete, "/admin/v1/tans/"+hash, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("second delete status = %d, want 204", rec.Code)
	}

	rec, _ = env.do(t, http.MethodDelete, "/admin/v1/tans/NOTAHASH", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("delete(malformed) status = %d, want 400", rec.Code)
	}
}

func TestHandler_TestResult(t *testing.T) {
	hash := token.Hash("guid")

	tests := []struct {
		name      string
		result    domain.TestResult
		err       error
		body      string
		wantCode  int
		wantValue float64
		wantCalls int
	}{
		{"positive", domain.ResultPositive, nil, `{"id":"` + hash + `"}`, http.StatusOK, 2, 1},
		{"uppercase id", domain.ResultNegative, nil, `{"id":"` + strings.ToUpper(hash) + `"}`, http.StatusOK, 1, 1},
		{"out of range", domain.TestResult(9), nil, `{"id":"` + hash + `"}`, http.StatusOK, 3, 1},
		{"missing id", 0, nil, `{}`, http.StatusBadRequest, 0, 0},
		{"malformed id", 0, nil, `{"id":"abc"}`, http.StatusBadRequest, 0, 0},
		{"lab down", 0, errors.New("connection refused"), `{"id":"` + hash + `"}`, http.StatusServiceUnavailable, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.lab.result = tt.result
			env.lab.err = tt.err

			rec, resp := env.do(t, http.MethodPost, "/v1/testresult", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if env.lab.calls != tt.wantCalls {
				t.Errorf("lab calls = %d, want %d", env.lab.calls, tt.wantCalls)
			}
			if tt.wantCode == http.StatusOK {
				if got := dataField(t, resp, "test_result"); got != tt.wantValue {
					t.Errorf("test_result = %v, want %v", got, tt.wantValue)
				}
			}
		})
	}
}

func TestHandler_TestResultDisabled(t *testing.T) {
	h := New(service.NewTanService(memory.New(), nil), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/testresult", bytes.NewBufferString(`{"id":"x"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when lab is not configured", rec.Code)
	}
}

func TestHandler_StoreFailure(t *testing.T) {
	tanSvc := service.NewTanService(failingRepo{err: errors.New("connection reset")}, nil)
	env := &testEnv{handler: New(tanSvc, testLogger())}

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/v1/tans", `{}`},
		{http.MethodPost, "/v1/tans/verify", `{"tan":"ffc079f1-7060-4adb-93f8-6a6b95ad1124"}`},
		{http.MethodPost, "/v1/tans/redeem", `{"tan":"ffc079f1-7060-4adb-93f8-6a6b95ad1124"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, resp := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", rec.Code)
			}
			if resp.Code != codeInternal || strings.Contains(rec.Body.String(), "connection reset") {
				t.Errorf("body = %s, want generic failure", rec.Body.String())
			}
		})
	}
}

func TestHandler_Health(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health", "/ready", "/version"} {
		rec, resp := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || resp.Code != "OK" {
			t.Errorf("GET %s = %d %s", path, rec.Code, rec.Body.String())
		}
	}

	h := New(service.NewTanService(memory.New(), nil), testLogger(),
		WithReadyCheck(func(context.Context) error { return errors.New("store closed") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /ready with failing check = %d, want 503", rec.Code)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tans", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /v1/tans = %d, want 405", rec.Code)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"TV-TAN-4000", http.StatusBadRequest},
		{"TV-TAN-4001", http.StatusBadRequest},
		{"TV-ARG-1001", http.StatusBadRequest},
		{"TV-TAN-4040", http.StatusNotFound},
		{"TV-TAN-4090", http.StatusConflict},
		{"TV-TAN-4091", http.StatusConflict},
		{"TV-TAN-4290", http.StatusTooManyRequests},
		{"TV-TAN-5030", http.StatusServiceUnavailable},
		{"TV-LAB-5030", http.StatusServiceUnavailable},
		{"TV-SYS-5000", http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorCodeToHTTPStatus(tt.code); got != tt.want {
			t.Errorf("errorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
