// Package tests holds end-to-end tests that run the HTTP API over a
// persistent store.
package tests

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwa-verification/tanserver/internal/cli/connection"
	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/server/httpserver"
	"github.com/cwa-verification/tanserver/internal/server/httpserver/handler"
	"github.com/cwa-verification/tanserver/internal/storage"
	"github.com/cwa-verification/tanserver/internal/telemetry/metric"
)

type apiServer struct {
	*httptest.Server
	store    storage.Engine
	svc      *service.TanService
	registry *metric.Registry
	client   *connection.HTTPClient
}

// startAPI opens a Badger store in dir and serves the full router over it.
func startAPI(t *testing.T, dir string) *apiServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := metric.NewRegistry()

	store, err := storage.Open(context.Background(), storage.Config{
		Engine:   storage.EngineBadger,
		Badger:   storage.DefaultBadgerConfig(dir),
		Logger:   log,
		Registry: registry.Registerer(),
	})
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}

	svc := service.NewTanService(store, nil,
		service.WithLogger(log),
		service.WithRecorder(registry),
		service.WithTeleTanLimiter(service.NewTeleTanLimiter(2, time.Hour, 80, log)),
	)
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		API:       handler.New(svc, log),
		Metrics:   registry.Handler(),
		Observer:  registry,
		Logger:    log,
		AccessLog: true,
	})

	srv := httptest.NewServer(router)
	return &apiServer{
		Server:   srv,
		store:    store,
		svc:      svc,
		registry: registry,
		client:   connection.NewHTTPClient(srv.URL, 5*time.Second),
	}
}

func (a *apiServer) stop(t *testing.T) {
	t.Helper()
	a.Close()
	if err := a.store.Close(); err != nil {
		t.Errorf("store.Close() error = %v", err)
	}
}

func (a *apiServer) post(t *testing.T, path string, body, target any) error {
	t.Helper()
	resp, err := a.client.Post(context.Background(), path, body)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return connection.ParseResponse(resp, target)
}

func (a *apiServer) verify(t *testing.T, tan string) domain.TanStatus {
	t.Helper()
	var out handler.VerifyTanResponse
	if err := a.post(t, "/v1/tans/verify", handler.TanRequest{Tan: tan}, &out); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return out.Status
}

func apiStatus(err error) int {
	var apiErr *connection.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func TestAPI_TanLifecycle_Persistent(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dir := t.TempDir()
	api := startAPI(t, dir)

	var issued handler.IssueTanResponse
	if err := api.post(t, "/v1/tans", handler.IssueTanRequest{}, &issued); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.Type != domain.TanTypeTan {
		t.Fatalf("issued type = %q", issued.Type)
	}

	if got := api.verify(t, issued.Tan); got != domain.StatusValid {
		t.Errorf("status after issue = %q, want valid", got)
	}

	var redeemed handler.RedeemTanResponse
	if err := api.post(t, "/v1/tans/redeem", handler.TanRequest{Tan: issued.Tan}, &redeemed); err != nil || !redeemed.Redeemed {
		t.Fatalf("first redeem = %+v, %v", redeemed, err)
	}
	err := api.post(t, "/v1/tans/redeem", handler.TanRequest{Tan: issued.Tan}, &redeemed)
	if apiStatus(err) != http.StatusNotFound {
		t.Fatalf("second redeem error = %v, want 404", err)
	}

	// Redemption survives a restart on the same data directory.
	api.stop(t)
	api = startAPI(t, dir)
	defer api.stop(t)

	if got := api.verify(t, issued.Tan); got != domain.StatusRedeemed {
		t.Errorf("status after restart = %q, want redeemed", got)
	}

	n, err := api.svc.PurgeCreatedBefore(context.Background(), time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("PurgeCreatedBefore() = %d, %v; want 1", n, err)
	}
	if got := api.verify(t, issued.Tan); got != domain.StatusUnknown {
		t.Errorf("status after purge = %q, want unknown", got)
	}
}

func TestAPI_TeleTanBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	api := startAPI(t, t.TempDir())
	defer api.stop(t)

	req := handler.IssueTanRequest{Type: string(domain.TanTypeTeleTan)}
	for i := 0; i < 2; i++ {
		var issued handler.IssueTanResponse
		if err := api.post(t, "/v1/tans", req, &issued); err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		if got := api.verify(t, issued.Tan); got != domain.StatusValid {
			t.Errorf("teletan %d status = %q", i, got)
		}
	}

	err := api.post(t, "/v1/tans", req, nil)
	if apiStatus(err) != http.StatusTooManyRequests {
		t.Fatalf("third teletan error = %v, want 429", err)
	}
	if !strings.Contains(err.Error(), domain.ErrTeleTanRateLimited.Code) {
		t.Errorf("error = %v, want code %s", err, domain.ErrTeleTanRateLimited.Code)
	}

	// Standard TANs are not budgeted.
	if err := api.post(t, "/v1/tans", handler.IssueTanRequest{}, nil); err != nil {
		t.Errorf("standard issue after budget spent: %v", err)
	}

	resp, err := api.client.Get(context.Background(), "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	for _, want := range []string{
		"tanserver_teletan_rate_limited_total 1",
		`tanserver_tan_issued_total{type="TELETAN"} 2`,
		`tanserver_http_requests_total{code="429",method="POST",route="POST /v1/tans"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}
