package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/internal/core/service"
	"github.com/cwa-verification/tanserver/internal/telemetry/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Generic error codes written by the HTTP layer.
const (
	codeBadRequest = "TV-SYS-4000"
	codeInternal   = "TV-SYS-5000"
)

// ReadyFunc reports whether the server can serve traffic.
type ReadyFunc func(ctx context.Context) error

// Handler routes requests to the TAN and lab result services.
type Handler struct {
	tanSvc *service.TanService
	labSvc *service.LabResultService
	ready  ReadyFunc
	logger *slog.Logger
	mux    *http.ServeMux
}

// Option configures a Handler.
type Option func(*Handler)

// WithLabResultService enables POST /v1/testresult.
func WithLabResultService(s *service.LabResultService) Option {
	return func(h *Handler) {
		h.labSvc = s
	}
}

// WithReadyCheck sets the probe behind GET /ready.
func WithReadyCheck(fn ReadyFunc) Option {
	return func(h *Handler) {
		h.ready = fn
	}
}

// New creates a Handler.
func New(tanSvc *service.TanService, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		tanSvc: tanSvc,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET /version", h.handleVersion)

	h.mux.HandleFunc("POST /v1/tans", h.handleIssueTan)
	h.mux.HandleFunc("POST /v1/tans/verify", h.handleVerifyTan)
	h.mux.HandleFunc("POST /v1/tans/redeem", h.handleRedeemTan)

	if h.labSvc != nil {
		h.mux.HandleFunc("POST /v1/testresult", h.handleTestResult)
	}

	h.mux.HandleFunc("DELETE /admin/v1/tans/{hash}", h.handleDeleteTan)
}

// writeJSON writes a JSON response with the standard envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with the standard envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logger.RequestIDFromContext(r.Context())
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// decodeJSON reads a single JSON object from the request body.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, r, http.StatusBadRequest, codeBadRequest, "invalid request body", nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		h.writeError(w, r, http.StatusBadRequest, codeBadRequest, "request body must hold a single object", nil)
		return false
	}
	return true
}

// handleServiceError converts service errors to HTTP responses.
// Store and internal failures are logged and reduced to a generic reply.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := h.requestLogger(r)

	switch {
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Error("store unavailable", "error", err)
		h.writeError(w, r, http.StatusServiceUnavailable, codeInternal, "internal server error", nil)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("request aborted", "error", err)
		h.writeError(w, r, http.StatusServiceUnavailable, codeInternal, "internal server error", nil)
		return
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		status := errorCodeToHTTPStatus(de.Code)
		if status >= http.StatusInternalServerError {
			log.Error("request failed", "error", err)
		}
		message := de.Message
		if de.Details != "" {
			message += ": " + de.Details
		}
		h.writeError(w, r, status, de.Code, message, nil)
		return
	}

	log.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, codeInternal, "internal server error", nil)
}

// requestLogger returns the handler logger tagged with the request ID.
func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return h.logger.With("request_id", id)
	}
	return h.logger
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasPrefix(code, "TV-ARG-"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"), strings.HasSuffix(code, "-4091"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-5030"), strings.HasSuffix(code, "-5031"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
