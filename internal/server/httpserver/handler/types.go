package handler

import (
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// IssueTanRequest is the request body for POST /v1/tans.
// Type defaults to TAN; SourceOfTrust defaults by type.
type IssueTanRequest struct {
	Type          string `json:"type,omitempty"`
	SourceOfTrust string `json:"source_of_trust,omitempty"`
}

// IssueTanResponse is the response body for POST /v1/tans.
// Tan is the plaintext and is returned exactly once.
type IssueTanResponse struct {
	Tan  string         `json:"tan"`
	Type domain.TanType `json:"type"`
}

// TanRequest is the request body for verify and redeem.
type TanRequest struct {
	Tan string `json:"tan"`
}

// VerifyTanResponse is the response body for POST /v1/tans/verify.
type VerifyTanResponse struct {
	Status domain.TanStatus `json:"status"`
}

// RedeemTanResponse is the response body for POST /v1/tans/redeem.
type RedeemTanResponse struct {
	Redeemed bool `json:"redeemed"`
}

// TestResultRequest is the request body for POST /v1/testresult.
type TestResultRequest struct {
	ID string `json:"id"`
}

// TestResultResponse is the response body for POST /v1/testresult.
type TestResultResponse struct {
	TestResult int    `json:"test_result"`
	Label      string `json:"label"`
}

// HealthResponse is the response body for GET /health and GET /ready.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
