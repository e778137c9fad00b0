package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// LabResultClient fetches the lab result for a hashed GUID.
type LabResultClient interface {
	Result(ctx context.Context, hashedGUID string) (domain.TestResult, error)
}

// LabResultService validates lookups and normalises lab results.
type LabResultService struct {
	client   LabResultClient
	logger   *slog.Logger
	recorder Recorder
}

// NewLabResultService creates a LabResultService.
func NewLabResultService(client LabResultClient, logger *slog.Logger, recorder Recorder) *LabResultService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &LabResultService{
		client:   client,
		logger:   logger,
		recorder: recorder,
	}
}

// Result returns the result for hashedGUID.
//
// The client is called exactly once. Unknown result codes are reported as
// domain.ResultInvalid; client failures as domain.ErrLabResultUnavailable.
func (s *LabResultService) Result(ctx context.Context, hashedGUID string) (domain.TestResult, error) {
	if !token.IsHashSyntaxValid(hashedGUID) {
		return domain.ResultInvalid, domain.ErrInvalidArgument.WithDetails("id must be 64 lowercase hex characters")
	}

	result, err := s.client.Result(ctx, hashedGUID)
	if err != nil {
		s.recorder.LabResult("error")
		if errors.Is(err, context.Canceled) {
			return domain.ResultInvalid, err
		}
		s.logger.ErrorContext(ctx, "lab result lookup failed", "error", err)
		return domain.ResultInvalid, domain.ErrLabResultUnavailable.WithCause(err)
	}

	if !result.IsValid() {
		s.logger.WarnContext(ctx, "lab returned unknown result code", "code", int(result))
		result = domain.ResultInvalid
	}
	s.recorder.LabResult(result.String())
	return result, nil
}
