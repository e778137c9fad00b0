package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/pkg/keylock"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// TanRepository defines the storage interface for TAN records.
//
// All methods are keyed by the hex SHA-256 hash. Implementations must make
// Create and Update atomic per key.
type TanRepository interface {
	// Get retrieves a record. Returns domain.ErrTanNotFound if absent.
	Get(ctx context.Context, hash string) (*domain.Tan, error)

	// Exists reports whether a record with the hash is stored.
	Exists(ctx context.Context, hash string) (bool, error)

	// Create inserts a record if no record with the same hash exists.
	// Returns domain.ErrTanHashConflict otherwise.
	Create(ctx context.Context, tan *domain.Tan) error

	// Update replaces a record whose stored version equals expectedVersion.
	// Returns domain.ErrTanNotFound or domain.ErrTanVersionConflict.
	Update(ctx context.Context, tan *domain.Tan, expectedVersion uint64) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, hash string) error

	// DeleteCreatedBefore removes records created before cutoff and
	// returns how many were removed.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// TanGenerator produces plaintext candidates.
type TanGenerator interface {
	GenerateTan() (string, error)
	GenerateTeleTan() (string, error)
	IsTeleTanSyntaxValid(s string) bool
}

// TanServiceConfig holds configuration for TanService.
type TanServiceConfig struct {
	// TanValidity is the validity window of standard TANs (default: 14 days).
	TanValidity time.Duration

	// TeleTanValidity is the validity window of TeleTANs (default: 1h).
	TeleTanValidity time.Duration

	// MaxGenerationAttempts caps candidates per issuance (default: 16).
	MaxGenerationAttempts int

	// LockStripes is the number of redemption lock stripes (default: 256).
	LockStripes int
}

// DefaultTanServiceConfig returns default configuration.
func DefaultTanServiceConfig() *TanServiceConfig {
	return &TanServiceConfig{
		TanValidity:           14 * 24 * time.Hour,
		TeleTanValidity:       time.Hour,
		MaxGenerationAttempts: 16,
		LockStripes:           keylock.DefaultStripes,
	}
}

// TanService handles the TAN lifecycle.
type TanService struct {
	repo      TanRepository
	cfg       TanServiceConfig
	clock     Clock
	generator TanGenerator
	logger    *slog.Logger
	recorder  Recorder
	limiter   *TeleTanLimiter
	locks     *keylock.Striped
}

// Option configures a TanService.
type Option func(*TanService)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *TanService) {
		s.clock = c
	}
}

// WithGenerator sets the candidate generator.
func WithGenerator(g TanGenerator) Option {
	return func(s *TanService) {
		s.generator = g
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *TanService) {
		s.logger = l
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *TanService) {
		s.recorder = r
	}
}

// WithTeleTanLimiter enables the TeleTAN issuance budget.
func WithTeleTanLimiter(l *TeleTanLimiter) Option {
	return func(s *TanService) {
		s.limiter = l
	}
}

// NewTanService creates a new TanService. A nil config selects defaults;
// zero fields fall back to their defaults individually.
func NewTanService(repo TanRepository, config *TanServiceConfig, opts ...Option) *TanService {
	def := DefaultTanServiceConfig()
	cfg := *def
	if config != nil {
		cfg = *config
		if cfg.TanValidity <= 0 {
			cfg.TanValidity = def.TanValidity
		}
		if cfg.TeleTanValidity <= 0 {
			cfg.TeleTanValidity = def.TeleTanValidity
		}
		if cfg.MaxGenerationAttempts <= 0 {
			cfg.MaxGenerationAttempts = def.MaxGenerationAttempts
		}
	}

	s := &TanService{
		repo:      repo,
		cfg:       cfg,
		clock:     SystemClock,
		generator: token.DefaultGenerator(),
		logger:    slog.Default(),
		recorder:  nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locks = keylock.New(cfg.LockStripes)
	return s
}

// ============================================================================
// Issuance
// ============================================================================

// Issue issues a code of the given kind and returns its plaintext.
//
// The plaintext is returned exactly once and never persisted.
func (s *TanService) Issue(ctx context.Context, typ domain.TanType, sot domain.SourceOfTrust) (string, error) {
	switch typ {
	case domain.TanTypeTan:
		return s.IssueTan(ctx, sot)
	case domain.TanTypeTeleTan:
		return s.IssueTeleTan(ctx, sot)
	default:
		return "", domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown tan type %q", typ))
	}
}

// IssueTan issues a standard TAN valid for the configured TAN validity.
func (s *TanService) IssueTan(ctx context.Context, sot domain.SourceOfTrust) (string, error) {
	return s.issue(ctx, domain.TanTypeTan, sot, s.cfg.TanValidity, s.generator.GenerateTan)
}

// IssueTeleTan issues a TeleTAN valid for the configured TeleTAN validity.
// Returns domain.ErrTeleTanRateLimited when the issuance budget is spent.
func (s *TanService) IssueTeleTan(ctx context.Context, sot domain.SourceOfTrust) (string, error) {
	if s.limiter != nil && !s.limiter.Allow(s.clock.Now()) {
		s.recorder.TeleTanRateLimited()
		s.logger.WarnContext(ctx, "teletan issuance rate limited", "source_of_trust", sot)
		return "", domain.ErrTeleTanRateLimited
	}
	return s.issue(ctx, domain.TanTypeTeleTan, sot, s.cfg.TeleTanValidity, s.generator.GenerateTeleTan)
}

func (s *TanService) issue(ctx context.Context, typ domain.TanType, sot domain.SourceOfTrust,
	validFor time.Duration, generate func() (string, error)) (string, error) {
	if !sot.IsValid() {
		return "", domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown source of trust %q", sot))
	}

	for attempt := 1; attempt <= s.cfg.MaxGenerationAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		plaintext, err := generate()
		if err != nil {
			return "", domain.ErrInternalServer.WithCause(err)
		}

		record := domain.NewTan(token.Hash(plaintext), typ, sot, s.clock.Now(), validFor)
		err = s.repo.Create(ctx, record)
		switch {
		case err == nil:
			s.recorder.TanIssued(typ)
			s.logger.DebugContext(ctx, "tan issued",
				"type", typ,
				"source_of_trust", sot,
				"attempt", attempt,
				"valid_until", record.ValidUntil,
			)
			return plaintext, nil
		case errors.Is(err, domain.ErrTanHashConflict):
			s.recorder.GenerationCollision(typ)
			continue
		default:
			return "", storeError(err)
		}
	}

	s.recorder.GenerationExhausted(typ)
	s.logger.WarnContext(ctx, "tan generation attempts exhausted",
		"type", typ,
		"attempts", s.cfg.MaxGenerationAttempts,
	)
	return "", domain.ErrGenerationExhausted.WithDetails(
		fmt.Sprintf("%d candidates collided", s.cfg.MaxGenerationAttempts),
	)
}

// ============================================================================
// Queries
// ============================================================================

// IsSyntaxValid reports whether plaintext is a well-formed TAN or TeleTAN.
func (s *TanService) IsSyntaxValid(plaintext string) bool {
	return token.IsTanSyntaxValid(plaintext) || s.generator.IsTeleTanSyntaxValid(plaintext)
}

// IsTeleTanSyntaxValid reports whether plaintext is a well-formed TeleTAN
// under the configured alphabet and length.
func (s *TanService) IsTeleTanSyntaxValid(plaintext string) bool {
	return s.generator.IsTeleTanSyntaxValid(plaintext)
}

// CheckSyntax returns domain.ErrTanMalformed if plaintext is neither a TAN
// nor a TeleTAN.
func (s *TanService) CheckSyntax(plaintext string) error {
	if !s.IsSyntaxValid(plaintext) {
		return domain.ErrTanMalformed
	}
	return nil
}

// Exists reports whether plaintext was issued. Malformed input is
// reported as absent without touching the store.
func (s *TanService) Exists(ctx context.Context, plaintext string) (bool, error) {
	if !s.IsSyntaxValid(plaintext) {
		return false, nil
	}
	ok, err := s.repo.Exists(ctx, token.Hash(plaintext))
	if err != nil {
		return false, storeError(err)
	}
	return ok, nil
}

// Lookup returns the record for plaintext, or nil if it is absent or
// malformed.
func (s *TanService) Lookup(ctx context.Context, plaintext string) (*domain.Tan, error) {
	if !s.IsSyntaxValid(plaintext) {
		return nil, nil
	}
	return s.lookupHash(ctx, token.Hash(plaintext))
}

func (s *TanService) lookupHash(ctx context.Context, hash string) (*domain.Tan, error) {
	record, err := s.repo.Get(ctx, hash)
	if errors.Is(err, domain.ErrTanNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err)
	}
	return record, nil
}

// Verify reports the status of plaintext at the current time without
// mutating anything. Malformed and never-issued codes are StatusUnknown.
func (s *TanService) Verify(ctx context.Context, plaintext string) (domain.TanStatus, error) {
	record, err := s.Lookup(ctx, plaintext)
	if err != nil {
		return domain.StatusUnknown, err
	}
	if record == nil {
		return domain.StatusUnknown, nil
	}
	return record.Status(s.clock.Now()), nil
}

// storeError wraps infrastructure failures in domain.ErrStoreUnavailable.
// Context errors pass through unchanged.
func storeError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if domain.IsDomainError(err, "") {
		return err
	}
	return domain.ErrStoreUnavailable.WithCause(err)
}
