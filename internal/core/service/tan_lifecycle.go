package service

import (
	"context"
	"errors"
	"time"

	"github.com/cwa-verification/tanserver/internal/core/domain"
	"github.com/cwa-verification/tanserver/pkg/token"
)

// ============================================================================
// Redemption
// ============================================================================

// Redeem marks plaintext as redeemed.
//
// It returns true iff the record exists, is not redeemed yet and now lies
// within its validity window. Every other outcome returns false with no
// mutation; the cause is not exposed to the caller. Only store failures
// produce an error.
func (s *TanService) Redeem(ctx context.Context, plaintext string) (bool, error) {
	if !s.IsSyntaxValid(plaintext) {
		s.recorder.RedeemRejected(RejectMalformed)
		return false, nil
	}
	return s.redeem(ctx, token.Hash(plaintext), "")
}

// RedeemTeleTan redeems a TeleTAN. Standard TANs presented here fail.
func (s *TanService) RedeemTeleTan(ctx context.Context, plaintext string) (bool, error) {
	if !s.generator.IsTeleTanSyntaxValid(plaintext) {
		s.recorder.RedeemRejected(RejectMalformed)
		return false, nil
	}
	return s.redeem(ctx, token.Hash(plaintext), domain.TanTypeTeleTan)
}

// redeem runs get, check and compare-and-set under the hash's stripe lock.
// The lock orders redeemers within this process; the version check catches
// writers in other processes, in which case the record is read once more.
func (s *TanService) redeem(ctx context.Context, hash string, want domain.TanType) (bool, error) {
	unlock := s.locks.Lock(hash)
	defer unlock()

	for attempt := 0; attempt < 2; attempt++ {
		record, err := s.repo.Get(ctx, hash)
		if errors.Is(err, domain.ErrTanNotFound) {
			s.recorder.RedeemRejected(RejectUnknown)
			return false, nil
		}
		if err != nil {
			return false, storeError(err)
		}

		if want != "" && record.Type != want {
			s.recorder.RedeemRejected(RejectTypeMismatch)
			return false, nil
		}

		now := s.clock.Now()
		switch record.Status(now) {
		case domain.StatusRedeemed:
			s.recorder.RedeemRejected(RejectRedeemed)
			return false, nil
		case domain.StatusExpired:
			s.recorder.RedeemRejected(RejectExpired)
			return false, nil
		}

		expected := record.Version
		record.MarkRedeemed(now)

		err = s.repo.Update(ctx, record, expected)
		switch {
		case err == nil:
			s.recorder.TanRedeemed(record.Type)
			s.logger.DebugContext(ctx, "tan redeemed", "type", record.Type, "tan_hash", hash)
			return true, nil
		case errors.Is(err, domain.ErrTanVersionConflict):
			s.logger.DebugContext(ctx, "tan redeem version conflict, re-reading", "tan_hash", hash)
			continue
		case errors.Is(err, domain.ErrTanNotFound):
			s.recorder.RedeemRejected(RejectUnknown)
			return false, nil
		default:
			return false, storeError(err)
		}
	}

	s.recorder.RedeemRejected(RejectConflict)
	return false, nil
}

// ============================================================================
// Administration
// ============================================================================

// Save upserts a record and returns the persisted state.
//
// Saving a record equal to the stored one (ignoring Version) is a no-op.
// Otherwise the write is a compare-and-set against the stored version and
// the stored Version is advanced. A redeemed record cannot be reverted.
func (s *TanService) Save(ctx context.Context, tan *domain.Tan) (*domain.Tan, error) {
	if tan == nil {
		return nil, domain.ErrMissingArgument.WithDetails("tan is required")
	}
	record := tan.Clone()
	record.Normalize()
	if err := record.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(record.Hash)
	defer unlock()

	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.repo.Get(ctx, record.Hash)
		if errors.Is(err, domain.ErrTanNotFound) {
			if record.Version == 0 {
				record.Version = 1
			}
			err = s.repo.Create(ctx, record)
			if errors.Is(err, domain.ErrTanHashConflict) {
				continue
			}
			if err != nil {
				return nil, storeError(err)
			}
			return record.Clone(), nil
		}
		if err != nil {
			return nil, storeError(err)
		}

		if existing.Redeemed && !record.Redeemed {
			return nil, domain.ErrInvalidArgument.WithDetails("a redeemed tan cannot be reverted")
		}

		record.Version = existing.Version
		if record.Equal(existing) {
			return existing, nil
		}

		record.Version = existing.Version + 1
		err = s.repo.Update(ctx, record, existing.Version)
		if errors.Is(err, domain.ErrTanVersionConflict) || errors.Is(err, domain.ErrTanNotFound) {
			continue
		}
		if err != nil {
			return nil, storeError(err)
		}
		return record.Clone(), nil
	}

	return nil, domain.ErrTanVersionConflict
}

// Delete removes a record by its hash. Absent records are ignored.
func (s *TanService) Delete(ctx context.Context, tan *domain.Tan) error {
	if tan == nil {
		return nil
	}
	return s.DeleteByHash(ctx, tan.Hash)
}

// DeleteByHash removes the record with the given hash. Absent records are
// ignored; a malformed hash is rejected.
func (s *TanService) DeleteByHash(ctx context.Context, hash string) error {
	if !token.IsHashSyntaxValid(hash) {
		return domain.ErrInvalidArgument.WithDetails("tan_hash must be 64 lowercase hex characters")
	}
	if err := s.repo.Delete(ctx, hash); err != nil {
		return storeError(err)
	}
	s.logger.InfoContext(ctx, "tan deleted", "tan_hash", hash)
	return nil
}

// PurgeCreatedBefore removes every record created before cutoff and returns
// the number removed.
func (s *TanService) PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.repo.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return n, storeError(err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged tans", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
