package domain

import (
	"strings"
	"time"

	"github.com/cwa-verification/tanserver/pkg/token"
)

// TanType is the kind of an issued code.
type TanType string

// Known TAN types.
const (
	TanTypeTan     TanType = "TAN"
	TanTypeTeleTan TanType = "TELETAN"
)

// ParseTanType parses s case-insensitively.
func ParseTanType(s string) (TanType, error) {
	switch TanType(strings.ToUpper(strings.TrimSpace(s))) {
	case TanTypeTan:
		return TanTypeTan, nil
	case TanTypeTeleTan:
		return TanTypeTeleTan, nil
	}
	return "", ErrInvalidArgument.WithDetails("unknown tan type: " + s)
}

// IsValid reports whether t is a known type.
func (t TanType) IsValid() bool {
	return t == TanTypeTan || t == TanTypeTeleTan
}

// SourceOfTrust records what vouched for the positive result behind a TAN.
type SourceOfTrust string

// Known sources of trust.
const (
	SourceConnectedLab SourceOfTrust = "CONNECTED_LAB"
	SourceTeleTan      SourceOfTrust = "TELETAN"
)

// ParseSourceOfTrust parses s case-insensitively.
func ParseSourceOfTrust(s string) (SourceOfTrust, error) {
	switch SourceOfTrust(strings.ToUpper(strings.TrimSpace(s))) {
	case SourceConnectedLab:
		return SourceConnectedLab, nil
	case SourceTeleTan:
		return SourceTeleTan, nil
	}
	return "", ErrInvalidArgument.WithDetails("unknown source of trust: " + s)
}

// IsValid reports whether s is a known source of trust.
func (s SourceOfTrust) IsValid() bool {
	return s == SourceConnectedLab || s == SourceTeleTan
}

// Tan is the persisted record of an issued code.
//
// Only the SHA-256 hash of the plaintext is stored. Hash is the unique key
// across both kinds and never changes after creation. Redeemed only moves
// from false to true.
type Tan struct {
	// Hash is the lowercase hex SHA-256 of the plaintext.
	Hash string `json:"tan_hash"`

	Type          TanType       `json:"type"`
	SourceOfTrust SourceOfTrust `json:"source_of_trust"`
	Redeemed      bool          `json:"redeemed"`

	// ValidFrom and ValidUntil bound the inclusive validity window.
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version is the optimistic lock version number.
	Version uint64 `json:"version"`
}

// NewTan creates a record valid from now for validFor.
//
// Timestamps are normalized to UTC with microsecond resolution so every
// store round-trips them unchanged.
func NewTan(hash string, typ TanType, sot SourceOfTrust, now time.Time, validFor time.Duration) *Tan {
	now = NormalizeTime(now)
	return &Tan{
		Hash:          hash,
		Type:          typ,
		SourceOfTrust: sot,
		ValidFrom:     now,
		ValidUntil:    NormalizeTime(now.Add(validFor)),
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
}

// NormalizeTime converts t to UTC truncated to microseconds.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Microsecond)
}

// Normalize applies NormalizeTime to every timestamp.
func (t *Tan) Normalize() {
	t.ValidFrom = NormalizeTime(t.ValidFrom)
	t.ValidUntil = NormalizeTime(t.ValidUntil)
	t.CreatedAt = NormalizeTime(t.CreatedAt)
	t.UpdatedAt = NormalizeTime(t.UpdatedAt)
}

// InWindow reports whether now lies within [ValidFrom, ValidUntil].
func (t *Tan) InWindow(now time.Time) bool {
	return !now.Before(t.ValidFrom) && !now.After(t.ValidUntil)
}

// Status evaluates the record at now. Redeemed takes precedence over
// expiry; a window that has not started yet counts as expired.
func (t *Tan) Status(now time.Time) TanStatus {
	switch {
	case t.Redeemed:
		return StatusRedeemed
	case t.InWindow(now):
		return StatusValid
	default:
		return StatusExpired
	}
}

// CanBeRedeemed reports whether the record may be redeemed at now.
func (t *Tan) CanBeRedeemed(now time.Time) bool {
	return t.Status(now) == StatusValid
}

// MarkRedeemed flips Redeemed, touches UpdatedAt and bumps Version.
func (t *Tan) MarkRedeemed(now time.Time) {
	t.Redeemed = true
	t.UpdatedAt = NormalizeTime(now)
	t.Version++
}

// Validate checks field constraints.
// Returns ErrTanValidation with the violations joined as details.
func (t *Tan) Validate() error {
	var violations []string

	if !token.IsHashSyntaxValid(t.Hash) {
		violations = append(violations, "tan_hash must be 64 lowercase hex characters")
	}
	if !t.Type.IsValid() {
		violations = append(violations, "unknown type")
	}
	if !t.SourceOfTrust.IsValid() {
		violations = append(violations, "unknown source_of_trust")
	}
	if t.ValidFrom.IsZero() || t.ValidUntil.IsZero() {
		violations = append(violations, "validity window is required")
	} else if t.ValidUntil.Before(t.ValidFrom) {
		violations = append(violations, "valid_until before valid_from")
	}

	if len(violations) > 0 {
		return ErrTanValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Clone returns a copy of the record.
func (t *Tan) Clone() *Tan {
	c := *t
	return &c
}

// Equal reports whether two records carry the same state.
func (t *Tan) Equal(o *Tan) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Hash == o.Hash &&
		t.Type == o.Type &&
		t.SourceOfTrust == o.SourceOfTrust &&
		t.Redeemed == o.Redeemed &&
		t.ValidFrom.Equal(o.ValidFrom) &&
		t.ValidUntil.Equal(o.ValidUntil) &&
		t.CreatedAt.Equal(o.CreatedAt) &&
		t.UpdatedAt.Equal(o.UpdatedAt) &&
		t.Version == o.Version
}
