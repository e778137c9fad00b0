package service

import "github.com/cwa-verification/tanserver/internal/core/domain"

// Redeem rejection reasons reported to Recorder.
const (
	RejectMalformed    = "malformed"
	RejectUnknown      = "unknown"
	RejectExpired      = "expired"
	RejectRedeemed     = "redeemed"
	RejectTypeMismatch = "type_mismatch"
	RejectConflict     = "conflict"
)

// Recorder receives lifecycle events for metrics.
type Recorder interface {
	TanIssued(typ domain.TanType)
	TanRedeemed(typ domain.TanType)
	RedeemRejected(reason string)
	GenerationCollision(typ domain.TanType)
	GenerationExhausted(typ domain.TanType)
	TeleTanRateLimited()
	LabResult(result string)
}

type nopRecorder struct{}

func (nopRecorder) TanIssued(domain.TanType)           {}
func (nopRecorder) TanRedeemed(domain.TanType)         {}
func (nopRecorder) RedeemRejected(string)              {}
func (nopRecorder) GenerationCollision(domain.TanType) {}
func (nopRecorder) GenerationExhausted(domain.TanType) {}
func (nopRecorder) TeleTanRateLimited()                {}
func (nopRecorder) LabResult(string)                   {}
