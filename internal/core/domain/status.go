package domain

// TanStatus is the read-only verification outcome for a plaintext.
type TanStatus string

// Verification outcomes.
const (
	StatusValid    TanStatus = "valid"
	StatusExpired  TanStatus = "expired"
	StatusRedeemed TanStatus = "redeemed"

	// StatusUnknown covers malformed input and codes that were never issued.
	StatusUnknown TanStatus = "unknown"
)

func (s TanStatus) String() string {
	return string(s)
}
