package domain

// TestResult is the lab result code returned for a hashed GUID.
type TestResult int

// Lab result codes.
const (
	ResultPending  TestResult = 0
	ResultNegative TestResult = 1
	ResultPositive TestResult = 2
	ResultInvalid  TestResult = 3
	ResultRedeemed TestResult = 4
)

var resultNames = [...]string{"pending", "negative", "positive", "invalid", "redeemed"}

// IsValid reports whether r is a known result code.
func (r TestResult) IsValid() bool {
	return r >= ResultPending && r <= ResultRedeemed
}

func (r TestResult) String() string {
	if !r.IsValid() {
		return "unknown"
	}
	return resultNames[r]
}
