package token

// TanLength is the length of a canonical UUID string.
const TanLength = 36

// IsTanSyntaxValid reports whether s is a UUID in canonical textual form:
// 36 characters, hyphens at offsets 8, 13, 18 and 23, hex digits elsewhere.
// Hex digits are matched case-insensitively.
// Braced, URN and hyphen-less forms (all accepted by uuid.Parse) are rejected.
func IsTanSyntaxValid(s string) bool {
	if len(s) != TanLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch i {
		case 8, 13, 18, 23:
			if s[i] != '-' {
				return false
			}
		default:
			if !isHex(s[i]) {
				return false
			}
		}
	}
	return true
}

// IsTeleTanSyntaxValid reports whether s is a TeleTAN under the default
// alphabet and length.
func IsTeleTanSyntaxValid(s string) bool {
	return defaultGenerator.IsTeleTanSyntaxValid(s)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
