// utils/validator.go - Input validation
package utils

import (
	"regexp"
	"strings"
)

var (
	mobileRegex = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	utrRegex    = regexp.MustCompile(`^[A-Z0-9]{6,30}$`)
	pincodeRe   = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

// NormalizeMobile strips spaces, dashes and a leading +91/0 from an Indian mobile number.
func NormalizeMobile(mobile string) string {
	m := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(mobile))
	m = strings.TrimPrefix(m, "+91")
	if len(m) == 11 && strings.HasPrefix(m, "0") {
		m = m[1:]
	}
	return m
}

// ValidateMobile checks a 10 digit Indian mobile number (after NormalizeMobile).
func ValidateMobile(mobile string) bool {
	return mobileRegex.MatchString(NormalizeMobile(mobile))
}

// NormalizeUTR upper-cases a bank reference and drops whitespace.
func NormalizeUTR(utr string) string {
	return strings.ToUpper(strings.Join(strings.Fields(utr), ""))
}

// ValidateUTR checks the normalized UTR is 6-30 alphanumerics.
func ValidateUTR(utr string) bool {
	return utrRegex.MatchString(NormalizeUTR(utr))
}

// ValidatePincode checks a 6 digit postal code.
func ValidatePincode(pincode string) bool {
	return pincodeRe.MatchString(strings.TrimSpace(pincode))
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	return strings.ReplaceAll(input, "\x00", "")
}
