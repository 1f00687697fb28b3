package payment

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	orderReferencePattern = regexp.MustCompile(`ORDER-([0-9a-fA-F]{24})\b`)
)

// NormalizePhone converts a Kenyan mobile number in any of the usual forms
// (07XXXXXXXX, +254 7XX XXX XXX, 2547XXXXXXXX) to 254XXXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.NewReplacer("+", "", " ", "", "-", "").Replace(strings.TrimSpace(raw))
	if len(cleaned) < 9 {
		return "", ErrInvalidPhoneNumber
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhoneNumber
		}
	}
	return "254" + cleaned[len(cleaned)-9:], nil
}

// ExtractOrderID finds an ORDER-<24 hex> account reference inside a
// provider identifier and returns the embedded id.
func ExtractOrderID(ref string) (string, bool) {
	m := orderReferencePattern.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func accountReference(orderID string) string {
	return "ORDER-" + orderID
}
