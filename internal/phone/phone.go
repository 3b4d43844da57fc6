// Package phone normalizes Kenyan mobile numbers to the canonical
// 254XXXXXXXXX form required by the M-Pesa gateway.
package phone

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalid is returned for inputs that do not match a Kenyan mobile number.
var ErrInvalid = errors.New("invalid Kenyan mobile number")

// Accepted forms: 07XXXXXXXX, 01XXXXXXXX, 7XXXXXXXX, 1XXXXXXXX,
// 2547XXXXXXXX, 2541XXXXXXXX and the same with a leading +.
var msisdnPattern = regexp.MustCompile(`^(?:\+?254|0)?([17]\d{8})$`)

// Normalize returns the canonical 254XXXXXXXXX form of raw. Spaces and
// dashes are tolerated; anything else that does not match fails with
// ErrInvalid before any network call is attempted.
func Normalize(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	m := msisdnPattern.FindStringSubmatch(s)
	if m == nil {
		return "", ErrInvalid
	}
	return "254" + m[1], nil
}

// IsValid reports whether raw is an acceptable Kenyan mobile number.
func IsValid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
