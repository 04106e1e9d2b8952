package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"strings"
)

const (
	// TwoFactorCodeMin and TwoFactorCodeMax bound the emailed one-time code.
	TwoFactorCodeMin = 100000
	TwoFactorCodeMax = 999999
)

var errCodeFormat = errors.New("invalid two-factor code format")

// NewTwoFactorCode returns a code drawn uniformly from
// [TwoFactorCodeMin, TwoFactorCodeMax] using crypto/rand.
func NewTwoFactorCode() (int, error) {
	span := big.NewInt(TwoFactorCodeMax - TwoFactorCodeMin + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, err
	}
	return TwoFactorCodeMin + int(n.Int64()), nil
}

// ParseTwoFactorCode parses a submitted code as a base-10 integer. Only
// six-digit values inside the issued range are accepted.
func ParseTwoFactorCode(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 6 {
		return 0, errCodeFormat
	}
	code, err := strconv.Atoi(raw)
	if err != nil || code < TwoFactorCodeMin || code > TwoFactorCodeMax {
		return 0, errCodeFormat
	}
	return code, nil
}
