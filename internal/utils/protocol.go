package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateProtocol returns a customer-facing protocol number such as
// "SIN-20240501-048213": prefix, local date and six random digits.
func GenerateProtocol(prefix string, now time.Time) string {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		// fall back to the clock
		n = big.NewInt(now.UnixNano() % 1000000)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, now.Format("20060102"), n.Int64())
}

// MaskNationalID hides the middle digits of a CPF for operator notifications
func MaskNationalID(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return fmt.Sprintf("%s.***.***-%s", digits[:3], digits[9:])
}
