package pdfengine

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const pinDigits = 6

var pinSpace = big.NewInt(1_000_000)

// GeneratePIN returns a uniformly random 6-digit numeric access code.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, pinSpace)
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", pinDigits, n.Int64()), nil
}
