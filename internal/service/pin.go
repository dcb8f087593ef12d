package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PinGenerator produces access PINs for LIVE assignments.
type PinGenerator interface {
	NewPin() (string, error)
}

// PinGeneratorFunc adapts a function into a PinGenerator.
type PinGeneratorFunc func() (string, error)

// NewPin implements PinGenerator.
func (f PinGeneratorFunc) NewPin() (string, error) {
	return f()
}

var pinUpperBound = big.NewInt(1_000_000)

// RandomPinGenerator returns zero-padded 6-digit PINs from crypto/rand.
func RandomPinGenerator() PinGenerator {
	return PinGeneratorFunc(func() (string, error) {
		n, err := rand.Int(rand.Reader, pinUpperBound)
		if err != nil {
			return "", fmt.Errorf("generate access pin: %w", err)
		}
		return fmt.Sprintf("%06d", n.Int64()), nil
	})
}
