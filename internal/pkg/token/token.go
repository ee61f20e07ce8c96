package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	codeMin = 100000
	codeMax = 999999

	// ResetTokenBytes is the entropy of a password reset token before hex encoding.
	ResetTokenBytes = 20
)

// NewVerificationCode returns a 6-digit numeric code drawn uniformly from
// [100000, 999999] using crypto/rand.
func NewVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// NewResetToken generates a cryptographically random 40-character hex token.
func NewResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
