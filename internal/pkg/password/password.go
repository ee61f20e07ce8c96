// Package password wraps bcrypt with the service's cost policy.
package password

import (
	"fmt"

	"github.com/go-auth-nosql/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// MinCost is the lowest bcrypt cost the hasher accepts; lower configured
// values are raised to it.
const MinCost = 10

// maxBytes is bcrypt's input limit; longer passwords are rejected rather than
// silently truncated.
const maxBytes = 72

// Hasher hashes and compares passwords with a fixed bcrypt cost.
type Hasher struct {
	cost      int
	dummyHash []byte
}

func NewHasher(cost int) *Hasher {
	if cost < MinCost {
		cost = MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	// Compared against when the account does not exist so that a miss costs
	// the same as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	if err != nil {
		panic("generate dummy bcrypt hash: " + err.Error())
	}
	return &Hasher{cost: cost, dummyHash: dummy}
}

func (h *Hasher) Hash(plain string) (string, error) {
	if len(plain) > maxBytes {
		return "", fmt.Errorf("password must be at most %d bytes: %w", maxBytes, domain.ErrValidation)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// Compare reports whether plain matches hash. A malformed hash is reported as
// a mismatch, never as a distinct error.
func (h *Hasher) Compare(hash, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// CompareDummy burns one bcrypt comparison and always reports false.
func (h *Hasher) CompareDummy(plain string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plain))
	return false
}

