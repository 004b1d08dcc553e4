package quickauth

import (
	"errors"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt work factor used for new hashes.
const DefaultPasswordCost = 10

var ErrEmptyPassword = errors.New("password cannot be empty")

// PasswordHasher turns passwords into one-way hashes and checks candidates
// against them.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, candidate string) bool
}

// BcryptHasher hashes with bcrypt. A zero Cost means DefaultPasswordCost.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{Cost: DefaultPasswordCost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	cost := h.Cost
	if cost == 0 {
		cost = DefaultPasswordCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return string(hash), nil
}

// Verify reports whether candidate matches hash. Comparison is constant
// time; a malformed hash never matches.
func (h *BcryptHasher) Verify(hash, candidate string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
