package quickauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token parameters.
const (
	ResetTokenBytes  = 32
	ResetTokenExpiry = time.Hour
)

// ResetTokenGenerator produces a plaintext reset token and the hash stored
// on the account.
type ResetTokenGenerator func() (token, hash string, err error)

// GenerateResetToken returns 32 random bytes hex encoded, and their SHA-256.
func GenerateResetToken() (token, hash string, err error) {
	b := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	token = hex.EncodeToString(b)
	return token, HashResetToken(token), nil
}

func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ApplyResetToken records a new reset token on the account, replacing any
// previous one. The expiry is issuedAt plus ResetTokenExpiry.
func (a *Account) ApplyResetToken(hash string, issuedAt time.Time) {
	expiry := issuedAt.Add(ResetTokenExpiry)
	a.ResetTokenHash = hash
	a.ResetTokenExpiry = &expiry
	a.UpdatedAt = issuedAt
}

// ResetTokenValid reports whether token matches the account's outstanding
// reset token and has not expired at now.
func (a *Account) ResetTokenValid(token string, now time.Time) bool {
	if token == "" || a.ResetTokenHash == "" || a.ResetTokenExpiry == nil {
		return false
	}
	if !now.Before(*a.ResetTokenExpiry) {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(a.ResetTokenHash)) == 1
}
