package quickauth_test

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qa "github.com/panyam/quickauth"
)

func TestGenerateResetToken(t *testing.T) {
	token, hash, err := qa.GenerateResetToken()
	require.NoError(t, err)

	raw, err := hex.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, raw, qa.ResetTokenBytes)
	assert.Equal(t, qa.HashResetToken(token), hash)
	assert.NotEqual(t, token, hash)

	other, _, err := qa.GenerateResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestResetTokenExpiry(t *testing.T) {
	issued := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	token, hash, err := qa.GenerateResetToken()
	require.NoError(t, err)

	a := &qa.Account{ID: "a1", Username: "alice"}
	a.ApplyResetToken(hash, issued)

	require.NotNil(t, a.ResetTokenExpiry)
	assert.Equal(t, issued.Add(time.Hour), *a.ResetTokenExpiry)
	assert.True(t, a.ResetTokenExpiry.After(issued))

	tests := []struct {
		name  string
		token string
		at    time.Time
		valid bool
	}{
		{"at issuance", token, issued, true},
		{"just before expiry", token, issued.Add(59*time.Minute + 59*time.Second), true},
		{"at expiry", token, issued.Add(time.Hour), false},
		{"after expiry", token, issued.Add(2 * time.Hour), false},
		{"wrong token", "deadbeef", issued, false},
		{"empty token", "", issued, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, a.ResetTokenValid(tt.token, tt.at))
		})
	}
}

func TestAccountPublicStripsSecrets(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	a := &qa.Account{
		ID:               "a1",
		Username:         "alice",
		PasswordHash:     "$2a$10$x",
		ResetTokenHash:   "abc",
		ResetTokenExpiry: &expiry,
	}
	pub := a.Public()
	assert.Empty(t, pub.PasswordHash)
	assert.Empty(t, pub.ResetTokenHash)
	assert.Nil(t, pub.ResetTokenExpiry)
	assert.Equal(t, "$2a$10$x", a.PasswordHash, "original must be untouched")

	var nilAccount *qa.Account
	assert.Nil(t, nilAccount.Public())
}
