package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	qa "github.com/panyam/quickauth"
)

func TestDocumentMapping(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := created.Add(qa.ResetTokenExpiry)
	a := &qa.Account{
		ID:               "01JNQ6W8ZK3E2V4M7R9T0YBXCD",
		Username:         "Alice",
		Email:            "Alice@Example.com",
		Provider:         qa.ProviderLocal,
		PasswordHash:     "hash",
		ResetTokenHash:   "reset",
		ResetTokenExpiry: &expiry,
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	doc := toDoc(a)
	assert.Equal(t, "alice@example.com", doc.EmailLower)
	assert.Equal(t, "Alice", doc.Username)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded accountDoc
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got := decoded.account()
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Email, got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
	require.NotNil(t, got.ResetTokenExpiry)
	assert.True(t, expiry.Equal(*got.ResetTokenExpiry))
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
}

func TestDocumentOmitsEmptyResetToken(t *testing.T) {
	raw, err := bson.Marshal(toDoc(&qa.Account{ID: "x", Username: "bob"}))
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.NotContains(t, m, "reset_token_hash")
	assert.NotContains(t, m, "reset_token_expiry")
	assert.NotContains(t, m, "email_lower")
}
