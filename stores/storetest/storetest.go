// Package storetest holds behaviour tests shared by every AccountStore
// backend.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qa "github.com/panyam/quickauth"
)

// NewAccount returns a local account with a fresh id.
func NewAccount(username, email string) *qa.Account {
	now := time.Now().UTC().Truncate(time.Second)
	return &qa.Account{
		ID:           qa.NewAccountID(),
		Username:     username,
		Email:        email,
		Provider:     qa.ProviderLocal,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Run exercises store against the AccountStore contract. newStore must
// return an empty store each time it is called.
func Run(t *testing.T, newStore func(t *testing.T) qa.AccountStore) {
	t.Run("create and lookup", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		alice := NewAccount("alice", "alice@example.com")
		alice.FirstName = "Alice"
		require.NoError(t, store.CreateAccount(ctx, alice))

		got, err := store.GetAccountByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, "Alice", got.FirstName)
		assert.Equal(t, alice.PasswordHash, got.PasswordHash)

		got, err = store.GetAccountByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)

		got, err = store.GetAccountByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
	})

	t.Run("not found", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		_, err := store.GetAccountByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, qa.ErrAccountNotFound)
		_, err = store.GetAccountByID(ctx, qa.NewAccountID())
		assert.ErrorIs(t, err, qa.ErrAccountNotFound)
		_, err = store.GetAccountByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, qa.ErrAccountNotFound)
	})

	t.Run("email lookup returns the oldest account", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		// Created out of order so neither id nor insertion order matches age.
		newer := NewAccount("grace", "shared@example.com")
		older := NewAccount("heidi", "Shared@Example.com")
		older.CreatedAt = newer.CreatedAt.Add(-time.Hour)
		older.UpdatedAt = older.CreatedAt
		require.NoError(t, store.CreateAccount(ctx, newer))
		require.NoError(t, store.CreateAccount(ctx, older))

		got, err := store.GetAccountByEmail(ctx, "SHARED@example.com")
		require.NoError(t, err)
		assert.Equal(t, older.ID, got.ID)
	})

	t.Run("usernames are case sensitive", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.CreateAccount(ctx, NewAccount("bob", "")))
		require.NoError(t, store.CreateAccount(ctx, NewAccount("Bob", "")))
		_, err := store.GetAccountByUsername(ctx, "BOB")
		assert.ErrorIs(t, err, qa.ErrAccountNotFound)
	})

	t.Run("duplicate username", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		first := NewAccount("carol", "")
		require.NoError(t, store.CreateAccount(ctx, first))
		err := store.CreateAccount(ctx, NewAccount("carol", ""))
		assert.ErrorIs(t, err, qa.ErrUsernameTaken)

		got, err := store.GetAccountByUsername(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("concurrent creates have one winner", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		const n = 8
		var wg sync.WaitGroup
		results := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = store.CreateAccount(ctx, NewAccount("dave", ""))
			}()
		}
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, qa.ErrUsernameTaken)
			}
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("save reset token", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		erin := NewAccount("erin", "erin@example.com")
		require.NoError(t, store.CreateAccount(ctx, erin))

		issued := time.Now().UTC().Truncate(time.Second)
		erin.ApplyResetToken(qa.HashResetToken("reset-me"), issued)
		require.NoError(t, store.SaveAccount(ctx, erin))

		got, err := store.GetAccountByEmail(ctx, "erin@example.com")
		require.NoError(t, err)
		require.NotNil(t, got.ResetTokenExpiry)
		assert.WithinDuration(t, issued.Add(qa.ResetTokenExpiry), *got.ResetTokenExpiry, time.Second)
		assert.True(t, got.ResetTokenValid("reset-me", issued))
		assert.Equal(t, erin.PasswordHash, got.PasswordHash)
	})

	t.Run("save unknown account", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		err := store.SaveAccount(ctx, NewAccount("ghost", ""))
		assert.ErrorIs(t, err, qa.ErrAccountNotFound)
	})
}
