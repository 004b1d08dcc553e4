//go:build !wasm
// +build !wasm

package gae

import (
	"strings"
	"time"

	"cloud.google.com/go/datastore"

	qa "github.com/panyam/quickauth"
)

// AccountEntity is the Datastore entity for accounts
type AccountEntity struct {
	Key              *datastore.Key `datastore:"__key__"`
	Username         string         `datastore:"username"`
	Email            string         `datastore:"email,noindex"`
	EmailLower       string         `datastore:"email_lower"`
	Name             string         `datastore:"name,noindex"`
	FirstName        string         `datastore:"first_name,noindex"`
	LastName         string         `datastore:"last_name,noindex"`
	Provider         string         `datastore:"provider"`
	ProviderID       string         `datastore:"provider_id"`
	PasswordHash     string         `datastore:"password_hash,noindex"`
	ResetTokenHash   string         `datastore:"reset_token_hash,noindex"`
	ResetTokenExpiry *time.Time     `datastore:"reset_token_expiry,noindex"`
	CreatedAt        time.Time      `datastore:"created_at"`
	UpdatedAt        time.Time      `datastore:"updated_at"`
}

// UsernameEntity reserves a username for one account.
type UsernameEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	AccountID string         `datastore:"account_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}

func (e *AccountEntity) ToAccount() *qa.Account {
	a := &qa.Account{
		ID:             e.Key.Name,
		Username:       e.Username,
		Email:          e.Email,
		Name:           e.Name,
		FirstName:      e.FirstName,
		LastName:       e.LastName,
		Provider:       e.Provider,
		ProviderID:     e.ProviderID,
		PasswordHash:   e.PasswordHash,
		ResetTokenHash: e.ResetTokenHash,
		CreatedAt:      e.CreatedAt.UTC(),
		UpdatedAt:      e.UpdatedAt.UTC(),
	}
	if e.ResetTokenExpiry != nil {
		exp := e.ResetTokenExpiry.UTC()
		a.ResetTokenExpiry = &exp
	}
	return a
}

func AccountToEntity(a *qa.Account, key *datastore.Key) *AccountEntity {
	return &AccountEntity{
		Key:              key,
		Username:         a.Username,
		Email:            a.Email,
		EmailLower:       strings.ToLower(a.Email),
		Name:             a.Name,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Provider:         a.Provider,
		ProviderID:       a.ProviderID,
		PasswordHash:     a.PasswordHash,
		ResetTokenHash:   a.ResetTokenHash,
		ResetTokenExpiry: a.ResetTokenExpiry,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}
