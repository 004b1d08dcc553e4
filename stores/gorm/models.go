//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	qa "github.com/panyam/quickauth"
)

// AccountModel is the GORM model for accounts
type AccountModel struct {
	ID string `gorm:"primaryKey;size:64"`
	// Binary collation keeps the unique index and lookups case-sensitive.
	Username         string `gorm:"type:varchar(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;not null;uniqueIndex:idx_accounts_username"`
	Email            string `gorm:"size:255;index:idx_accounts_email"`
	Name             string `gorm:"size:255"`
	FirstName        string `gorm:"size:255"`
	LastName         string `gorm:"size:255"`
	Provider         string `gorm:"size:32"`
	ProviderID       string `gorm:"size:128"`
	PasswordHash     string `gorm:"size:255"`
	ResetTokenHash   string `gorm:"size:64"`
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *qa.Account {
	return &qa.Account{
		ID:               m.ID,
		Username:         m.Username,
		Email:            m.Email,
		Name:             m.Name,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		Provider:         m.Provider,
		ProviderID:       m.ProviderID,
		PasswordHash:     m.PasswordHash,
		ResetTokenHash:   m.ResetTokenHash,
		ResetTokenExpiry: m.ResetTokenExpiry,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func AccountToModel(a *qa.Account) *AccountModel {
	return &AccountModel{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
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
