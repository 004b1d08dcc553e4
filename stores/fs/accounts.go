package fs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	qa "github.com/panyam/quickauth"
)

// fsAccount is the on-disk form of an account. Unlike qa.Account it keeps
// the password hash and reset token.
type fsAccount struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email,omitempty"`
	Name             string     `json:"name,omitempty"`
	FirstName        string     `json:"first_name,omitempty"`
	LastName         string     `json:"last_name,omitempty"`
	Provider         string     `json:"provider,omitempty"`
	ProviderID       string     `json:"provider_id,omitempty"`
	PasswordHash     string     `json:"password_hash,omitempty"`
	ResetTokenHash   string     `json:"reset_token_hash,omitempty"`
	ResetTokenExpiry *time.Time `json:"reset_token_expiry,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toFS(a *qa.Account) *fsAccount {
	return &fsAccount{
		ID: a.ID, Username: a.Username, Email: a.Email,
		Name: a.Name, FirstName: a.FirstName, LastName: a.LastName,
		Provider: a.Provider, ProviderID: a.ProviderID,
		PasswordHash: a.PasswordHash, ResetTokenHash: a.ResetTokenHash, ResetTokenExpiry: a.ResetTokenExpiry,
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
	}
}

func (f *fsAccount) toAccount() *qa.Account {
	return &qa.Account{
		ID: f.ID, Username: f.Username, Email: f.Email,
		Name: f.Name, FirstName: f.FirstName, LastName: f.LastName,
		Provider: f.Provider, ProviderID: f.ProviderID,
		PasswordHash: f.PasswordHash, ResetTokenHash: f.ResetTokenHash, ResetTokenExpiry: f.ResetTokenExpiry,
		CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt,
	}
}

// usernameClaim is the content of a username reservation file.
type usernameClaim struct {
	Username  string    `json:"username"`
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountStore keeps accounts as JSON files.
//
// # File Structure
//
//	{StoragePath}/
//	├── accounts/
//	│   └── {account id}.json
//	└── usernames/
//	    └── {hex(username)}.json   # {"username": "alice", "account_id": "..."}
//
// Usernames are hex encoded so that lookups stay case-sensitive on
// case-insensitive filesystems. A username file is created with O_EXCL,
// which makes reservation atomic across processes sharing the directory.
// Email lookups scan the accounts directory; this store is meant for
// development and small deployments.
type AccountStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewAccountStore(storagePath string) (*AccountStore, error) {
	for _, dir := range []string{"accounts", "usernames"} {
		if err := os.MkdirAll(filepath.Join(storagePath, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &AccountStore{StoragePath: storagePath}, nil
}

func (s *AccountStore) accountPath(id string) string {
	return filepath.Join(s.StoragePath, "accounts", filepath.Base(id)+".json")
}

func (s *AccountStore) usernamePath(username string) string {
	return filepath.Join(s.StoragePath, "usernames", hex.EncodeToString([]byte(username))+".json")
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *qa.Account) error {
	if account.ID == "" || account.Username == "" {
		return errors.New("account id and username are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	claimPath := s.usernamePath(account.Username)
	f, err := os.OpenFile(claimPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return qa.ErrUsernameTaken
	} else if err != nil {
		return fmt.Errorf("failed to reserve username: %w", err)
	}
	claim, _ := json.Marshal(usernameClaim{Username: account.Username, AccountID: account.ID, CreatedAt: time.Now()})
	_, werr := f.Write(claim)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(claimPath)
		return fmt.Errorf("failed to write username reservation: %w", errors.Join(werr, cerr))
	}

	if err := s.writeAccount(account); err != nil {
		os.Remove(claimPath)
		return err
	}
	return nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*qa.Account, error) {
	return s.readAccount(id)
}

func (s *AccountStore) GetAccountByUsername(ctx context.Context, username string) (*qa.Account, error) {
	data, err := os.ReadFile(s.usernamePath(username))
	if os.IsNotExist(err) {
		return nil, qa.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	var claim usernameClaim
	if err := json.Unmarshal(data, &claim); err != nil {
		return nil, fmt.Errorf("corrupt username reservation for %q: %w", username, err)
	}
	return s.readAccount(claim.AccountID)
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*qa.Account, error) {
	if email == "" {
		return nil, qa.ErrAccountNotFound
	}
	entries, err := os.ReadDir(filepath.Join(s.StoragePath, "accounts"))
	if err != nil {
		return nil, err
	}
	// The oldest matching account wins; ReadDir order is by id, which
	// need not follow CreatedAt.
	var oldest *qa.Account
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		account, err := s.readAccount(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil || !strings.EqualFold(account.Email, email) {
			continue
		}
		if oldest == nil || account.CreatedAt.Before(oldest.CreatedAt) {
			oldest = account
		}
	}
	if oldest == nil {
		return nil, qa.ErrAccountNotFound
	}
	return oldest, nil
}

// SaveAccount overwrites an existing account. The username cannot change.
func (s *AccountStore) SaveAccount(ctx context.Context, account *qa.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readAccount(account.ID)
	if err != nil {
		return err
	}
	if existing.Username != account.Username {
		return fmt.Errorf("username of account %s cannot change", account.ID)
	}
	return s.writeAccount(account)
}

func (s *AccountStore) readAccount(id string) (*qa.Account, error) {
	if id == "" {
		return nil, qa.ErrAccountNotFound
	}
	data, err := os.ReadFile(s.accountPath(id))
	if os.IsNotExist(err) {
		return nil, qa.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	var f fsAccount
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("corrupt account %s: %w", id, err)
	}
	return f.toAccount(), nil
}

func (s *AccountStore) writeAccount(account *qa.Account) error {
	data, err := json.MarshalIndent(toFS(account), "", "  ")
	if err != nil {
		return err
	}
	return writeAtomicFile(s.accountPath(account.ID), data)
}
