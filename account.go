package quickauth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
)

// Provider names recorded on accounts.
const (
	ProviderLocal    = "local"
	ProviderFacebook = "facebook"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameTaken   = errors.New("username already taken")
)

// Account is a persisted user record.
//
// The password hash and reset token never leave the process: they are
// excluded from JSON and cleared by Public.
type Account struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	Provider   string `json:"provider,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`

	PasswordHash     string     `json:"-"`
	ResetTokenHash   string     `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Public returns a copy of the account that is safe to put in a response.
func (a *Account) Public() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.PasswordHash = ""
	out.ResetTokenHash = ""
	out.ResetTokenExpiry = nil
	return &out
}

// NewAccountID returns a new sortable account identifier.
func NewAccountID() string {
	return ulid.Make().String()
}

// AccountStore persists accounts.
//
// Implementations own username uniqueness: CreateAccount must return
// ErrUsernameTaken (possibly wrapped) when another account already holds the
// username, even under concurrent calls. Lookups return ErrAccountNotFound
// when nothing matches. GetAccountByUsername returns the password hash.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error
}
