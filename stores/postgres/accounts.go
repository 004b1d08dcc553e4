// Package postgres stores accounts in PostgreSQL through pgx. The schema is
// managed by the embedded goose migrations; run Migrate before first use.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	qa "github.com/panyam/quickauth"
)

// DB is the subset of *pgxpool.Pool used by AccountStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open connects a pool to dsn and checks that the server answers.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("POSTGRES_CONNECT_FAILED").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("POSTGRES_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

const selectAccount = `
	SELECT id, username, email, name, first_name, last_name,
	       provider, provider_id, password_hash,
	       reset_token_hash, reset_token_expiry, created_at, updated_at
	FROM accounts
`

// AccountStore implements qa.AccountStore on PostgreSQL.
type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) CreateAccount(ctx context.Context, a *qa.Account) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO accounts (
			id, username, email, name, first_name, last_name,
			provider, provider_id, password_hash,
			reset_token_hash, reset_token_expiry, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID, a.Username, a.Email, a.Name, a.FirstName, a.LastName,
		a.Provider, a.ProviderID, a.PasswordHash,
		a.ResetTokenHash, a.ResetTokenExpiry, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return qa.ErrUsernameTaken
		}
		return oops.Code("ACCOUNT_INSERT_FAILED").With("username", a.Username).Wrap(err)
	}
	return nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*qa.Account, error) {
	return s.get(ctx, selectAccount+`WHERE id = $1`, id)
}

func (s *AccountStore) GetAccountByUsername(ctx context.Context, username string) (*qa.Account, error) {
	return s.get(ctx, selectAccount+`WHERE username = $1`, username)
}

// GetAccountByEmail matches case-insensitively and returns the oldest
// account when several share an address.
func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*qa.Account, error) {
	if email == "" {
		return nil, qa.ErrAccountNotFound
	}
	return s.get(ctx, selectAccount+`WHERE LOWER(email) = LOWER($1) ORDER BY created_at LIMIT 1`, email)
}

func (s *AccountStore) SaveAccount(ctx context.Context, a *qa.Account) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET
			email = $3, name = $4, first_name = $5, last_name = $6,
			provider = $7, provider_id = $8, password_hash = $9,
			reset_token_hash = $10, reset_token_expiry = $11, updated_at = $12
		WHERE id = $1 AND username = $2
	`,
		a.ID, a.Username, a.Email, a.Name, a.FirstName, a.LastName,
		a.Provider, a.ProviderID, a.PasswordHash,
		a.ResetTokenHash, a.ResetTokenExpiry, a.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("id", a.ID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return qa.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) get(ctx context.Context, query string, arg any) (*qa.Account, error) {
	var a qa.Account
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Username, &a.Email, &a.Name, &a.FirstName, &a.LastName,
		&a.Provider, &a.ProviderID, &a.PasswordHash,
		&a.ResetTokenHash, &a.ResetTokenExpiry, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, qa.ErrAccountNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("arg", arg).Wrap(err)
	}
	return &a, nil
}
