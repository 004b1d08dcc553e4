//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	qa "github.com/panyam/quickauth"
)

// MySQL error for a unique key violation.
const mysqlDuplicateEntry = 1062

// AutoMigrate creates or updates the accounts table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AccountStore implements qa.AccountStore using GORM
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *qa.Account) error {
	model := AccountToModel(account)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) {
			return qa.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*qa.Account, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *AccountStore) GetAccountByUsername(ctx context.Context, username string) (*qa.Account, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*qa.Account, error) {
	if email == "" {
		return nil, qa.ErrAccountNotFound
	}
	var model AccountModel
	err := s.db.WithContext(ctx).Where("email = ?", email).Order("created_at").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, qa.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) SaveAccount(ctx context.Context, account *qa.Account) error {
	res := s.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ? AND username = ?", account.ID, account.Username).
		Select("*").Omit("id", "username", "created_at").
		Updates(AccountToModel(account))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save account %s: %w", account.ID, qa.ErrAccountNotFound)
	}
	return nil
}

func (s *AccountStore) first(ctx context.Context, query string, arg any) (*qa.Account, error) {
	var model AccountModel
	err := s.db.WithContext(ctx).Where(query, arg).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, qa.ErrAccountNotFound
	} else if err != nil {
		return nil, err
	}
	return model.ToAccount(), nil
}

// isDuplicate recognises unique violations both when GORM translates
// dialect errors and when it passes the raw driver error through.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
