//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/datastore"
	"github.com/samber/oops"
	"google.golang.org/api/iterator"

	qa "github.com/panyam/quickauth"
)

// Kind constants for Datastore entities
const (
	KindAccount  = "Account"
	KindUsername = "Username"
)

// AccountStore implements qa.AccountStore using Google Cloud Datastore
type AccountStore struct {
	client    *datastore.Client
	namespace string
}

func NewAccountStore(client *datastore.Client, namespace string) *AccountStore {
	return &AccountStore{client: client, namespace: namespace}
}

func (s *AccountStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *AccountStore) CreateAccount(ctx context.Context, account *qa.Account) error {
	usernameKey := s.namespacedKey(KindUsername, account.Username)
	accountKey := s.namespacedKey(KindAccount, account.ID)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing UsernameEntity
		err := tx.Get(usernameKey, &existing)
		if err == nil {
			return qa.ErrUsernameTaken
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}
		reservation := &UsernameEntity{AccountID: account.ID, CreatedAt: account.CreatedAt}
		if _, err := tx.Put(usernameKey, reservation); err != nil {
			return err
		}
		_, err = tx.Put(accountKey, AccountToEntity(account, accountKey))
		return err
	})
	if errors.Is(err, qa.ErrUsernameTaken) {
		return qa.ErrUsernameTaken
	}
	if errors.Is(err, datastore.ErrConcurrentTransaction) {
		// Lost the race to another transaction touching the same username.
		return qa.ErrUsernameTaken
	}
	if err != nil {
		return oops.Code("ACCOUNT_INSERT_FAILED").With("username", account.Username).Wrap(err)
	}
	return nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*qa.Account, error) {
	var entity AccountEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindAccount, id), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, qa.ErrAccountNotFound
		}
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("id", id).Wrap(err)
	}
	return entity.ToAccount(), nil
}

func (s *AccountStore) GetAccountByUsername(ctx context.Context, username string) (*qa.Account, error) {
	var reservation UsernameEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUsername, username), &reservation); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, qa.ErrAccountNotFound
		}
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("username", username).Wrap(err)
	}
	return s.GetAccountByID(ctx, reservation.AccountID)
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*qa.Account, error) {
	if email == "" {
		return nil, qa.ErrAccountNotFound
	}
	query := datastore.NewQuery(KindAccount).
		Namespace(s.namespace).
		FilterField("email_lower", "=", strings.ToLower(email)).
		Order("created_at").
		Limit(1)

	var entity AccountEntity
	_, err := s.client.Run(ctx, query).Next(&entity)
	if errors.Is(err, iterator.Done) {
		return nil, qa.ErrAccountNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("email", email).Wrap(err)
	}
	return entity.ToAccount(), nil
}

func (s *AccountStore) SaveAccount(ctx context.Context, account *qa.Account) error {
	key := s.namespacedKey(KindAccount, account.ID)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing AccountEntity
		if err := tx.Get(key, &existing); err != nil {
			if errors.Is(err, datastore.ErrNoSuchEntity) {
				return qa.ErrAccountNotFound
			}
			return err
		}
		if existing.Username != account.Username {
			return qa.ErrAccountNotFound
		}
		entity := AccountToEntity(account, key)
		entity.CreatedAt = existing.CreatedAt
		_, err := tx.Put(key, entity)
		return err
	})
	if errors.Is(err, qa.ErrAccountNotFound) {
		return qa.ErrAccountNotFound
	}
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("id", account.ID).Wrap(err)
	}
	return nil
}
