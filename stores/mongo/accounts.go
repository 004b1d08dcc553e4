// Package mongo stores accounts in a MongoDB collection. A unique index on
// username enforces uniqueness; call EnsureIndexes once at startup.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	qa "github.com/panyam/quickauth"
)

const DefaultCollection = "accounts"

type accountDoc struct {
	ID               string     `bson:"_id"`
	Username         string     `bson:"username"`
	Email            string     `bson:"email,omitempty"`
	EmailLower       string     `bson:"email_lower,omitempty"`
	Name             string     `bson:"name,omitempty"`
	FirstName        string     `bson:"first_name,omitempty"`
	LastName         string     `bson:"last_name,omitempty"`
	Provider         string     `bson:"provider"`
	ProviderID       string     `bson:"provider_id,omitempty"`
	PasswordHash     string     `bson:"password_hash,omitempty"`
	ResetTokenHash   string     `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiry *time.Time `bson:"reset_token_expiry,omitempty"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func toDoc(a *qa.Account) *accountDoc {
	return &accountDoc{
		ID:               a.ID,
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

func (d *accountDoc) account() *qa.Account {
	a := &qa.Account{
		ID:               d.ID,
		Username:         d.Username,
		Email:            d.Email,
		Name:             d.Name,
		FirstName:        d.FirstName,
		LastName:         d.LastName,
		Provider:         d.Provider,
		ProviderID:       d.ProviderID,
		PasswordHash:     d.PasswordHash,
		ResetTokenHash:   d.ResetTokenHash,
		ResetTokenExpiry: d.ResetTokenExpiry,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if a.ResetTokenExpiry != nil {
		exp := a.ResetTokenExpiry.UTC()
		a.ResetTokenExpiry = &exp
	}
	return a
}

// Connect opens a client for uri and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, oops.Code("MONGO_CONNECT_FAILED").Wrap(err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, oops.Code("MONGO_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return client, nil
}

// AccountStore implements qa.AccountStore on a MongoDB collection.
type AccountStore struct {
	coll *mongo.Collection
}

func NewAccountStore(db *mongo.Database, collection string) *AccountStore {
	if collection == "" {
		collection = DefaultCollection
	}
	return &AccountStore{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique username index and the email lookup
// index. It is safe to call repeatedly.
func (s *AccountStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("idx_accounts_username").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email_lower", Value: 1}},
			Options: options.Index().SetName("idx_accounts_email"),
		},
	})
	if err != nil {
		return oops.Code("MONGO_INDEX_FAILED").With("collection", s.coll.Name()).Wrap(err)
	}
	return nil
}

func (s *AccountStore) CreateAccount(ctx context.Context, a *qa.Account) error {
	if _, err := s.coll.InsertOne(ctx, toDoc(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return qa.ErrUsernameTaken
		}
		return oops.Code("ACCOUNT_INSERT_FAILED").With("username", a.Username).Wrap(err)
	}
	return nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*qa.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}}, nil)
}

func (s *AccountStore) GetAccountByUsername(ctx context.Context, username string) (*qa.Account, error) {
	return s.findOne(ctx, bson.D{{Key: "username", Value: username}}, nil)
}

func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*qa.Account, error) {
	if email == "" {
		return nil, qa.ErrAccountNotFound
	}
	oldest := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return s.findOne(ctx, bson.D{{Key: "email_lower", Value: strings.ToLower(email)}}, oldest)
}

func (s *AccountStore) SaveAccount(ctx context.Context, a *qa.Account) error {
	doc := toDoc(a)
	set := bson.D{
		{Key: "email", Value: doc.Email},
		{Key: "email_lower", Value: doc.EmailLower},
		{Key: "name", Value: doc.Name},
		{Key: "first_name", Value: doc.FirstName},
		{Key: "last_name", Value: doc.LastName},
		{Key: "provider", Value: doc.Provider},
		{Key: "provider_id", Value: doc.ProviderID},
		{Key: "password_hash", Value: doc.PasswordHash},
		{Key: "reset_token_hash", Value: doc.ResetTokenHash},
		{Key: "reset_token_expiry", Value: doc.ResetTokenExpiry},
		{Key: "updated_at", Value: doc.UpdatedAt},
	}
	filter := bson.D{{Key: "_id", Value: a.ID}, {Key: "username", Value: a.Username}}
	res, err := s.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").With("id", a.ID).Wrap(err)
	}
	if res.MatchedCount == 0 {
		return qa.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) findOne(ctx context.Context, filter bson.D, opts *options.FindOneOptionsBuilder) (*qa.Account, error) {
	var doc accountDoc
	var res *mongo.SingleResult
	if opts != nil {
		res = s.coll.FindOne(ctx, filter, opts)
	} else {
		res = s.coll.FindOne(ctx, filter)
	}
	if err := res.Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, qa.ErrAccountNotFound
		}
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").With("filter", filter).Wrap(err)
	}
	return doc.account(), nil
}
