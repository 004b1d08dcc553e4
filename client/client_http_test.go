package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	qa "github.com/panyam/quickauth"
	"github.com/panyam/quickauth/client"
	clientfs "github.com/panyam/quickauth/client/stores/fs"
	"github.com/panyam/quickauth/stores/fs"
)

type nopMailer struct{}

func (nopMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error { return nil }

type fixedProvider struct{ identity *qa.ExternalIdentity }

func (p fixedProvider) Identify(ctx context.Context, token string) (*qa.ExternalIdentity, error) {
	if token != "good" {
		return nil, qa.ErrProviderRejected
	}
	return p.identity, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := fs.NewAccountStore(t.TempDir())
	require.NoError(t, err)
	issuer, err := qa.NewSessionIssuer(qa.SessionConfig{Secret: "client-test-secret"})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := qa.NewAuthService(qa.AuthServiceConfig{
		Store:    store,
		Tokens:   issuer,
		Hasher:   &qa.BcryptHasher{Cost: bcrypt.MinCost},
		Mailer:   nopMailer{},
		Facebook: fixedProvider{&qa.ExternalIdentity{Provider: qa.ProviderFacebook, ID: "42", Name: "Ada Lovelace", FirstName: "Ada", LastName: "Lovelace"}},
		Google:   fixedProvider{&qa.ExternalIdentity{Provider: "google", ID: "g-7"}},
		Logger:   logger,
	})
	require.NoError(t, err)
	h, err := qa.NewAuthHandler(svc)
	require.NoError(t, err)
	h.Logger = logger

	_, handler := qa.NewRouter("/auth", h, &qa.Middleware{VerifyToken: issuer.VerifyToken, Logger: logger})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) (*client.AuthClient, *clientfs.SessionFile) {
	t.Helper()
	store, err := clientfs.OpenSessionFile(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	return client.NewAuthClient(srv.URL, store), store
}

func TestRegisterThenMe(t *testing.T) {
	srv := newServer(t)
	c, store := newClient(t, srv)
	ctx := context.Background()

	account, err := c.Register(ctx, qa.RegisterRequest{Username: "alice", Password: "s3cret", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.True(t, c.IsLoggedIn())

	cred, err := store.GetCredential(srv.URL)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, account.ID, cred.AccountID)
	assert.Equal(t, "alice", cred.Username)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.ID, me.ID)
	assert.Equal(t, "alice@example.com", me.Email)
}

func TestLoginLogout(t *testing.T) {
	srv := newServer(t)
	c, _ := newClient(t, srv)
	ctx := context.Background()

	_, err := c.Register(ctx, qa.RegisterRequest{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, c.Logout())
	assert.False(t, c.IsLoggedIn())

	_, err = c.Me(ctx)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	account, err := c.Login(ctx, "bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", account.Username)
	assert.True(t, c.IsLoggedIn())
}

func TestAPIErrors(t *testing.T) {
	srv := newServer(t)
	c, _ := newClient(t, srv)
	ctx := context.Background()

	_, err := c.Register(ctx, qa.RegisterRequest{Username: "carol", Password: "pw"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		call   func() error
		status int
		code   string
	}{
		{
			name:   "duplicate username",
			call:   func() error { _, err := c.Register(ctx, qa.RegisterRequest{Username: "carol", Password: "pw"}); return err },
			status: http.StatusBadRequest,
			code:   qa.ErrCodeUsernameTaken,
		},
		{
			name:   "unknown user",
			call:   func() error { _, err := c.Login(ctx, "nobody", "pw"); return err },
			status: http.StatusNotFound,
			code:   qa.ErrCodeUserNotFound,
		},
		{
			name:   "wrong password",
			call:   func() error { _, err := c.Login(ctx, "carol", "nope"); return err },
			status: http.StatusBadRequest,
			code:   qa.ErrCodeInvalidCreds,
		},
		{
			name:   "missing field",
			call:   func() error { _, err := c.Login(ctx, "", "pw"); return err },
			status: http.StatusBadRequest,
			code:   qa.ErrCodeMissingField,
		},
		{
			name:   "rejected provider token",
			call:   func() error { _, err := c.ExchangeFacebook(ctx, "bad"); return err },
			status: http.StatusUnauthorized,
			code:   qa.ErrCodeProviderToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var apiErr *client.APIError
			require.True(t, errors.As(tt.call(), &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestProviderExchanges(t *testing.T) {
	srv := newServer(t)
	c, _ := newClient(t, srv)
	ctx := context.Background()

	profile, err := c.ExchangeFacebook(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "42", profile.ID)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.NotEmpty(t, profile.AccountID)

	id, err := c.ExchangeGoogle(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "g-7", id)
}

func TestRequestPasswordReset(t *testing.T) {
	srv := newServer(t)
	c, _ := newClient(t, srv)
	ctx := context.Background()

	_, err := c.Register(ctx, qa.RegisterRequest{Username: "dora", Password: "pw", Email: "dora@example.com"})
	require.NoError(t, err)
	require.NoError(t, c.RequestPasswordReset(ctx, "dora@example.com"))

	var apiErr *client.APIError
	require.True(t, errors.As(c.RequestPasswordReset(ctx, "ghost@example.com"), &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestCustomPrefix(t *testing.T) {
	srv := newServer(t)
	store, err := clientfs.OpenSessionFile(filepath.Join(t.TempDir(), "c.json"))
	require.NoError(t, err)
	c := client.NewAuthClient(srv.URL, store, client.WithPrefix("api/v1/"))

	_, err = c.Login(context.Background(), "x", "y")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	// Routes live under /auth, so the router answers 404 without a JSON body.
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Empty(t, apiErr.Code)
}
