package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	qa "github.com/panyam/quickauth"
)

// DefaultPrefix is where quickauth mounts its routes unless told otherwise.
const DefaultPrefix = "/auth"

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Field      string          `json:"field,omitempty"`
	Errors     []qa.FieldError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("quickauth: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("quickauth: HTTP %d: %s", e.StatusCode, e.Message)
}

// AuthClient calls a quickauth server and keeps its session token.
type AuthClient struct {
	mu            sync.Mutex
	serverURL     string
	prefix        string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper
}

// ClientOption customises NewAuthClient.
type ClientOption func(*AuthClient)

// WithPrefix sets the path the auth routes are mounted under.
func WithPrefix(prefix string) ClientOption {
	return func(c *AuthClient) {
		c.prefix = "/" + strings.Trim(prefix, "/")
	}
}

// WithHTTPClient copies timeout, redirect policy and cookie jar from client
// and uses its transport underneath the session transport.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		c.httpClient.Timeout = client.Timeout
		c.httpClient.CheckRedirect = client.CheckRedirect
		c.httpClient.Jar = client.Jar
	}
}

// WithTransport replaces the transport the session transport delegates to.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// NewAuthClient creates a client for the server at serverURL. Only the
// scheme and host of serverURL are kept.
func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AuthClient{
		serverURL:     serverURL,
		prefix:        DefaultPrefix,
		store:         store,
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Transport = &sessionTransport{client: c, base: c.baseTransport}
	return c
}

// HTTPClient returns an HTTP client that sends the stored session token.
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the scheme and host requests are sent to.
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// GetToken returns the stored session token, or "" if there is none or it
// has expired.
func (c *AuthClient) GetToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.IsExpired() {
		return "", nil
	}
	return cred.Token, nil
}

// GetCredential returns the stored session, expired or not.
func (c *AuthClient) GetCredential() (*ServerCredential, error) {
	return c.store.GetCredential(c.serverURL)
}

// IsLoggedIn reports whether an unexpired session is stored.
func (c *AuthClient) IsLoggedIn() bool {
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil {
		return false
	}
	return !cred.IsExpired()
}

// Register creates an account and stores the returned session.
func (c *AuthClient) Register(ctx context.Context, req qa.RegisterRequest) (*qa.Account, error) {
	return c.authenticate(ctx, "/register", req)
}

// Login signs in with a username and password and stores the session.
func (c *AuthClient) Login(ctx context.Context, username, password string) (*qa.Account, error) {
	return c.authenticate(ctx, "/login", qa.LoginRequest{Username: username, Password: password})
}

// Logout forgets the local session. Tokens are stateless, so the server
// is not contacted.
func (c *AuthClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.RemoveCredential(c.serverURL); err != nil {
		return err
	}
	return c.store.Save()
}

// RequestPasswordReset asks the server to email a reset link.
func (c *AuthClient) RequestPasswordReset(ctx context.Context, email string) error {
	return c.post(ctx, "/forgot-password", qa.PasswordResetRequest{Email: email}, nil)
}

// FacebookProfile is the profile returned by the Facebook exchange.
type FacebookProfile struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ExchangeFacebook trades a Facebook access token for the linked profile.
func (c *AuthClient) ExchangeFacebook(ctx context.Context, accessToken string) (*FacebookProfile, error) {
	var resp struct {
		Data FacebookProfile `json:"data"`
	}
	if err := c.post(ctx, "/facebook", qa.TokenExchangeRequest{AccessToken: accessToken}, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ExchangeGoogle trades a Google ID token for the Google user id.
func (c *AuthClient) ExchangeGoogle(ctx context.Context, idToken string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/google", qa.TokenExchangeRequest{AccessToken: idToken}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Me fetches the signed in account.
func (c *AuthClient) Me(ctx context.Context) (*qa.Account, error) {
	var resp struct {
		Data *qa.Account `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type sessionResponse struct {
	Token string      `json:"token"`
	Data  *qa.Account `json:"data"`
}

func (c *AuthClient) authenticate(ctx context.Context, path string, body any) (*qa.Account, error) {
	var resp sessionResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	cred, err := credentialFromToken(resp.Token)
	if err != nil {
		return nil, fmt.Errorf("server returned an unreadable session token: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	if err := c.store.Save(); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}
	return resp.Data, nil
}

// forget drops the stored credential if it still holds token.
func (c *AuthClient) forget(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil || cred == nil || cred.Token != token {
		return
	}
	if c.store.RemoveCredential(c.serverURL) == nil {
		_ = c.store.Save()
	}
}

func (c *AuthClient) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *AuthClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+c.prefix+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid response from server: %w", err)
	}
	return nil
}
