package quickauth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	qa "github.com/panyam/quickauth"
	"github.com/panyam/quickauth/stores/fs"
)

const testSecret = "test-signing-secret"

type sentMail struct {
	To    string
	Token string
}

// recordingMailer captures reset emails and can be told to fail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Token: token})
	return nil
}

func (m *recordingMailer) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *recordingMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// stubProvider returns a fixed identity or error.
type stubProvider struct {
	mu       sync.Mutex
	identity *qa.ExternalIdentity
	err      error
	calls    int
}

func (p *stubProvider) Identify(ctx context.Context, accessToken string) (*qa.ExternalIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

func (p *stubProvider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *stubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type testEnv struct {
	Store    *fs.AccountStore
	Issuer   *qa.SessionIssuer
	Service  *qa.AuthService
	Handler  *qa.AuthHandler
	Mailer   *recordingMailer
	Facebook *stubProvider
	Google   *stubProvider
	Metrics  *qa.Metrics
	Server   *httptest.Server
	Now      time.Time
}

type envSettings struct {
	service        *qa.AuthServiceConfig
	conflictStatus int
}

type envOption func(*envSettings)

func hideAccountExistence() envOption {
	return func(s *envSettings) { s.service.HideAccountExistence = true }
}

func conflictStatus(status int) envOption {
	return func(s *envSettings) { s.conflictStatus = status }
}

func setupEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	store, err := fs.NewAccountStore(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer, err := qa.NewSessionIssuer(qa.SessionConfig{Secret: testSecret})
	require.NoError(t, err)

	env := &testEnv{
		Store:  store,
		Issuer: issuer,
		Mailer: &recordingMailer{},
		Facebook: &stubProvider{identity: &qa.ExternalIdentity{
			Provider: "facebook", ID: "10158", Name: "Ada Lovelace", FirstName: "Ada", LastName: "Lovelace",
		}},
		Google:  &stubProvider{identity: &qa.ExternalIdentity{Provider: "google", ID: "1122334455"}},
		Metrics: qa.NewMetrics(prometheus.NewRegistry()),
		Now:     now,
	}

	cfg := qa.AuthServiceConfig{
		Store:    store,
		Tokens:   issuer,
		Hasher:   &qa.BcryptHasher{Cost: bcrypt.MinCost},
		Mailer:   env.Mailer,
		Facebook: env.Facebook,
		Google:   env.Google,
		Now:      func() time.Time { return now },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  env.Metrics,
	}
	settings := &envSettings{service: &cfg}
	for _, o := range opts {
		o(settings)
	}
	env.Service, err = qa.NewAuthService(cfg)
	require.NoError(t, err)

	env.Handler, err = qa.NewAuthHandler(env.Service)
	require.NoError(t, err)
	env.Handler.Logger = cfg.Logger
	env.Handler.ConflictStatus = settings.conflictStatus

	mw := &qa.Middleware{VerifyToken: issuer.VerifyToken}
	_, h := qa.NewRouter("/auth", env.Handler, mw)
	env.Server = httptest.NewServer(h)
	t.Cleanup(env.Server.Close)
	return env
}

func (e *testEnv) post(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	resp, err := http.Post(e.Server.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path, token string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.Server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
