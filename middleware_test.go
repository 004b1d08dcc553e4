package quickauth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qa "github.com/panyam/quickauth"
)

func whoami(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{"account_id": qa.AccountIDFromContext(r.Context())}
	if c, ok := qa.ClaimsFromContext(r.Context()); ok {
		out["username"] = c.Username
	}
	json.NewEncoder(w).Encode(out)
}

func TestMiddleware(t *testing.T) {
	issuer, err := qa.NewSessionIssuer(qa.SessionConfig{Secret: testSecret})
	require.NoError(t, err)
	token, err := issuer.Issue(qa.SessionClaims{AccountID: "a1", Username: "alice"})
	require.NoError(t, err)

	mw := &qa.Middleware{VerifyToken: issuer.VerifyToken}

	tests := []struct {
		name       string
		header     string
		ensure     bool
		wantStatus int
		wantID     string
	}{
		{"bearer token", "Bearer " + token, true, http.StatusOK, "a1"},
		{"lowercase scheme", "bearer " + token, true, http.StatusOK, "a1"},
		{"bare token", token, true, http.StatusOK, "a1"},
		{"missing", "", true, http.StatusUnauthorized, ""},
		{"invalid", "Bearer nope", true, http.StatusUnauthorized, ""},
		{"extract without token", "", false, http.StatusOK, ""},
		{"extract with token", "Bearer " + token, false, http.StatusOK, "a1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h http.Handler = http.HandlerFunc(whoami)
			if tt.ensure {
				h = mw.EnsureAccount(h)
			} else {
				h = mw.ExtractAccount(h)
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var body map[string]any
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.Equal(t, tt.wantID, body["account_id"])
				if tt.wantID != "" {
					assert.Equal(t, "alice", body["username"])
				}
			}
		})
	}
}

func TestSessionCookieLogin(t *testing.T) {
	env := setupEnv(t)

	sessions := scs.New()
	env.Handler.Sessions = sessions
	mw := &qa.Middleware{Sessions: sessions}
	_, h := qa.NewRouter("/auth", env.Handler, mw)
	srv := httptest.NewServer(h)
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	resp, err := client.Post(srv.URL+"/auth/register", "application/json",
		strings.NewReader(`{"username":"alice","password":"p@ss"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// No bearer header: the session cookie alone identifies the account.
	resp, err = client.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "alice", body["data"].(map[string]any)["username"])
}
