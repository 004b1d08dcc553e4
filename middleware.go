package quickauth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
)

type contextKey string

const (
	accountIDKey contextKey = "quickauth.accountID"
	claimsKey    contextKey = "quickauth.claims"
)

// Middleware resolves the signed in account from a bearer token (or the
// optional session) and puts it in the request context.
type Middleware struct {
	// Parses a token and returns the account id it was issued to.
	// (*SessionIssuer).VerifyToken fits.
	VerifyToken func(token string) (accountID string, claims any, err error)

	// Optional cookie session written by AuthHandler.
	Sessions *scs.SessionManager

	AuthTokenHeaderName string
	Logger              *slog.Logger
}

func (m *Middleware) headerName() string {
	if m.AuthTokenHeaderName == "" {
		return "Authorization"
	}
	return m.AuthTokenHeaderName
}

// ExtractAccount loads the account id if one is present but never rejects.
func (m *Middleware) ExtractAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.resolve(r))
	})
}

// EnsureAccount rejects requests without a valid token with 401.
func (m *Middleware) EnsureAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = m.resolve(r)
		if AccountIDFromContext(r.Context()) == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{
				"status":  false,
				"message": "Authentication required",
				"code":    "unauthorized",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) resolve(r *http.Request) *http.Request {
	ctx := r.Context()
	if m.VerifyToken != nil {
		for _, value := range r.Header.Values(m.headerName()) {
			token := bearerToken(value)
			if token == "" {
				continue
			}
			accountID, claims, err := m.VerifyToken(token)
			if err != nil {
				m.logger().DebugContext(ctx, "rejected bearer token", "error", err)
				continue
			}
			if accountID != "" {
				c, _ := claims.(*SessionClaims)
				return r.WithContext(ContextWithAccount(ctx, accountID, c))
			}
		}
	}
	if m.Sessions != nil {
		if accountID := m.Sessions.GetString(ctx, SessionAccountIDKey); accountID != "" {
			return r.WithContext(ContextWithAccount(ctx, accountID, nil))
		}
	}
	return r
}

func (m *Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// bearerToken strips a case-insensitive "Bearer " prefix. A bare value is
// taken as the token itself.
func bearerToken(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

// ContextWithAccount records the signed in account on ctx. claims may be nil
// when the account came from a session rather than a token.
func ContextWithAccount(ctx context.Context, accountID string, claims *SessionClaims) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	if claims != nil {
		ctx = context.WithValue(ctx, claimsKey, claims)
	}
	return ctx
}

// AccountIDFromContext returns the account id set by Middleware or the grpc
// interceptors, or "".
func AccountIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey).(string)
	return id
}

// ClaimsFromContext returns the verified token claims, if the account was
// resolved from a bearer token.
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*SessionClaims)
	return c, ok
}
