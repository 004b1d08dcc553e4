package quickauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultSessionIssuer = "quickauth"
	DefaultSessionExpiry = 24 * time.Hour
)

var (
	// ErrMissingSigningSecret is fatal at startup: no tokens can be issued
	// without a secret.
	ErrMissingSigningSecret = errors.New("session signing secret is not configured")
	ErrInvalidSessionToken  = errors.New("invalid session token")
)

// SessionClaims are carried by every session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"id"`
	Username  string `json:"username"`
}

type SessionConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
	// One of HS256 (default), HS384, HS512
	Algorithm string
	// Used for iat/exp; defaults to time.Now
	Now func() time.Time
}

// SessionIssuer signs and verifies stateless session tokens.
type SessionIssuer struct {
	secret []byte
	issuer string
	expiry time.Duration
	method jwt.SigningMethod
	now    func() time.Time
}

func NewSessionIssuer(cfg SessionConfig) (*SessionIssuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSigningSecret
	}
	s := &SessionIssuer{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		expiry: cfg.Expiry,
		now:    cfg.Now,
	}
	if s.issuer == "" {
		s.issuer = DefaultSessionIssuer
	}
	if s.expiry <= 0 {
		s.expiry = DefaultSessionExpiry
	}
	if s.now == nil {
		s.now = time.Now
	}
	switch cfg.Algorithm {
	case "", "HS256":
		s.method = jwt.SigningMethodHS256
	case "HS384":
		s.method = jwt.SigningMethodHS384
	case "HS512":
		s.method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported session signing algorithm %q", cfg.Algorithm)
	}
	return s, nil
}

// Issue signs a token for the account id and username in claims. Subject,
// issuer, iat and exp are filled in here.
func (s *SessionIssuer) Issue(claims SessionClaims) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.AccountID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses a token signed by this issuer and returns its claims.
// Expired tokens, foreign issuers and other algorithms are rejected.
func (s *SessionIssuer) Verify(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !parsed.Valid || claims.AccountID == "" {
		return nil, ErrInvalidSessionToken
	}
	return claims, nil
}

// VerifyToken adapts Verify to the (subject, token, error) shape used by
// the middleware and the grpc interceptor.
func (s *SessionIssuer) VerifyToken(token string) (string, any, error) {
	claims, err := s.Verify(token)
	if err != nil {
		return "", nil, err
	}
	return claims.AccountID, claims, nil
}
