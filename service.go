package quickauth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/panyam/quickauth/internal/logging"
)

// Operation names used for metrics and logs.
const (
	OpRegister      = "register"
	OpLogin         = "login"
	OpPasswordReset = "password_reset"
	OpFacebook      = "facebook"
	OpGoogle        = "google"
	OpMe            = "me"
)

const DefaultEmailTimeout = 10 * time.Second

// TokenIssuer signs session tokens. *SessionIssuer implements it.
type TokenIssuer interface {
	Issue(claims SessionClaims) (string, error)
}

// AuthServiceConfig lists the collaborators of an AuthService. Store and
// Tokens are required; the rest have defaults.
type AuthServiceConfig struct {
	Store  AccountStore
	Tokens TokenIssuer

	// Defaults to bcrypt with DefaultPasswordCost
	Hasher PasswordHasher

	// Defaults to a ConsoleMailer
	Mailer Mailer

	// Optional; the matching exchange fails with a server error when nil
	Facebook IdentityProvider
	Google   IdentityProvider

	// Defaults to GenerateResetToken
	ResetTokens ResetTokenGenerator

	// Defaults to time.Now
	Now func() time.Time

	// When set, login reports unknown usernames as bad credentials and
	// reset requests for unknown emails succeed without sending mail.
	HideAccountExistence bool

	// Upper bound on reset email dispatch
	EmailTimeout time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
}

// AuthService implements the account flows independent of transport.
type AuthService struct {
	store       AccountStore
	tokens      TokenIssuer
	hasher      PasswordHasher
	mailer      Mailer
	facebook    IdentityProvider
	google      IdentityProvider
	resetTokens ResetTokenGenerator
	now         func() time.Time
	hideExists  bool
	mailTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics

	decoyOnce sync.Once
	decoy     string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Account *Account
	Token   string
}

func NewAuthService(cfg AuthServiceConfig) (*AuthService, error) {
	if cfg.Store == nil {
		return nil, errors.New("account store is required")
	}
	if cfg.Tokens == nil {
		return nil, ErrMissingSigningSecret
	}
	s := &AuthService{
		store:       cfg.Store,
		tokens:      cfg.Tokens,
		hasher:      cfg.Hasher,
		mailer:      cfg.Mailer,
		facebook:    cfg.Facebook,
		google:      cfg.Google,
		resetTokens: cfg.ResetTokens,
		now:         cfg.Now,
		hideExists:  cfg.HideAccountExistence,
		mailTimeout: cfg.EmailTimeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher()
	}
	if s.mailer == nil {
		s.mailer = &ConsoleMailer{Logger: s.logger}
	}
	if s.resetTokens == nil {
		s.resetTokens = GenerateResetToken
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.mailTimeout <= 0 {
		s.mailTimeout = DefaultEmailTimeout
	}
	return s, nil
}

// Register creates a local account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (res *AuthResult, err error) {
	defer func() { s.metrics.request(OpRegister, err) }()

	if req.Username == "" || req.Password == "" {
		return nil, validationError(missingFields(map[string]string{"username": req.Username, "password": req.Password}))
	}

	if _, err := s.store.GetAccountByUsername(ctx, req.Username); err == nil {
		return nil, usernameTaken()
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("username", req.Username).Wrap(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &Account{
		ID:           NewAccountID(),
		Username:     req.Username,
		Email:        req.Email,
		Name:         req.Name,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Provider:     ProviderLocal,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, usernameTaken()
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").With("username", req.Username).Wrap(err)
	}

	token, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID, "username", account.Username)
	return &AuthResult{Account: account.Public(), Token: token}, nil
}

// Login checks a username and password and issues a session token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (res *AuthResult, err error) {
	defer func() { s.metrics.request(OpLogin, err) }()

	if req.Username == "" || req.Password == "" {
		return nil, validationError(missingFields(map[string]string{"username": req.Username, "password": req.Password}))
	}

	account, err := s.store.GetAccountByUsername(ctx, req.Username)
	if errors.Is(err, ErrAccountNotFound) {
		if s.hideExists {
			// Pay for a hash comparison so unknown usernames take as long
			// as wrong passwords.
			s.hasher.Verify(s.decoyHash(), req.Password)
			return nil, invalidCredentials()
		}
		return nil, NewAuthError(KindNotFound, ErrCodeUserNotFound, "User not found", "username")
	} else if err != nil {
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("username", req.Username).Wrap(err)
	}

	if !s.hasher.Verify(account.PasswordHash, req.Password) {
		return nil, invalidCredentials()
	}

	token, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Account: account.Public(), Token: token}, nil
}

// RequestPasswordReset stores a fresh reset token on the account owning
// email and mails it. Mail failures are logged and counted but do not fail
// the request.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) (err error) {
	defer func() { s.metrics.request(OpPasswordReset, err) }()

	if req.Email == "" {
		return validationError(missingFields(map[string]string{"email": req.Email}))
	}

	account, err := s.store.GetAccountByEmail(ctx, req.Email)
	if errors.Is(err, ErrAccountNotFound) {
		if s.hideExists {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return NewAuthError(KindNotFound, ErrCodeUserNotFound, "User not found", "email")
	} else if err != nil {
		return oops.Code("ACCOUNT_LOOKUP_FAILED").Wrap(err)
	}

	token, hash, err := s.resetTokens()
	if err != nil {
		return err
	}
	account.ApplyResetToken(hash, s.now())
	if err := s.store.SaveAccount(ctx, account); err != nil {
		return oops.Code("ACCOUNT_SAVE_FAILED").With("account_id", account.ID).Wrap(err)
	}

	mailCtx, cancel := context.WithTimeout(ctx, s.mailTimeout)
	defer cancel()
	if err := s.mailer.SendPasswordResetEmail(mailCtx, account.Email, token); err != nil {
		s.metrics.emailFailed()
		logging.LogError(ctx, s.logger, "password reset email not sent",
			oops.Code("RESET_EMAIL_FAILED").With("account_id", account.ID).Wrap(err))
	}
	return nil
}

// SignupWithFacebook resolves a Facebook access token and returns the
// local account linked to it, creating one on first use.
func (s *AuthService) SignupWithFacebook(ctx context.Context, accessToken string) (acct *Account, err error) {
	defer func() { s.metrics.request(OpFacebook, err) }()

	identity, err := s.identify(ctx, s.facebook, ProviderFacebook, accessToken)
	if err != nil {
		return nil, err
	}

	username := "fb_" + identity.ID
	existing, err := s.store.GetAccountByUsername(ctx, username)
	if err == nil {
		return linkedAccount(existing, identity)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("username", username).Wrap(err)
	}

	now := s.now()
	account := &Account{
		ID:         NewAccountID(),
		Username:   username,
		Email:      identity.Email,
		Name:       identity.Name,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		Provider:   ProviderFacebook,
		ProviderID: identity.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			// Lost a race with a concurrent exchange for the same user.
			existing, lookupErr := s.store.GetAccountByUsername(ctx, username)
			if lookupErr == nil {
				return linkedAccount(existing, identity)
			}
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").With("username", username).Wrap(err)
	}
	s.logger.InfoContext(ctx, "facebook account created", "account_id", account.ID, "facebook_id", identity.ID)
	return account.Public(), nil
}

// SignupWithGoogle resolves a Google token and returns the identity it
// belongs to. No local account is linked.
func (s *AuthService) SignupWithGoogle(ctx context.Context, accessToken string) (ident *ExternalIdentity, err error) {
	defer func() { s.metrics.request(OpGoogle, err) }()
	return s.identify(ctx, s.google, "google", accessToken)
}

// Account returns the public view of the account with the given id.
func (s *AuthService) Account(ctx context.Context, id string) (acct *Account, err error) {
	defer func() { s.metrics.request(OpMe, err) }()

	account, err := s.store.GetAccountByID(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, NewAuthError(KindNotFound, ErrCodeUserNotFound, "User not found", "")
	} else if err != nil {
		return nil, oops.Code("ACCOUNT_LOOKUP_FAILED").With("account_id", id).Wrap(err)
	}
	return account.Public(), nil
}

func (s *AuthService) identify(ctx context.Context, p IdentityProvider, name, accessToken string) (*ExternalIdentity, error) {
	if accessToken == "" {
		return nil, validationError([]FieldError{{Field: "accessToken", Message: "accessToken is required"}})
	}
	if p == nil {
		return nil, oops.Code("PROVIDER_NOT_CONFIGURED").With("provider", name).Errorf("%s sign-in is not configured", name)
	}
	start := time.Now()
	identity, err := p.Identify(ctx, accessToken)
	s.metrics.providerCall(name, start)
	if errors.Is(err, ErrProviderRejected) {
		return nil, providerError(name, err)
	} else if err != nil {
		return nil, oops.Code("PROVIDER_TRANSPORT_FAILED").With("provider", name).Wrap(err)
	}
	return identity, nil
}

// decoyHash is a hash of a random password made with the configured
// hasher, computed on first use.
func (s *AuthService) decoyHash() string {
	s.decoyOnce.Do(func() {
		token, _, err := GenerateResetToken()
		if err == nil {
			s.decoy, err = s.hasher.Hash(token)
		}
		if err != nil {
			s.logger.Warn("could not prepare decoy password hash", "error", err)
		}
	})
	return s.decoy
}

func (s *AuthService) issue(account *Account) (string, error) {
	token, err := s.tokens.Issue(SessionClaims{AccountID: account.ID, Username: account.Username})
	if err != nil {
		return "", oops.Code("SESSION_ISSUE_FAILED").With("account_id", account.ID).Wrap(err)
	}
	return token, nil
}

// linkedAccount returns account if it was created for identity. A local
// account that happens to hold the same username is a conflict.
func linkedAccount(account *Account, identity *ExternalIdentity) (*Account, error) {
	if account.Provider != ProviderFacebook || account.ProviderID != identity.ID {
		return nil, usernameTaken()
	}
	return account.Public(), nil
}

func usernameTaken() *AuthError {
	return NewAuthError(KindConflict, ErrCodeUsernameTaken, "User with this username already exists", "username")
}

func invalidCredentials() *AuthError {
	return NewAuthError(KindCredential, ErrCodeInvalidCreds, "Invalid Username or Password", "password")
}

func missingFields(fields map[string]string) []FieldError {
	var out []FieldError
	for _, name := range []string{"username", "password", "email"} {
		if v, ok := fields[name]; ok && v == "" {
			out = append(out, FieldError{Field: name, Message: name + " is required"})
		}
	}
	return out
}
