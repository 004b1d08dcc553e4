package oauth2

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	qa "github.com/panyam/quickauth"
)

type GoogleConfig struct {
	// Expected audience of presented tokens. Empty disables the check.
	ClientID string

	// Overrides the Google API endpoint, for tests.
	Endpoint string

	HTTPClient *http.Client
	Timeout    time.Duration
}

// GoogleClient resolves Google ID tokens with the tokeninfo endpoint.
type GoogleClient struct {
	clientID string
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	return &GoogleClient{
		clientID: cfg.ClientID,
		endpoint: cfg.Endpoint,
		client:   cfg.HTTPClient,
		timeout:  timeoutOr(cfg.Timeout),
	}
}

func (g *GoogleClient) Identify(ctx context.Context, idToken string) (*qa.ExternalIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	opts := []option.ClientOption{option.WithHTTPClient(baseClient(g.client))}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating google oauth2 service: %w", err)
	}

	info, err := svc.Tokeninfo().IdToken(idToken).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && rejected(gerr.Code) {
			return nil, fmt.Errorf("%w: google: %s", qa.ErrProviderRejected, gerr.Message)
		}
		return nil, fmt.Errorf("google tokeninfo failed: %w", err)
	}

	if info.UserId == "" {
		return nil, fmt.Errorf("%w: google returned no user id", qa.ErrProviderRejected)
	}
	if info.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: google token has expired", qa.ErrProviderRejected)
	}
	if g.clientID != "" && info.Audience != g.clientID && info.IssuedTo != g.clientID {
		return nil, fmt.Errorf("%w: google token audience %q does not match", qa.ErrProviderRejected, info.Audience)
	}

	identity := &qa.ExternalIdentity{Provider: "google", ID: info.UserId}
	if info.VerifiedEmail {
		identity.Email = info.Email
	}
	return identity, nil
}
