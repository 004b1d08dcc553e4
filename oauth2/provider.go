// Package oauth2 resolves Facebook and Google tokens presented by clients
// into quickauth identities.
package oauth2

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const DefaultTimeout = 10 * time.Second

// bearerClient returns an http.Client that sends accessToken as a bearer
// credential on every request, built on base.
func bearerClient(ctx context.Context, base *http.Client, accessToken string) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

func baseClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

func timeoutOr(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return DefaultTimeout
}

// rejected reports whether an HTTP status means the provider refused the
// token itself, as opposed to failing to answer.
func rejected(status int) bool {
	return status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden
}
