package quickauth

import (
	"context"
	"errors"
)

// ErrProviderRejected is returned (wrapped) by identity providers when the
// presented token is invalid, expired, or issued for another application.
// Any other provider error is treated as a transport failure.
var ErrProviderRejected = errors.New("identity provider rejected the token")

// ExternalIdentity is what an identity provider tells us about a token's
// owner.
type ExternalIdentity struct {
	Provider  string `json:"provider"`
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// IdentityProvider exchanges a client supplied access token for the
// identity it was issued to.
type IdentityProvider interface {
	Identify(ctx context.Context, accessToken string) (*ExternalIdentity, error)
}
