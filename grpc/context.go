// Package grpc carries quickauth sessions across gRPC calls. Clients attach
// the session token (or, between trusted services, the resolved account ID)
// to outgoing metadata; the server interceptors verify it and record the
// account with quickauth.ContextWithAccount.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"

	qa "github.com/panyam/quickauth"
)

// Default metadata keys for authentication context.
const (
	// DefaultMetadataKeyAuthorization carries "Bearer <session token>".
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultMetadataKeyAccountID carries an already verified account ID
	// between trusted services.
	DefaultMetadataKeyAccountID = "x-account-id"
)

// Config holds the metadata key configuration for auth context.
type Config struct {
	// Defaults to "authorization".
	MetadataKeyAuthorization string

	// Defaults to "x-account-id".
	MetadataKeyAccountID string

	// TrustForwardedAccountID accepts MetadataKeyAccountID without a token.
	// Only enable behind a gateway that strips the key from client traffic.
	TrustForwardedAccountID bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		MetadataKeyAccountID:     DefaultMetadataKeyAccountID,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.MetadataKeyAccountID == "" {
		c.MetadataKeyAccountID = DefaultMetadataKeyAccountID
	}
}

// AccountIDFromContext returns the account resolved by the interceptors,
// or "" if the call is anonymous.
func AccountIDFromContext(ctx context.Context) string {
	return qa.AccountIDFromContext(ctx)
}

// IsAuthenticated reports whether the interceptors resolved an account.
func IsAuthenticated(ctx context.Context) bool {
	return AccountIDFromContext(ctx) != ""
}

// TokenToOutgoingContext attaches a session token to outgoing metadata.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+token)
}

// AccountIDToOutgoingContext forwards a verified account ID to a service
// that trusts this caller.
func AccountIDToOutgoingContext(ctx context.Context, accountID string) context.Context {
	return AccountIDToOutgoingContextWithKey(ctx, accountID, DefaultMetadataKeyAccountID)
}

// AccountIDToOutgoingContextWithKey forwards the account ID under a custom key.
func AccountIDToOutgoingContextWithKey(ctx context.Context, accountID, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, key, accountID)
}

// ForwardAccount copies the account from an HTTP request context (as set by
// quickauth.Middleware) into outgoing gRPC metadata. It is a no-op for
// anonymous requests.
func ForwardAccount(ctx context.Context) context.Context {
	if id := qa.AccountIDFromContext(ctx); id != "" {
		return AccountIDToOutgoingContext(ctx, id)
	}
	return ctx
}
