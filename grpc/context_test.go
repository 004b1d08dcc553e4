package grpc

import (
	"context"
	"testing"

	"go.uber.org/goleak"
	"google.golang.org/grpc/metadata"

	qa "github.com/panyam/quickauth"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.MetadataKeyAuthorization != DefaultMetadataKeyAuthorization {
		t.Errorf("expected MetadataKeyAuthorization %q, got %q", DefaultMetadataKeyAuthorization, config.MetadataKeyAuthorization)
	}
	if config.MetadataKeyAccountID != DefaultMetadataKeyAccountID {
		t.Errorf("expected MetadataKeyAccountID %q, got %q", DefaultMetadataKeyAccountID, config.MetadataKeyAccountID)
	}
	if config.TrustForwardedAccountID {
		t.Error("expected TrustForwardedAccountID to be false by default")
	}
}

func TestEnsureDefaults(t *testing.T) {
	config := &Config{}
	config.EnsureDefaults()
	if config.MetadataKeyAuthorization != DefaultMetadataKeyAuthorization {
		t.Errorf("expected MetadataKeyAuthorization %q, got %q", DefaultMetadataKeyAuthorization, config.MetadataKeyAuthorization)
	}
	if config.MetadataKeyAccountID != DefaultMetadataKeyAccountID {
		t.Errorf("expected MetadataKeyAccountID %q, got %q", DefaultMetadataKeyAccountID, config.MetadataKeyAccountID)
	}
}

func TestAccountIDFromContext_Anonymous(t *testing.T) {
	if id := AccountIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty account ID, got %q", id)
	}
	if IsAuthenticated(context.Background()) {
		t.Error("expected anonymous context")
	}
}

func TestAccountIDFromContext_IgnoresRawMetadata(t *testing.T) {
	md := metadata.Pairs(DefaultMetadataKeyAccountID, "acct-1")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	if id := AccountIDFromContext(ctx); id != "" {
		t.Errorf("unverified metadata must not authenticate, got %q", id)
	}
}

func TestTokenToOutgoingContext(t *testing.T) {
	ctx := TokenToOutgoingContext(context.Background(), "tok")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if got := md.Get(DefaultMetadataKeyAuthorization); len(got) != 1 || got[0] != "Bearer tok" {
		t.Errorf("expected bearer token, got %v", got)
	}
}

func TestAccountIDToOutgoingContextWithKey(t *testing.T) {
	ctx := AccountIDToOutgoingContextWithKey(context.Background(), "acct-1", "x-custom")
	md, _ := metadata.FromOutgoingContext(ctx)
	if got := md.Get("x-custom"); len(got) != 1 || got[0] != "acct-1" {
		t.Errorf("expected forwarded account, got %v", got)
	}
}

func TestForwardAccount(t *testing.T) {
	ctx := ForwardAccount(context.Background())
	if _, ok := metadata.FromOutgoingContext(ctx); ok {
		t.Error("anonymous context should not gain metadata")
	}

	ctx = ForwardAccount(qa.ContextWithAccount(context.Background(), "acct-1", nil))
	md, _ := metadata.FromOutgoingContext(ctx)
	if got := md.Get(DefaultMetadataKeyAccountID); len(got) != 1 || got[0] != "acct-1" {
		t.Errorf("expected forwarded account, got %v", got)
	}
}
