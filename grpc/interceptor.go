package grpc

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	qa "github.com/panyam/quickauth"
)

// TokenVerifier matches (*quickauth.SessionIssuer).VerifyToken.
type TokenVerifier func(token string) (accountID string, claims any, err error)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	*Config

	// Verifies bearer tokens from MetadataKeyAuthorization. When nil only
	// forwarded account IDs are considered.
	VerifyToken TokenVerifier

	// RequireAuth when true rejects unauthenticated requests.
	RequireAuth bool

	// PublicMethods skip the RequireAuth check. Keys are full method names
	// like "/package.Service/Method".
	PublicMethods map[string]bool

	Logger *slog.Logger
}

// DefaultInterceptorConfig returns a config that requires auth for all methods.
func DefaultInterceptorConfig(verify TokenVerifier) *InterceptorConfig {
	return &InterceptorConfig{
		Config:        DefaultConfig(),
		VerifyToken:   verify,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
}

// NewPublicMethodsConfig requires auth except for the listed methods.
func NewPublicMethodsConfig(verify TokenVerifier, publicMethods ...string) *InterceptorConfig {
	config := DefaultInterceptorConfig(verify)
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated requests.
func OptionalAuthConfig(verify TokenVerifier) *InterceptorConfig {
	config := DefaultInterceptorConfig(verify)
	config.RequireAuth = false
	return config
}

func (c *InterceptorConfig) normalize() *InterceptorConfig {
	if c == nil {
		c = DefaultInterceptorConfig(nil)
	}
	if c.Config == nil {
		c.Config = DefaultConfig()
	}
	c.Config.EnsureDefaults()
	if c.PublicMethods == nil {
		c.PublicMethods = make(map[string]bool)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that resolves the
// calling account.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = config.normalize()
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that resolves the
// calling account.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = config.normalize()
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context { return s.ctx }

func (c *InterceptorConfig) authenticate(ctx context.Context, method string) (context.Context, error) {
	ctx, outcome := c.resolve(ctx)
	if c.RequireAuth && !c.PublicMethods[method] && qa.AccountIDFromContext(ctx) == "" {
		if outcome == resolveRejected {
			return ctx, status.Error(codes.Unauthenticated, "invalid session token")
		}
		return ctx, status.Error(codes.Unauthenticated, "authentication required")
	}
	return ctx, nil
}

type resolveOutcome int

const (
	resolveNone resolveOutcome = iota
	resolveOK
	resolveRejected
)

func (c *InterceptorConfig) resolve(ctx context.Context) (context.Context, resolveOutcome) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, resolveNone
	}

	outcome := resolveNone
	if c.VerifyToken != nil {
		for _, value := range md.Get(c.Config.MetadataKeyAuthorization) {
			token := bearerToken(value)
			if token == "" {
				continue
			}
			accountID, claims, err := c.VerifyToken(token)
			if err != nil || accountID == "" {
				c.Logger.DebugContext(ctx, "rejected grpc session token", "error", err)
				outcome = resolveRejected
				continue
			}
			sc, _ := claims.(*qa.SessionClaims)
			return qa.ContextWithAccount(ctx, accountID, sc), resolveOK
		}
	}

	if c.Config.TrustForwardedAccountID {
		if values := md.Get(c.Config.MetadataKeyAccountID); len(values) > 0 && values[0] != "" {
			return qa.ContextWithAccount(ctx, values[0], nil), resolveOK
		}
	}
	return ctx, outcome
}

func bearerToken(value string) string {
	value = strings.TrimSpace(value)
	if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}
