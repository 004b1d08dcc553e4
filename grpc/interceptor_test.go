package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	qa "github.com/panyam/quickauth"
)

const method = "/pkg.Svc/Method"

func fakeVerifier(token string) (string, any, error) {
	if token != "good" {
		return "", nil, errors.New("bad token")
	}
	return "acct-1", &qa.SessionClaims{AccountID: "acct-1", Username: "alice"}, nil
}

func withToken(value string) context.Context {
	md := metadata.Pairs(DefaultMetadataKeyAuthorization, value)
	return metadata.NewIncomingContext(context.Background(), md)
}

func callUnary(t *testing.T, config *InterceptorConfig, ctx context.Context) (string, error) {
	t.Helper()
	interceptor := UnaryAuthInterceptor(config)
	var seen string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, func(ctx context.Context, req any) (any, error) {
		seen = AccountIDFromContext(ctx)
		return "ok", nil
	})
	return seen, err
}

func TestNewPublicMethodsConfig(t *testing.T) {
	config := NewPublicMethodsConfig(nil, "/pkg.Svc/Method1", "/pkg.Svc/Method2")
	if !config.RequireAuth {
		t.Error("expected RequireAuth to be true")
	}
	if !config.PublicMethods["/pkg.Svc/Method1"] || !config.PublicMethods["/pkg.Svc/Method2"] {
		t.Error("expected Method1 and Method2 to be public")
	}
	if config.PublicMethods["/pkg.Svc/Method3"] {
		t.Error("expected Method3 to not be public")
	}
}

func TestUnaryAuthInterceptor(t *testing.T) {
	tests := []struct {
		name     string
		config   *InterceptorConfig
		ctx      context.Context
		wantID   string
		wantCode codes.Code
		wantMsg  string
	}{
		{
			name:     "no metadata",
			config:   DefaultInterceptorConfig(fakeVerifier),
			ctx:      context.Background(),
			wantCode: codes.Unauthenticated,
			wantMsg:  "authentication required",
		},
		{
			name:   "valid bearer token",
			config: DefaultInterceptorConfig(fakeVerifier),
			ctx:    withToken("Bearer good"),
			wantID: "acct-1",
		},
		{
			name:   "lowercase scheme",
			config: DefaultInterceptorConfig(fakeVerifier),
			ctx:    withToken("bearer good"),
			wantID: "acct-1",
		},
		{
			name:     "invalid token",
			config:   DefaultInterceptorConfig(fakeVerifier),
			ctx:      withToken("Bearer forged"),
			wantCode: codes.Unauthenticated,
			wantMsg:  "invalid session token",
		},
		{
			name:   "public method",
			config: NewPublicMethodsConfig(fakeVerifier, method),
			ctx:    context.Background(),
		},
		{
			name:   "optional auth still resolves",
			config: OptionalAuthConfig(fakeVerifier),
			ctx:    withToken("Bearer good"),
			wantID: "acct-1",
		},
		{
			name:   "optional auth ignores bad token",
			config: OptionalAuthConfig(fakeVerifier),
			ctx:    withToken("Bearer forged"),
		},
		{
			name:   "forwarded id untrusted",
			config: OptionalAuthConfig(fakeVerifier),
			ctx: metadata.NewIncomingContext(context.Background(),
				metadata.Pairs(DefaultMetadataKeyAccountID, "acct-9")),
		},
		{
			name: "forwarded id trusted",
			config: &InterceptorConfig{
				Config:      &Config{TrustForwardedAccountID: true},
				RequireAuth: true,
			},
			ctx: metadata.NewIncomingContext(context.Background(),
				metadata.Pairs(DefaultMetadataKeyAccountID, "acct-9")),
			wantID: "acct-9",
		},
		{
			name:     "nil config requires auth",
			config:   nil,
			ctx:      withToken("Bearer good"),
			wantCode: codes.Unauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := callUnary(t, tt.config, tt.ctx)
			if tt.wantCode != codes.OK {
				st, ok := status.FromError(err)
				if !ok || st.Code() != tt.wantCode {
					t.Fatalf("expected %v, got %v", tt.wantCode, err)
				}
				if tt.wantMsg != "" && st.Message() != tt.wantMsg {
					t.Errorf("expected message %q, got %q", tt.wantMsg, st.Message())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID {
				t.Errorf("expected account %q, got %q", tt.wantID, id)
			}
		})
	}
}

func TestUnaryAuthInterceptor_Claims(t *testing.T) {
	interceptor := UnaryAuthInterceptor(DefaultInterceptorConfig(fakeVerifier))
	_, err := interceptor(withToken("Bearer good"), nil, &grpc.UnaryServerInfo{FullMethod: method},
		func(ctx context.Context, req any) (any, error) {
			claims, ok := qa.ClaimsFromContext(ctx)
			if !ok || claims.Username != "alice" {
				t.Errorf("expected claims for alice, got %+v", claims)
			}
			return nil, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type mockServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (m *mockServerStream) Context() context.Context { return m.ctx }

func TestStreamAuthInterceptor(t *testing.T) {
	interceptor := StreamAuthInterceptor(DefaultInterceptorConfig(fakeVerifier))
	info := &grpc.StreamServerInfo{FullMethod: method}

	err := interceptor(nil, &mockServerStream{ctx: context.Background()}, info, func(srv any, ss grpc.ServerStream) error {
		t.Error("handler should not be called")
		return nil
	})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated, got %v", err)
	}

	called := false
	err = interceptor(nil, &mockServerStream{ctx: withToken("Bearer good")}, info, func(srv any, ss grpc.ServerStream) error {
		called = true
		if id := AccountIDFromContext(ss.Context()); id != "acct-1" {
			t.Errorf("expected stream context to carry acct-1, got %q", id)
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected handler to run, err=%v", err)
	}
}

// Runs the interceptors in a real server over an in-memory listener with
// the standard health service as the protected endpoint.
func TestInterceptorsOverBufconn(t *testing.T) {
	issuer, err := qa.NewSessionIssuer(qa.SessionConfig{Secret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatal(err)
	}
	token, err := issuer.Issue(qa.SessionClaims{AccountID: "acct-7", Username: "grace"})
	if err != nil {
		t.Fatal(err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(UnaryAuthInterceptor(DefaultInterceptorConfig(issuer.VerifyToken))),
		grpc.StreamInterceptor(StreamAuthInterceptor(DefaultInterceptorConfig(issuer.VerifyToken))),
	)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Check(ctx, &healthpb.HealthCheckRequest{}); status.Code(err) != codes.Unauthenticated {
		t.Errorf("expected Unauthenticated without token, got %v", err)
	}

	resp, err := client.Check(TokenToOutgoingContext(ctx, token), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("expected success with token, got %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("unexpected health status %v", resp.GetStatus())
	}
}
