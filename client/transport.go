package client

import (
	"net/http"
)

// AuthTransport wraps an http.RoundTripper to add Authorization headers
type AuthTransport struct {
	Base  http.RoundTripper
	Token string
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != "" {
		req = withBearer(req, t.Token)
	}
	return baseOr(t.Base).RoundTrip(req)
}

// NewAuthTransport creates an AuthTransport with the given token
func NewAuthTransport(token string) *AuthTransport {
	return &AuthTransport{Base: http.DefaultTransport, Token: token}
}

// sessionTransport reads the stored session on every request, so a later
// Login or Logout takes effect without rebuilding the http.Client.
type sessionTransport struct {
	client *AuthClient
	base   http.RoundTripper
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.client.GetToken()
	if err != nil {
		return nil, err
	}
	if token != "" && req.Header.Get("Authorization") == "" {
		req = withBearer(req, token)
	}
	resp, err := baseOr(t.base).RoundTrip(req)
	if err != nil {
		return nil, err
	}
	// The server no longer accepts this token; forget it so IsLoggedIn
	// reflects reality.
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		t.client.forget(token)
	}
	return resp, nil
}

func withBearer(req *http.Request, token string) *http.Request {
	// Clone the request to avoid mutating the original
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func baseOr(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}
