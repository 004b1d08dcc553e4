package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	qa "github.com/panyam/quickauth"
)

const DefaultFacebookGraphURL = "https://graph.facebook.com/v15.0"

type FacebookConfig struct {
	// Defaults to DefaultFacebookGraphURL
	GraphURL string

	// When both are set, tokens are checked with debug_token and must have
	// been issued to this app.
	AppID     string
	AppSecret string

	HTTPClient *http.Client
	Timeout    time.Duration
}

// FacebookClient resolves Facebook user access tokens through the Graph API.
type FacebookClient struct {
	graphURL  string
	appID     string
	appSecret string
	client    *http.Client
	timeout   time.Duration
}

func NewFacebookClient(cfg FacebookConfig) *FacebookClient {
	graphURL := strings.TrimRight(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = DefaultFacebookGraphURL
	}
	return &FacebookClient{
		graphURL:  graphURL,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		client:    cfg.HTTPClient,
		timeout:   timeoutOr(cfg.Timeout),
	}
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type graphUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type debugTokenResponse struct {
	Data struct {
		AppID   string `json:"app_id"`
		IsValid bool   `json:"is_valid"`
		UserID  string `json:"user_id"`
	} `json:"data"`
}

func (c *FacebookClient) Identify(ctx context.Context, accessToken string) (*qa.ExternalIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.appID != "" && c.appSecret != "" {
		if err := c.checkApp(ctx, accessToken); err != nil {
			return nil, err
		}
	}

	var user graphUser
	meURL := c.graphURL + "/me?fields=id,name,first_name,last_name,email"
	if err := c.getJSON(ctx, bearerClient(ctx, c.client, accessToken), meURL, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: facebook returned no user id", qa.ErrProviderRejected)
	}
	return &qa.ExternalIdentity{
		Provider:  qa.ProviderFacebook,
		ID:        user.ID,
		Name:      user.Name,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}, nil
}

// checkApp verifies the token was issued to the configured app.
func (c *FacebookClient) checkApp(ctx context.Context, accessToken string) error {
	q := url.Values{}
	q.Set("input_token", accessToken)
	q.Set("access_token", c.appID+"|"+c.appSecret)

	var dbg debugTokenResponse
	if err := c.getJSON(ctx, baseClient(c.client), c.graphURL+"/debug_token?"+q.Encode(), &dbg); err != nil {
		return err
	}
	if !dbg.Data.IsValid {
		return fmt.Errorf("%w: facebook token is not valid", qa.ErrProviderRejected)
	}
	if dbg.Data.AppID != c.appID {
		return fmt.Errorf("%w: facebook token was issued to app %s", qa.ErrProviderRejected, dbg.Data.AppID)
	}
	return nil
}

func (c *FacebookClient) getJSON(ctx context.Context, client *http.Client, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("facebook request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading facebook response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var ge graphError
		_ = json.Unmarshal(body, &ge)
		if rejected(resp.StatusCode) {
			return fmt.Errorf("%w: facebook: %s", qa.ErrProviderRejected, ge.Error.Message)
		}
		return fmt.Errorf("facebook returned status %d: %s", resp.StatusCode, ge.Error.Message)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding facebook response: %w", err)
	}
	return nil
}
