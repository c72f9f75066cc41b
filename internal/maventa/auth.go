package maventa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// expiryMargin is how long before expiry a token is treated as stale
const expiryMargin = 60 * time.Second

// Credentials identify a company to the API
type Credentials struct {
	ClientID     string
	ClientSecret string
	VendorAPIKey string
}

// Token is an OAuth2 bearer token
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	ExpiresAt   int64  `json:"expires_at"` // unix seconds
}

// Valid reports whether the token is usable at now
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Add(expiryMargin).Unix() < t.ExpiresAt
}

// TokenValid reports whether the client holds a usable token
func (c *Client) TokenValid() bool {
	return c.token.Valid(c.clock.Now())
}

// Authenticate obtains a token, reusing a cached one while it is still valid
func (c *Client) Authenticate(ctx context.Context, creds Credentials) error {
	if c.TokenValid() {
		return nil
	}

	if c.store != nil {
		tok, err := c.store.Load(ctx, c.profile)
		if err != nil {
			c.log.Warn().Err(err).Str("profile", c.profile).Msg("token cache unreadable")
		} else if tok.Valid(c.clock.Now()) {
			c.token = tok
			c.log.Debug().Str("profile", c.profile).Msg("using cached token")
			return nil
		}
	}

	form := url.Values{
		"grant_type":     {"client_credentials"},
		"client_id":      {creds.ClientID},
		"client_secret":  {creds.ClientSecret},
		"vendor_api_key": {creds.VendorAPIKey},
		"scope":          {"eui"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/oauth2/token"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("maventa authenticate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("maventa read token response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return parseAPIError(resp.StatusCode, body)
	}

	res := gjson.ParseBytes(body)
	access := res.Get("access_token").String()
	if access == "" {
		return &APIError{Status: resp.StatusCode, Message: "token response without access_token"}
	}

	c.token = &Token{
		AccessToken: access,
		TokenType:   res.Get("token_type").String(),
		Scope:       res.Get("scope").String(),
		ExpiresAt:   c.clock.Now().Unix() + res.Get("expires_in").Int(),
	}
	c.log.Info().Str("profile", c.profile).Time("expires", time.Unix(c.token.ExpiresAt, 0)).Msg("authenticated")

	if c.store != nil {
		if err := c.store.Save(ctx, c.profile, c.token); err != nil {
			c.log.Warn().Err(err).Str("profile", c.profile).Msg("token cache not written")
		}
	}
	return nil
}
