// Package maventa is a client for the Maventa e-invoicing REST API.
package maventa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/rezonia/finvoice-bridge/internal/logger"
)

// DefaultBaseURL is the production API endpoint
const DefaultBaseURL = "https://ax.maventa.com"

// ErrNotAuthenticated is returned when a call needs a token and none is held
var ErrNotAuthenticated = errors.New("maventa: not authenticated")

// APIError is an error object returned by the API
type APIError struct {
	Status  int
	Code    string
	Message string
	Details []string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if len(e.Details) > 0 {
		msg += " details: " + strings.Join(e.Details, "; ")
	}
	if e.Status != 0 {
		return fmt.Sprintf("maventa: %s (HTTP %d)", msg, e.Status)
	}
	return "maventa: " + msg
}

// Client talks to one Maventa company account
type Client struct {
	baseURL    string
	httpClient *http.Client
	clock      clockwork.Clock
	store      TokenStore
	profile    string
	token      *Token
	log        zerolog.Logger
}

// Option configures the client
type Option func(*Client)

// WithBaseURL overrides the API endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithClock sets the clock used for token expiry
func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithTokenStore caches tokens between runs
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client for the named profile
func NewClient(profile string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		clock:      clockwork.NewRealClock(),
		profile:    profile,
		log:        logger.WithComponent("maventa"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// get performs an authenticated GET and returns the body
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if !c.TokenValid() {
		return nil, ErrNotAuthenticated
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("maventa request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("maventa read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// parseAPIError reads {"code","message","details"} where details is a string or a list
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if !gjson.ValidBytes(body) {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	res := gjson.ParseBytes(body)
	e.Code = res.Get("code").String()
	e.Message = res.Get("message").String()
	details := res.Get("details")
	switch {
	case details.IsArray():
		for _, d := range details.Array() {
			if d.Type == gjson.String {
				e.Details = append(e.Details, d.String())
			}
		}
	case details.Type == gjson.String:
		e.Details = []string{details.String()}
	}
	if e.Code == "" && e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// errorObject reports whether body is an API error object other than auth_authorized
func errorObject(body []byte) *APIError {
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil
	}
	code := res.Get("code")
	if code.Type != gjson.String || code.String() == "auth_authorized" {
		return nil
	}
	return parseAPIError(0, body)
}
