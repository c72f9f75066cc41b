// Package odoo connects the bridge to an Odoo ERP over XML-RPC.
package odoo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/finvoice-bridge/internal/logger"
	"github.com/rezonia/finvoice-bridge/internal/odoo/xmlrpc"
)

// ErrAuthFailed is returned when Odoo rejects the credentials
var ErrAuthFailed = errors.New("odoo: authentication failed")

// ErrNotAuthenticated is returned when a call needs a uid and none is held
var ErrNotAuthenticated = errors.New("odoo: not authenticated")

const (
	commonPath = "/xmlrpc/2/common"
	objectPath = "/xmlrpc/2/object"
)

// Client calls the external API of one Odoo database
type Client struct {
	url        string
	db         string
	username   string
	apiKey     string
	uid        int
	httpClient *http.Client
	log        zerolog.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a client. Authenticate must be called before other calls.
func NewClient(url, db, username, apiKey string, opts ...Option) *Client {
	c := &Client{
		url:        strings.TrimRight(url, "/"),
		db:         db,
		username:   username,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        logger.WithComponent("odoo"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate logs in and stores the user id
func (c *Client) Authenticate(ctx context.Context) (int, error) {
	res, err := c.call(ctx, commonPath, "authenticate", c.db, c.username, c.apiKey, map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("odoo authenticate: %w", err)
	}
	uid, ok := res.(int)
	if !ok || uid <= 0 {
		return 0, ErrAuthFailed
	}
	c.uid = uid
	c.log.Debug().Int("uid", uid).Str("db", c.db).Msg("authenticated")
	return uid, nil
}

// UID returns the authenticated user id, zero before Authenticate
func (c *Client) UID() int {
	return c.uid
}

// ExecuteKW calls method on model with positional and keyword arguments
func (c *Client) ExecuteKW(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	if c.uid == 0 {
		return nil, ErrNotAuthenticated
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	res, err := c.call(ctx, objectPath, "execute_kw", c.db, c.uid, c.apiKey, model, method, args, kwargs)
	if err != nil {
		return nil, fmt.Errorf("odoo %s.%s: %w", model, method, err)
	}
	return res, nil
}

// SearchRead returns the records of model matching domain.
// With no fields every field is returned.
func (c *Client) SearchRead(ctx context.Context, model string, domain Domain, fields ...string) ([]Record, error) {
	kwargs := map[string]any{}
	if len(fields) > 0 {
		kwargs["fields"] = fields
	}
	res, err := c.ExecuteKW(ctx, model, "search_read", []any{domain.args()}, kwargs)
	if err != nil {
		return nil, err
	}
	rows, ok := res.([]any)
	if !ok {
		return nil, fmt.Errorf("odoo %s.search_read: unexpected result %T", model, res)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		if m, ok := row.(map[string]any); ok {
			records = append(records, Record(m))
		}
	}
	return records, nil
}

// Create inserts one record and returns its id
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int, error) {
	res, err := c.ExecuteKW(ctx, model, "create", []any{values}, nil)
	if err != nil {
		return 0, err
	}
	id, ok := res.(int)
	if !ok || id <= 0 {
		return 0, fmt.Errorf("odoo %s.create: unexpected result %v", model, res)
	}
	return id, nil
}

// Write updates fields of one record
func (c *Client) Write(ctx context.Context, model string, id int, values map[string]any) error {
	res, err := c.ExecuteKW(ctx, model, "write", []any{[]int{id}, values}, nil)
	if err != nil {
		return err
	}
	if ok, _ := res.(bool); !ok {
		return fmt.Errorf("odoo %s.write %d: not applied", model, id)
	}
	return nil
}

func (c *Client) call(ctx context.Context, path, method string, params ...any) (any, error) {
	body, err := xmlrpc.EncodeCall(method, params...)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return xmlrpc.DecodeResponse(data)
}
