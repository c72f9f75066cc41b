package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/rezonia/finvoice-bridge/internal/config"
	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/journal"
	"github.com/rezonia/finvoice-bridge/internal/lifecycle"
	"github.com/rezonia/finvoice-bridge/internal/logger"
	"github.com/rezonia/finvoice-bridge/internal/maventa"
	"github.com/rezonia/finvoice-bridge/internal/odoo"
	"github.com/rezonia/finvoice-bridge/internal/pdf"
)

// Ledger is the ERP side of both directions
type Ledger interface {
	lifecycle.SalesLedger
	lifecycle.PurchaseLedger
}

// Network is the e-invoicing operator side of both directions
type Network interface {
	lifecycle.Transmitter
	lifecycle.Inbox
}

// Connector logs in to both systems of a profile
type Connector func(ctx context.Context, p config.Profile, deps Deps) (Ledger, Network, error)

// Deps are the shared services handed to a connector
type Deps struct {
	Tokens     maventa.TokenStore
	Clock      clockwork.Clock
	HTTPClient *http.Client
	Log        zerolog.Logger
}

// Result represents the outcome of one profile run
type Result struct {
	Profile  string           `json:"profile"`
	RunID    string           `json:"run_id"`
	Outbound lifecycle.Report `json:"outbound"`
	Inbound  lifecycle.Report `json:"inbound"`
	Started  time.Time        `json:"started"`
	Duration string           `json:"duration"`
	Error    string           `json:"error,omitempty"`
}

// Pipeline runs the outbound then the inbound pass for one profile
type Pipeline struct {
	profile    config.Profile
	runID      string
	tokens     maventa.TokenStore
	journal    journal.Recorder
	clock      clockwork.Clock
	httpClient *http.Client
	connect    Connector
	images     lifecycle.ImageValidator
	log        zerolog.Logger
}

// PipelineOption configures the pipeline
type PipelineOption func(*Pipeline)

// WithTokenStore sets where Maventa tokens are cached
func WithTokenStore(s maventa.TokenStore) PipelineOption {
	return func(p *Pipeline) {
		p.tokens = s
	}
}

// WithJournal sets the transition journal
func WithJournal(r journal.Recorder) PipelineOption {
	return func(p *Pipeline) {
		p.journal = r
	}
}

// WithClock sets the clock for timestamps and the inbound window
func WithClock(c clockwork.Clock) PipelineOption {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithHTTPClient sets the HTTP client used for both systems
func WithHTTPClient(h *http.Client) PipelineOption {
	return func(p *Pipeline) {
		p.httpClient = h
	}
}

// WithConnector replaces how the pipeline logs in
func WithConnector(c Connector) PipelineOption {
	return func(p *Pipeline) {
		p.connect = c
	}
}

// WithRunID sets the run id instead of generating one
func WithRunID(id string) PipelineOption {
	return func(p *Pipeline) {
		p.runID = id
	}
}

// NewPipeline creates a pipeline for profile
func NewPipeline(profile config.Profile, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		profile:    profile,
		tokens:     maventa.NewFileStore("/tmp"),
		journal:    journal.Discard{},
		clock:      clockwork.NewRealClock(),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		connect:    Connect,
		images:     pdf.NewInspector(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	p.log = logger.WithProfile(profile.Name, p.runID)
	return p
}

// RunID returns the id tagging this run's logs and journal entries
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run logs in, sends pending invoices, then imports invoices received in the
// last days days. days <= 0 uses the profile's inbound window.
// A failed pass is recorded in the result without skipping the other.
func (p *Pipeline) Run(ctx context.Context, days int) (*Result, error) {
	if days <= 0 {
		days = p.profile.InboundDays
	}
	start := p.clock.Now()
	res := &Result{Profile: p.profile.Name, RunID: p.runID, Started: start}
	defer func() {
		res.Duration = p.clock.Since(start).String()
	}()

	ledger, network, err := p.connect(ctx, p.profile, Deps{
		Tokens:     p.tokens,
		Clock:      p.clock,
		HTTPClient: p.httpClient,
		Log:        p.log,
	})
	if err != nil {
		return res, err
	}

	opts := []lifecycle.Option{
		lifecycle.WithCodec(finvoice.NewCodec(finvoice.WithClock(p.clock), finvoice.WithLogger(p.log))),
		lifecycle.WithJournal(p.journal),
		lifecycle.WithRun(p.profile.Name, p.runID),
		lifecycle.WithLogger(p.log),
		lifecycle.WithImageValidator(p.images),
	}

	var outErr, inErr error
	res.Outbound, err = lifecycle.NewOutbound(ledger, network, opts...).Process(ctx)
	if err != nil {
		outErr = fmt.Errorf("outbound: %w", err)
		p.log.Error().Err(err).Msg("outbound pass failed")
	} else {
		p.log.Info().
			Int("sent", res.Outbound.Succeeded).
			Int("failed", res.Outbound.Failed).
			Msg("outbound pass done")
	}

	since := p.clock.Now().AddDate(0, 0, -days)
	res.Inbound, err = lifecycle.NewInbound(network, ledger, opts...).Process(ctx, since)
	if err != nil {
		inErr = fmt.Errorf("inbound: %w", err)
		p.log.Error().Err(err).Msg("inbound pass failed")
	} else {
		p.log.Info().
			Int("created", res.Inbound.Succeeded).
			Int("duplicates", res.Inbound.Count(lifecycle.KindDuplicateSkip)).
			Int("failed", res.Inbound.Failed).
			Msg("inbound pass done")
	}

	if err := errors.Join(outErr, inErr); err != nil {
		res.Error = err.Error()
		return res, err
	}
	return res, nil
}

// Connect authenticates against Odoo and Maventa with the profile's credentials
func Connect(ctx context.Context, p config.Profile, deps Deps) (Ledger, Network, error) {
	oc := odoo.NewClient(p.OdooURL, p.OdooDB, p.OdooUsername, p.OdooAPIKey,
		odoo.WithHTTPClient(deps.HTTPClient),
		odoo.WithLogger(deps.Log),
	)
	if _, err := oc.Authenticate(ctx); err != nil {
		return nil, nil, fmt.Errorf("odoo login: %w", err)
	}

	mopts := []maventa.Option{
		maventa.WithHTTPClient(deps.HTTPClient),
		maventa.WithClock(deps.Clock),
		maventa.WithTokenStore(deps.Tokens),
		maventa.WithLogger(deps.Log),
	}
	if p.MaventaBaseURL != "" {
		mopts = append(mopts, maventa.WithBaseURL(p.MaventaBaseURL))
	}
	mc := maventa.NewClient(p.Name, mopts...)
	err := mc.Authenticate(ctx, maventa.Credentials{
		ClientID:     p.MaventaClientID,
		ClientSecret: p.MaventaClientSecret,
		VendorAPIKey: p.MaventaVendorAPIKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("maventa login: %w", err)
	}

	ledger := odoo.NewLedger(oc, p.OdooCompanyID, odoo.WithLedgerLogger(deps.Log))
	return ledger, mc, nil
}
