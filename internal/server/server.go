package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rezonia/finvoice-bridge/internal/config"
	"github.com/rezonia/finvoice-bridge/internal/finvoice"
	"github.com/rezonia/finvoice-bridge/internal/journal"
	"github.com/rezonia/finvoice-bridge/internal/logger"
	"github.com/rezonia/finvoice-bridge/internal/model"
	"github.com/rezonia/finvoice-bridge/internal/processor"
	"github.com/rezonia/finvoice-bridge/internal/reference"
)

const xmlContentType = "application/xml; charset=utf-8"

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RunTimeout   time.Duration
	Debug        bool
}

// ProfileRunner runs one configured profile on demand
type ProfileRunner interface {
	RunProfile(ctx context.Context, name string, days int) (*processor.Result, error)
}

// Server represents the HTTP API server
type Server struct {
	config  *Config
	router  *gin.Engine
	codec   *finvoice.Codec
	refs    *reference.Generator
	runner  ProfileRunner
	journal journal.Reader
	log     zerolog.Logger
}

// Option configures the server
type Option func(*Server)

// WithRunner enables the profile run endpoint
func WithRunner(r ProfileRunner) Option {
	return func(s *Server) {
		s.runner = r
	}
}

// WithJournal enables the journal endpoint
func WithJournal(r journal.Reader) Option {
	return func(s *Server) {
		s.journal = r
	}
}

// WithCodec sets the Finvoice codec
func WithCodec(c *finvoice.Codec) Option {
	return func(s *Server) {
		s.codec = c
	}
}

// WithReferences sets the payment reference generator
func WithReferences(g *reference.Generator) Option {
	return func(s *Server) {
		s.refs = g
	}
}

// NewServer creates a new API server
func NewServer(cfg *Config, opts ...Option) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config: cfg,
		router: router,
		codec:  finvoice.NewCodec(),
		refs:   reference.NewGenerator(),
		log:    logger.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.RunTimeout <= 0 {
		s.config.RunTimeout = 10 * time.Minute
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/decode", s.handleDecode)
		v1.POST("/encode", s.handleEncode)
		v1.POST("/envelope", s.handleEnvelope)
		v1.GET("/reference/:seed", s.handleReference)

		v1.POST("/profiles/:name/run", s.handleRun)
		v1.GET("/journal", s.handleJournal)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.log.Info().Str("address", s.config.Address).Msg("listening")
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDecode(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	data, err := processor.FinvoiceBody(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	doc, err := s.codec.Decode(data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "failed to decode document", Details: err.Error()})
		return
	}

	var warnings []string
	for _, finding := range model.Validate(doc) {
		warnings = append(warnings, finding.Error())
	}

	c.JSON(http.StatusOK, DecodeResponse{Document: doc, Warnings: warnings})
}

func (s *Server) handleEncode(c *gin.Context) {
	s.render(c, s.codec.Encode)
}

func (s *Server) handleEnvelope(c *gin.Context) {
	s.render(c, s.codec.Envelope)
}

// render binds a JSON document and writes it back as UTF-8 XML
func (s *Server) render(c *gin.Context, encode func(*model.Document) ([]byte, error)) {
	var doc model.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid document", Details: err.Error()})
		return
	}

	out, err := encode(&doc)
	if err == nil {
		out, err = finvoice.ToUTF8(out)
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "failed to encode document", Details: err.Error()})
		return
	}
	c.Data(http.StatusOK, xmlContentType, out)
}

func (s *Server) handleReference(c *gin.Context) {
	seed := c.Param("seed")
	ref, err := s.refs.Generate(seed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ReferenceResponse{Seed: seed, Reference: ref})
}

func (s *Server) handleRun(c *gin.Context) {
	if s.runner == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "profile runs are not enabled"})
		return
	}

	days, err := intQuery(c, "days")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid days", Details: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RunTimeout)
	defer cancel()

	name := c.Param("name")
	res, err := s.runner.RunProfile(ctx, name, days)
	switch {
	case errors.Is(err, config.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case err != nil && res == nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusBadGateway, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}

func (s *Server) handleJournal(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "journal is not enabled"})
		return
	}

	limit, err := intQuery(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Details: err.Error()})
		return
	}
	if limit <= 0 {
		limit = 50
	}

	entries, err := s.journal.Recent(c.Request.Context(), c.Query("profile"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, JournalResponse{Entries: entries})
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}

func intQuery(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
