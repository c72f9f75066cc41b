// Package config loads the bridge settings and the per-company profiles.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/rezonia/finvoice-bridge/internal/logger"
)

// Defaults applied when a setting is absent
const (
	DefaultConfigFile  = "profiles.json"
	DefaultInboundDays = 7
	DefaultTokenCache  = "file:/tmp"
	DefaultAddress     = ":8080"
	DefaultParallel    = 1
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
)

// Environment variables that override file settings
const (
	EnvConfig        = "FINVOICE_CONFIG"
	EnvLogLevel      = "FINVOICE_LOG_LEVEL"
	EnvLogFormat     = "FINVOICE_LOG_FORMAT"
	EnvTokenCache    = "FINVOICE_TOKEN_CACHE"
	EnvJournalDSN    = "FINVOICE_JOURNAL_DSN"
	EnvServerAddress = "FINVOICE_SERVER_ADDRESS"
	EnvParallel      = "FINVOICE_PARALLEL"
)

// ErrProfileNotFound is returned by Profile for an unknown name
var ErrProfileNotFound = errors.New("profile not found")

// Config is the whole configuration file
type Config struct {
	LogLevel      string    `json:"log_level" yaml:"log_level"`
	LogFormat     string    `json:"log_format" yaml:"log_format"`
	TokenCache    string    `json:"token_cache" yaml:"token_cache"`
	JournalDSN    string    `json:"journal_dsn" yaml:"journal_dsn"`
	ServerAddress string    `json:"server_address" yaml:"server_address"`
	Parallel      int       `json:"parallel" yaml:"parallel" validate:"gte=0"`
	Profiles      []Profile `json:"profiles" yaml:"profiles" validate:"dive"`
}

// Profile binds one Maventa company account to one Odoo company
type Profile struct {
	Name                string `json:"name" yaml:"name" validate:"required"`
	MaventaClientID     string `json:"maventa_client_id" yaml:"maventa_client_id" validate:"required"`
	MaventaClientSecret string `json:"maventa_client_secret" yaml:"maventa_client_secret" validate:"required"`
	MaventaVendorAPIKey string `json:"maventa_vendor_api_key" yaml:"maventa_vendor_api_key" validate:"required"`
	MaventaBaseURL      string `json:"maventa_base_url,omitempty" yaml:"maventa_base_url,omitempty" validate:"omitempty,url"`
	OdooURL             string `json:"odoo_url" yaml:"odoo_url" validate:"required,url"`
	OdooDB              string `json:"odoo_db" yaml:"odoo_db" validate:"required"`
	OdooUsername        string `json:"odoo_username" yaml:"odoo_username" validate:"required"`
	OdooAPIKey          string `json:"odoo_api_key" yaml:"odoo_api_key" validate:"required"`
	OdooCompanyID       int    `json:"odoo_company_id" yaml:"odoo_company_id" validate:"required,gt=0"`
	InboundDays         int    `json:"inbound_days,omitempty" yaml:"inbound_days,omitempty" validate:"gte=0"`
	Enabled             *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the profile takes part in batch runs
func (p Profile) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// LoadEnv reads a .env file into the environment. A missing file is fine.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Path returns the config file to load: the explicit path, FINVOICE_CONFIG, or the default
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultConfigFile
}

// Load reads and validates the file at path, then applies environment overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data as YAML for .yaml/.yml and as JSON otherwise
func Parse(data []byte, ext string) (*Config, error) {
	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	for env, dst := range map[string]*string{
		EnvLogLevel:      &c.LogLevel,
		EnvLogFormat:     &c.LogFormat,
		EnvTokenCache:    &c.TokenCache,
		EnvJournalDSN:    &c.JournalDSN,
		EnvServerAddress: &c.ServerAddress,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv(EnvParallel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParallel, err)
		}
		c.Parallel = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.TokenCache == "" {
		c.TokenCache = DefaultTokenCache
	}
	if c.ServerAddress == "" {
		c.ServerAddress = DefaultAddress
	}
	if c.Parallel == 0 {
		c.Parallel = DefaultParallel
	}
	for i := range c.Profiles {
		if c.Profiles[i].InboundDays == 0 {
			c.Profiles[i].InboundDays = DefaultInboundDays
		}
	}
}

// Validate checks required settings and reports the first problem per profile
func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return errors.New("no profiles configured")
	}

	v := validator.New()
	var errs []error
	seen := map[string]bool{}
	for i, p := range c.Profiles {
		if err := v.Struct(p); err != nil {
			errs = append(errs, fmt.Errorf("profile %d (%s): %w", i, p.Name, describe(err)))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("profile %d: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true
	}
	if c.Parallel < 0 {
		errs = append(errs, fmt.Errorf("parallel must not be negative"))
	}
	if !strings.HasPrefix(c.TokenCache, "file:") && !strings.HasPrefix(c.TokenCache, "redis://") &&
		!strings.HasPrefix(c.TokenCache, "rediss://") {
		errs = append(errs, fmt.Errorf("token_cache %q: expected file:<dir> or redis://", c.TokenCache))
	}
	return errors.Join(errs...)
}

// describe turns validator errors into "field rule" pairs
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, ", "))
}

// Profile returns the named profile
func (c *Config) Profile(name string) (Profile, error) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Enabled returns the profiles that take part in batch runs
func (c *Config) Enabled() []Profile {
	var out []Profile
	for _, p := range c.Profiles {
		if p.IsEnabled() {
			out = append(out, p)
		}
	}
	return out
}

// TokenCacheDir returns the directory of a file token cache and false for redis
func (c *Config) TokenCacheDir() (string, bool) {
	dir, ok := strings.CutPrefix(c.TokenCache, "file:")
	return dir, ok
}

// LoggerConfig returns the logging settings
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	return lc
}
