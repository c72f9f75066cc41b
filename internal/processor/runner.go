package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/finvoice-bridge/internal/config"
	"github.com/rezonia/finvoice-bridge/internal/journal"
	"github.com/rezonia/finvoice-bridge/internal/logger"
	"github.com/rezonia/finvoice-bridge/internal/maventa"
)

// Runner runs the pipelines of all configured profiles
type Runner struct {
	cfg      *config.Config
	parallel int
	base     []PipelineOption
	log      zerolog.Logger
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithParallel overrides how many profiles run at once
func WithParallel(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithPipelineOptions applies opts to every pipeline the runner creates
func WithPipelineOptions(opts ...PipelineOption) RunnerOption {
	return func(r *Runner) {
		r.base = append(r.base, opts...)
	}
}

// NewRunner creates a runner over cfg's profiles
func NewRunner(cfg *config.Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		parallel: cfg.Parallel,
		log:      logger.WithComponent("runner"),
	}
	if r.parallel <= 0 {
		r.parallel = config.DefaultParallel
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll runs every enabled profile. A failing profile does not stop the others;
// its error is logged, kept in its result and joined into the returned error.
func (r *Runner) RunAll(ctx context.Context, days int) ([]*Result, error) {
	profiles := r.cfg.Enabled()
	results := make([]*Result, len(profiles))

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, p := range profiles {
		g.Go(func() error {
			res, err := r.run(gctx, p, days)
			results[i] = res
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("profile %s: %w", p.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// RunProfile runs the named profile whether or not it is enabled
func (r *Runner) RunProfile(ctx context.Context, name string, days int) (*Result, error) {
	p, err := r.cfg.Profile(name)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, p, days)
}

func (r *Runner) run(ctx context.Context, p config.Profile, days int) (*Result, error) {
	pipeline := NewPipeline(p, r.base...)
	res, err := pipeline.Run(ctx, days)
	if err != nil {
		res.Error = err.Error()
		r.log.Error().Err(err).Str("profile", p.Name).Str("run_id", pipeline.RunID()).Msg("profile run failed")
		return res, err
	}
	r.log.Info().
		Str("profile", p.Name).
		Str("run_id", pipeline.RunID()).
		Int("sent", res.Outbound.Succeeded).
		Int("received", res.Inbound.Succeeded).
		Msg("profile run complete")
	return res, nil
}

// Stores are the shared token cache and journal selected by configuration
type Stores struct {
	Tokens  maventa.TokenStore
	Journal journal.Store
	closers []func() error
}

// OpenStores connects the token cache and journal named in cfg.
// token_cache "file:<dir>" uses files and redis:// uses Redis.
// An empty journal_dsn keeps the journal in memory; otherwise it is PostgreSQL.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	s := &Stores{}

	if dir, ok := cfg.TokenCacheDir(); ok {
		s.Tokens = maventa.NewFileStore(dir)
	} else {
		rs, err := maventa.NewRedisStore(ctx, cfg.TokenCache)
		if err != nil {
			return nil, fmt.Errorf("token cache: %w", err)
		}
		s.Tokens = rs
		s.closers = append(s.closers, rs.Close)
	}

	if cfg.JournalDSN == "" {
		s.Journal = journal.NewMemory()
	} else {
		pg, err := journal.OpenPostgres(ctx, cfg.JournalDSN)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("journal: %w", err)
		}
		s.Journal = pg
		s.closers = append(s.closers, pg.Close)
	}
	return s, nil
}

// PipelineOptions wires the stores into pipelines
func (s *Stores) PipelineOptions() []PipelineOption {
	return []PipelineOption{WithTokenStore(s.Tokens), WithJournal(s.Journal)}
}

// Close releases store connections
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

