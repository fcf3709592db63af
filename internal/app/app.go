// Package app assembles the agent and its ledger from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davidahmann/tally/internal/agent"
	"github.com/davidahmann/tally/internal/aggregate"
	"github.com/davidahmann/tally/internal/api"
	"github.com/davidahmann/tally/internal/auth"
	"github.com/davidahmann/tally/internal/config"
	"github.com/davidahmann/tally/internal/dataset"
	"github.com/davidahmann/tally/internal/ledger"
	"github.com/davidahmann/tally/internal/ledger/pgstore"
	"github.com/davidahmann/tally/internal/ledger/sqlstore"
	"github.com/davidahmann/tally/internal/llm"
	"github.com/davidahmann/tally/internal/policy"
	"github.com/davidahmann/tally/internal/reasoning"
)

type App struct {
	Agent  *agent.Agent
	Ledger ledger.Store
	Policy policy.LoadedPolicy

	closers []func() error
}

// Options override pieces of the assembly, mostly for tests.
type Options struct {
	Getenv   func(string) string
	Provider llm.Provider
}

// New loads the dataset and policy, builds the provider and opens the
// ledger. A missing provider credential is not an error: every request
// then takes the fallback path.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	records, err := dataset.LoadCSV(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	loaded, err := LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	engine, err := policy.NewEngine(loaded)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = llm.New(ctx, llm.Config{
			Provider: cfg.Reasoning.Provider,
			BaseURL:  cfg.Reasoning.BaseURL,
			APIKey:   cfg.Reasoning.APIKey(opts.Getenv),
		})
		if err != nil {
			return nil, fmt.Errorf("reasoning provider: %w", err)
		}
	}
	invoker := reasoning.New(provider,
		reasoning.WithModel(cfg.Reasoning.ModelOrDefault()),
		reasoning.WithTimeout(cfg.Reasoning.Timeout),
		reasoning.WithMaxTokens(cfg.Reasoning.MaxTokens),
		reasoning.WithTemperature(cfg.Reasoning.Temperature),
	)

	a := &App{Policy: loaded}
	store, closer, err := OpenLedger(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.Ledger = store

	if err := store.PutPolicyVersion(ledger.PolicyVersionRecord{
		PolicyHash:    loaded.Hash,
		PolicyID:      loaded.Policy.PolicyID,
		PolicyVersion: loaded.Policy.PolicyVersion,
		PolicyYAML:    string(loaded.Bytes),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Warn().Err(err).Str("policy_hash", loaded.Hash).Msg("record policy version")
	}

	a.Agent = agent.New(engine,
		aggregate.NewStore(records, aggregate.WithMinCardinality(cfg.MinCardinality)),
		invoker,
		agent.WithLedger(store),
	)

	log.Info().
		Int("records", len(records)).
		Str("policy_id", loaded.Policy.PolicyID).
		Str("policy_hash", loaded.Hash).
		Str("provider", invoker.ProviderName()).
		Str("ledger", cfg.Ledger.Driver).
		Msg("agent ready")
	return a, nil
}

// LoadPolicy reads path, or the embedded default when path is empty.
func LoadPolicy(path string) (policy.LoadedPolicy, error) {
	if path == "" {
		loaded, err := policy.LoadDefault()
		if err != nil {
			return policy.LoadedPolicy{}, fmt.Errorf("load default policy: %w", err)
		}
		return loaded, nil
	}
	loaded, err := policy.LoadPolicy(path)
	if err != nil {
		return policy.LoadedPolicy{}, fmt.Errorf("load policy %s: %w", path, err)
	}
	return loaded, nil
}

// OpenLedger opens and migrates the configured store. The returned closer
// is nil for the in-memory store.
func OpenLedger(cfg config.LedgerConfig) (ledger.Store, func() error, error) {
	if cfg.Driver == config.LedgerMemory || cfg.Driver == "" {
		return ledger.NewInMemoryStore(), nil, nil
	}
	driver, err := ledger.ParseDriver(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	var (
		store   ledger.Store
		db      *sql.DB
		closeFn func() error
	)
	switch driver {
	case ledger.DBSQLite:
		s, err := sqlstore.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		store, db, closeFn = s, s.DB(), s.Close
	default:
		s, err := pgstore.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		store, db, closeFn = s, s.DB(), s.Close
	}
	if err := ledger.Migrate(db, driver); err != nil {
		_ = closeFn()
		return nil, nil, fmt.Errorf("migrate %s ledger: %w", driver, err)
	}
	return store, closeFn, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handler serves the agent and ledger over HTTP.
func (a *App) Handler(cfg config.ServerConfig) http.Handler {
	h := &api.Handler{
		Auth:   auth.NewDevTokenAuthenticator(cfg.DevToken),
		Agent:  a.Agent,
		Ledger: a.Ledger,
	}
	return api.NewRouter(h, api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
}

// Server wraps Handler in an http.Server listening on addr.
func (a *App) Server(addr string, cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           a.Handler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
