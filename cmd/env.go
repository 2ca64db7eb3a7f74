package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/config"
	"github.com/aliscan/aliscan-cli/internal/cost"
	"github.com/aliscan/aliscan-cli/internal/extract"
	"github.com/aliscan/aliscan-cli/internal/pipeline"
	"github.com/aliscan/aliscan-cli/internal/scorer"
	"github.com/aliscan/aliscan-cli/internal/store"
	"github.com/aliscan/aliscan-cli/internal/track"
)

// defaultUser is the ledger key for local CLI usage.
const defaultUser = "local"

// timeNow is swapped in tests that exercise quota windows.
var timeNow = func() time.Time { return time.Now().UTC() }

// appEnv holds the initialized store and domain services shared by commands.
type appEnv struct {
	cfg      *config.Config
	store    store.Store
	pipeline *pipeline.Pipeline
	tracker  track.Client
	calc     *cost.Calculator
}

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "aliscan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &c.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// newEnv builds the environment from loaded configuration. Callers should
// defer env.Close().
func newEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	st, err := initStore(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ex := extract.New(c.Vocab)
	sc := scorer.New(c.Scorer, time.Now().UTC().Year())
	p := pipeline.New(ex, sc, st, c.Analysis.SimilarityThreshold)

	var tracker track.Client
	switch {
	case c.Track.Simulate || c.Track.APIKey == "":
		if !c.Track.Simulate {
			zap.L().Debug("ALISCAN_TRACK_API_KEY not set, using simulated tracking")
		}
		tracker = track.NewSimulator()
	default:
		tracker = track.NewClient(c.Track.APIKey, track.WithBaseURL(c.Track.BaseURL))
	}

	return &appEnv{
		cfg:      c,
		store:    st,
		pipeline: p,
		tracker:  tracker,
		calc:     cost.NewCalculator(c.Cost),
	}, nil
}

func initEnv(ctx context.Context) (*appEnv, error) {
	return newEnv(ctx, cfg)
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// ledger loads the user's quota ledger, creating a fresh one on first use.
func (e *appEnv) ledger(ctx context.Context, userID string) (*billing.Ledger, error) {
	l, err := e.store.GetLedger(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "load ledger")
	}
	if l == nil {
		l = billing.NewLedger(e.cfg.Billing.Limits)
	}
	return l, nil
}

func (e *appEnv) saveLedger(ctx context.Context, userID string, l *billing.Ledger) error {
	return e.store.SaveLedger(ctx, userID, l)
}

// trackingTTL returns the cache lifetime for tracking lookups.
func (e *appEnv) trackingTTL() time.Duration {
	h := e.cfg.Track.CacheTTLHours
	if h <= 0 {
		h = 6
	}
	return time.Duration(h) * time.Hour
}
