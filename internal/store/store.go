package store

import (
	"context"
	"time"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/model"
)

// HistoryFilter specifies criteria for listing analyses.
type HistoryFilter struct {
	Status model.AnalysisStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// Store defines persistence for analyses, billing ledgers, and the tracking
// cache. Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	// Analyses
	SaveAnalysis(ctx context.Context, a *model.Analysis) error
	SaveAnalyses(ctx context.Context, analyses []model.Analysis) (int, error)
	GetAnalysis(ctx context.Context, id string) (*model.Analysis, error)
	GetAnalysisByHash(ctx context.Context, textHash string) (*model.Analysis, error)
	ListAnalyses(ctx context.Context, filter HistoryFilter) ([]model.Analysis, error)
	DeleteAnalysis(ctx context.Context, id string) error

	// Billing ledgers, keyed by user.
	GetLedger(ctx context.Context, userID string) (*billing.Ledger, error)
	SaveLedger(ctx context.Context, userID string, l *billing.Ledger) error

	// Tracking cache
	GetCachedTracking(ctx context.Context, number string) (*model.Tracking, error)
	SetCachedTracking(ctx context.Context, t *model.Tracking, ttl time.Duration) error
	DeleteExpiredTrackings(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
