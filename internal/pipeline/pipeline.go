// Package pipeline orchestrates a full analysis pass: OCR capture in,
// scored supplier record out, with history persistence and dedup.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aliscan/aliscan-cli/internal/extract"
	"github.com/aliscan/aliscan-cli/internal/model"
	"github.com/aliscan/aliscan-cli/internal/ocr"
	"github.com/aliscan/aliscan-cli/internal/scorer"
	"github.com/aliscan/aliscan-cli/internal/store"
)

// ErrMixedVendors is returned when a capture's blocks name suppliers that do
// not resolve to the same vendor. The rejected analysis is still persisted.
var ErrMixedVendors = eris.New("pipeline: capture mixes several vendors")

// Pipeline runs extraction and scoring over OCR captures.
type Pipeline struct {
	extractor *extract.Extractor
	scorer    *scorer.Scorer
	store     store.Store // nil disables history and dedup
	threshold float64
}

// New creates a Pipeline. st may be nil for one-shot use without history.
func New(ex *extract.Extractor, sc *scorer.Scorer, st store.Store, similarityThreshold float64) *Pipeline {
	if similarityThreshold <= 0 {
		similarityThreshold = extract.DefaultSimilarityThreshold
	}
	return &Pipeline{
		extractor: ex,
		scorer:    sc,
		store:     st,
		threshold: similarityThreshold,
	}
}

// TextHash returns the dedup key for a capture: SHA-256 over the concatenated
// block texts in order.
func TextHash(capture model.RawCapture) string {
	h := sha256.New()
	for _, b := range capture.Blocks {
		h.Write([]byte(b))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Analyze runs one capture through the vendor gate, the extractor and the
// scorer. Identical captures are served from history instead of re-analyzed.
// On a mixed-vendor capture the rejected analysis is returned together with
// ErrMixedVendors.
func (p *Pipeline) Analyze(ctx context.Context, capture model.RawCapture) (*model.Analysis, error) {
	log := zap.L().With(zap.Int("blocks", len(capture.Blocks)))

	if len(capture.Blocks) == 0 {
		return nil, eris.New("pipeline: empty capture")
	}

	hash := TextHash(capture)

	if p.store != nil {
		cached, err := p.store.GetAnalysisByHash(ctx, hash)
		if err != nil {
			log.Warn("pipeline: history lookup failed", zap.Error(err))
		} else if cached != nil {
			log.Info("pipeline: served from history", zap.String("analysis_id", cached.ID))
			return cached, nil
		}
	}

	if err := p.gate(capture); err != nil {
		rejected := &model.Analysis{
			TextHash: hash,
			Capture:  capture,
			Status:   model.AnalysisStatusRejected,
		}
		p.save(ctx, log, rejected)
		return rejected, err
	}

	supplier := p.extractor.Extract(ocr.JoinCaptures(capture.Blocks))
	result := p.scorer.Score(supplier)

	analysis := &model.Analysis{
		TextHash: hash,
		Capture:  capture,
		Supplier: supplier,
		Result:   &result,
		Status:   model.AnalysisStatusComplete,
	}
	p.save(ctx, log, analysis)

	log.Info("pipeline: analysis complete",
		zap.String("supplier", supplier.Name),
		zap.Int("score", result.Score),
		zap.String("label", string(result.Label)),
	)
	return analysis, nil
}

// AnalyzeBatch runs captures concurrently, preserving input order in the
// returned slice. A mixed-vendor capture yields its rejected analysis in
// place; only infrastructure errors abort the batch.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, captures []model.RawCapture, concurrency int) ([]*model.Analysis, error) {
	if concurrency <= 0 {
		concurrency = 4
	}

	analyses := make([]*model.Analysis, len(captures))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, capture := range captures {
		g.Go(func() error {
			a, err := p.Analyze(gCtx, capture)
			if err != nil && !eris.Is(err, ErrMixedVendors) {
				return err
			}
			analyses[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return analyses, nil
}

// gate verifies that every block naming a vendor names the same one. Blocks
// without a recognizable company name pass through.
func (p *Pipeline) gate(capture model.RawCapture) error {
	var reference string
	for _, block := range capture.Blocks {
		s := p.extractor.Extract(block)
		if s.Name == "" {
			continue
		}
		if reference == "" {
			reference = s.Name
			continue
		}
		if !extract.SameVendor(reference, s.Name, p.threshold) {
			return eris.Wrapf(ErrMixedVendors, "%q vs %q", reference, s.Name)
		}
	}
	return nil
}

// save persists an analysis when a store is configured. Persistence failures
// are logged, not fatal: the caller still gets the in-memory result.
func (p *Pipeline) save(ctx context.Context, log *zap.Logger, a *model.Analysis) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveAnalysis(ctx, a); err != nil {
		log.Warn("pipeline: failed to save analysis", zap.Error(err))
	}
}
