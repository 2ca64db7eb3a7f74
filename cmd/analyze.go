package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliscan/aliscan-cli/internal/billing"
	"github.com/aliscan/aliscan-cli/internal/model"
	"github.com/aliscan/aliscan-cli/internal/ocr"
	"github.com/aliscan/aliscan-cli/internal/pipeline"
)

var (
	analyzeTextPaths []string
	analyzeUser      string
	analyzeBatch     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image ...]",
	Short: "Analyze supplier screenshots and score reliability",
	Long:  "Runs OCR over the given screenshot files (or reads pre-extracted text with --text), extracts the supplier record, and prints the scored analysis as JSON.",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && len(analyzeTextPaths) == 0 {
			return eris.New("nothing to analyze: pass image files or --text")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var blocks []string
		if len(args) > 0 {
			engine, err := ocr.NewEngine(cfg.OCR)
			if err != nil {
				return err
			}
			blocks, err = ocr.ReadAll(ctx, engine, args)
			if err != nil {
				return err
			}
		}
		for _, path := range analyzeTextPaths {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read text file %s", path)
			}
			blocks = append(blocks, string(data))
		}

		ledger, err := env.ledger(ctx, analyzeUser)
		if err != nil {
			return err
		}

		if analyzeBatch {
			return runBatch(ctx, env, ledger, blocks)
		}

		mode, err := ledger.Consume(timeNow())
		if err != nil {
			if eris.Is(err, billing.ErrQuotaExhausted) {
				return eris.New("quota exhausted: buy a credit pack or subscribe (aliscan billing)")
			}
			return err
		}

		analysis, err := env.pipeline.Analyze(ctx, model.RawCapture{Blocks: blocks})
		if err != nil {
			// The user got no usable score, give the credit back.
			ledger.Refund(mode)
			if saveErr := env.saveLedger(ctx, analyzeUser, ledger); saveErr != nil {
				zap.L().Warn("refund not persisted", zap.Error(saveErr))
			}
			if eris.Is(err, pipeline.ErrMixedVendors) {
				return eris.Wrap(err, "capture rejected")
			}
			return err
		}

		if err := env.saveLedger(ctx, analyzeUser, ledger); err != nil {
			zap.L().Warn("ledger not persisted", zap.Error(err))
		}

		zap.L().Info("analysis complete",
			zap.String("supplier", analysis.Supplier.Name),
			zap.Int("score", analysis.Result.Score),
			zap.String("label", string(analysis.Result.Label)),
			zap.String("billing_mode", string(mode)),
		)

		return printJSON(analysis)
	},
}

// runBatch scores each input as its own capture. One credit per capture;
// rejected captures are refunded the same way single-shot rejections are.
func runBatch(ctx context.Context, env *appEnv, ledger *billing.Ledger, blocks []string) error {
	captures := make([]model.RawCapture, len(blocks))
	for i, b := range blocks {
		captures[i] = model.RawCapture{Blocks: []string{b}}
	}

	modes := make([]billing.Mode, 0, len(captures))
	for range captures {
		mode, err := ledger.Consume(timeNow())
		if err != nil {
			for _, m := range modes {
				ledger.Refund(m)
			}
			if eris.Is(err, billing.ErrQuotaExhausted) {
				return eris.Errorf("quota covers only %d of %d captures: buy a credit pack or subscribe (aliscan billing)",
					len(modes), len(captures))
			}
			return err
		}
		modes = append(modes, mode)
	}

	analyses, err := env.pipeline.AnalyzeBatch(ctx, captures, env.cfg.Analysis.BatchConcurrency)
	if err != nil {
		for _, m := range modes {
			ledger.Refund(m)
		}
		if saveErr := env.saveLedger(ctx, analyzeUser, ledger); saveErr != nil {
			zap.L().Warn("refund not persisted", zap.Error(saveErr))
		}
		return err
	}

	rejected := 0
	for i, a := range analyses {
		if a != nil && a.Status == model.AnalysisStatusRejected {
			ledger.Refund(modes[i])
			rejected++
		}
	}
	if err := env.saveLedger(ctx, analyzeUser, ledger); err != nil {
		zap.L().Warn("ledger not persisted", zap.Error(err))
	}

	zap.L().Info("batch complete",
		zap.Int("captures", len(captures)),
		zap.Int("rejected", rejected),
	)
	return printJSON(analyses)
}

func init() {
	analyzeCmd.Flags().StringArrayVar(&analyzeTextPaths, "text", nil, "pre-extracted OCR text file (repeatable)")
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", defaultUser, "billing ledger to charge")
	analyzeCmd.Flags().BoolVar(&analyzeBatch, "batch", false, "score each input file as a separate capture")
	rootCmd.AddCommand(analyzeCmd)
}
