package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliscan/aliscan-cli/internal/export"
	"github.com/aliscan/aliscan-cli/internal/model"
	"github.com/aliscan/aliscan-cli/internal/store"
)

var (
	historyStatus string
	historyLimit  int
	historyOffset int
	importFile    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		analyses, err := env.store.ListAnalyses(cmd.Context(), store.HistoryFilter{
			Status: model.AnalysisStatus(historyStatus),
			Limit:  historyLimit,
			Offset: historyOffset,
		})
		if err != nil {
			return err
		}
		return printJSON(analyses)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.store.GetAnalysis(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if a == nil {
			return eris.Errorf("analysis not found: %s", args[0])
		}
		return printJSON(a)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.DeleteAnalysis(cmd.Context(), args[0]); err != nil {
			return err
		}
		zap.L().Info("analysis deleted", zap.String("id", args[0]))
		return nil
	},
}

var historyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import analyses from a CSV or XLSX export",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFile == "" {
			return eris.New("cmd: --file is required")
		}

		var (
			analyses []model.Analysis
			err      error
		)
		switch strings.ToLower(filepath.Ext(importFile)) {
		case ".csv":
			f, openErr := os.Open(importFile)
			if openErr != nil {
				return eris.Wrapf(openErr, "cmd: open %s", importFile)
			}
			defer f.Close()
			analyses, err = export.ReadCSV(f)
		case ".xlsx":
			analyses, err = export.ReadXLSX(importFile)
		default:
			return eris.Errorf("cmd: unsupported import format %q", filepath.Ext(importFile))
		}
		if err != nil {
			return err
		}
		if len(analyses) == 0 {
			zap.L().Info("nothing to import")
			return nil
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.store.SaveAnalyses(cmd.Context(), analyses)
		if err != nil {
			return err
		}
		zap.L().Info("analyses imported", zap.Int("count", n), zap.String("file", importFile))
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (complete, rejected)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum rows to return")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "rows to skip")
	historyImportCmd.Flags().StringVar(&importFile, "file", "", "CSV or XLSX file to import")
	historyCmd.AddCommand(historyShowCmd, historyDeleteCmd, historyImportCmd)
	rootCmd.AddCommand(historyCmd)
}
