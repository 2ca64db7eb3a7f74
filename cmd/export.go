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
	exportOut    string
	exportStatus string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved analyses to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportOut == "" {
			return eris.New("cmd: --out is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		analyses, err := env.store.ListAnalyses(cmd.Context(), store.HistoryFilter{
			Status: model.AnalysisStatus(exportStatus),
		})
		if err != nil {
			return err
		}

		switch strings.ToLower(filepath.Ext(exportOut)) {
		case ".csv":
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "cmd: create %s", exportOut)
			}
			defer f.Close()
			if err := export.WriteCSV(f, analyses); err != nil {
				return err
			}
		case ".xlsx":
			if err := export.WriteXLSX(exportOut, analyses); err != nil {
				return err
			}
		default:
			return eris.Errorf("cmd: unsupported export format %q", filepath.Ext(exportOut))
		}

		zap.L().Info("analyses exported", zap.Int("count", len(analyses)), zap.String("file", exportOut))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file, .csv or .xlsx")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "filter by status (complete, rejected)")
	rootCmd.AddCommand(exportCmd)
}
