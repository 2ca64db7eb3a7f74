package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliscan/aliscan-cli/internal/track"
)

var trackNoCache bool

var trackCmd = &cobra.Command{
	Use:   "track <number>",
	Short: "Track a package by its tracking number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number := args[0]
		if err := track.ValidateNumber(number); err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		if !trackNoCache {
			if cached, err := env.store.GetCachedTracking(ctx, number); err == nil && cached != nil {
				zap.L().Debug("tracking served from cache", zap.String("number", number))
				return printJSON(cached)
			}
		}

		t, err := env.tracker.Track(ctx, number)
		if err != nil {
			return err
		}
		if err := env.store.SetCachedTracking(ctx, t, env.trackingTTL()); err != nil {
			zap.L().Warn("tracking not cached", zap.Error(err))
		}
		return printJSON(t)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	trackCmd.Flags().BoolVar(&trackNoCache, "no-cache", false, "skip the local tracking cache")
	rootCmd.AddCommand(trackCmd)
}
