package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	billingUser    string
	packCredits    int
	subscribePlan  string
	subscribeCount int
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Show remaining quota and credits",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ledger, err := env.ledger(cmd.Context(), billingUser)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"ledger": ledger,
			"quota":  ledger.CanUse(timeNow()),
		})
	},
}

var billingPackCmd = &cobra.Command{
	Use:   "pack",
	Short: "Add a prepaid credit pack",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		ledger, err := env.ledger(ctx, billingUser)
		if err != nil {
			return err
		}
		if err := ledger.AddPack(packCredits); err != nil {
			return err
		}
		if err := env.saveLedger(ctx, billingUser, ledger); err != nil {
			return err
		}
		zap.L().Info("credit pack added",
			zap.String("user", billingUser),
			zap.Int("credits", packCredits),
			zap.Int("pack_balance", ledger.Pack))
		return nil
	},
}

var billingSubscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Start or extend a monthly subscription",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		ledger, err := env.ledger(ctx, billingUser)
		if err != nil {
			return err
		}
		if err := ledger.Subscribe(subscribePlan, timeNow(), subscribeCount); err != nil {
			return err
		}
		if err := env.saveLedger(ctx, billingUser, ledger); err != nil {
			return err
		}
		zap.L().Info("subscription active",
			zap.String("user", billingUser),
			zap.String("plan", subscribePlan),
			zap.Time("until", ledger.SubUntil))
		return nil
	},
}

func init() {
	billingCmd.PersistentFlags().StringVar(&billingUser, "user", defaultUser, "billing account")
	billingPackCmd.Flags().IntVar(&packCredits, "credits", 100, "credits in the pack")
	billingSubscribeCmd.Flags().StringVar(&subscribePlan, "plan", "monthly", "subscription plan")
	billingSubscribeCmd.Flags().IntVar(&subscribeCount, "months", 1, "number of months")
	billingCmd.AddCommand(billingPackCmd, billingSubscribeCmd)
	rootCmd.AddCommand(billingCmd)
}
