package main

import (
	"github.com/spf13/cobra"

	"github.com/aliscan/aliscan-cli/internal/cost"
)

var (
	costUnitPrice float64
	costQuantity  int
	costShipping  float64
	costCustoms   float64
	costFees      float64

	marginUnitCost float64
	marginResale   float64
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Landed cost and resale margin calculator",
}

var costLandedCmd = &cobra.Command{
	Use:   "landed",
	Short: "Compute the landed cost of a purchase",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cost.Inputs{
			UnitPrice: costUnitPrice,
			Quantity:  costQuantity,
			Shipping:  costShipping,
		}
		if cmd.Flags().Changed("customs-pct") {
			in.CustomsPct = &costCustoms
		}
		if cmd.Flags().Changed("fees-pct") {
			in.FeesPct = &costFees
		}

		breakdown, err := cost.NewCalculator(cfg.Cost).Landed(in)
		if err != nil {
			return err
		}
		return printJSON(breakdown)
	},
}

var costMarginCmd = &cobra.Command{
	Use:   "margin",
	Short: "Compute the resale margin for one unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		margin, err := cost.NewCalculator(cfg.Cost).ResaleMargin(marginUnitCost, marginResale)
		if err != nil {
			return err
		}
		return printJSON(margin)
	},
}

func init() {
	costLandedCmd.Flags().Float64Var(&costUnitPrice, "unit-price", 0, "price per unit")
	costLandedCmd.Flags().IntVar(&costQuantity, "quantity", 1, "number of units")
	costLandedCmd.Flags().Float64Var(&costShipping, "shipping", 0, "shipping cost for the order")
	costLandedCmd.Flags().Float64Var(&costCustoms, "customs-pct", 0, "customs and taxes rate, overrides the configured default")
	costLandedCmd.Flags().Float64Var(&costFees, "fees-pct", 0, "payment and platform fees rate, overrides the configured default")
	costMarginCmd.Flags().Float64Var(&marginUnitCost, "unit-cost", 0, "landed cost per unit")
	costMarginCmd.Flags().Float64Var(&marginResale, "resale-price", 0, "intended resale price per unit")
	costCmd.AddCommand(costLandedCmd, costMarginCmd)
	rootCmd.AddCommand(costCmd)
}
