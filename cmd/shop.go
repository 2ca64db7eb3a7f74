package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aliscan/aliscan-cli/internal/shoplink"
)

var (
	shopName    string
	shopCountry string
)

var shopCmd = &cobra.Command{
	Use:   "shop <query...>",
	Short: "Build a marketplace search link for a product query",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		if query == "" {
			return eris.New("cmd: a search query is required")
		}
		return printJSON(map[string]any{
			"url":   shoplink.Build(shopName, shopCountry, query),
			"shops": shoplink.Known(),
		})
	},
}

func init() {
	shopCmd.Flags().StringVar(&shopName, "shop", "", "marketplace name (aliexpress, amazon, jumia, ebay, cdiscount, alibaba)")
	shopCmd.Flags().StringVar(&shopCountry, "country", "", "country or language variant of the marketplace")
	rootCmd.AddCommand(shopCmd)
}
