package cli

import (
	"github.com/spf13/cobra"
)

var (
	analyzeShopID string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a single analysis pass and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Analyze(cmd.Context(), analyzeShopID)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeShopID, "shop", "", "Analyze only the given shop ID (defaults to all shops)")
}
