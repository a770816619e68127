package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fulfillment",
	Short: "Manufacturing order fulfillment service",
	Long:  `Order confirmation, raw-material inventory, work orders and delivery tracking for manufacturing orders`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
