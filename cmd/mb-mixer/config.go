package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/herzi/mb-audio-engine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), config.DefaultConfigTemplate())
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
