package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/herzi/mb-audio-engine/sfx"
)

var (
	exportConstants bool
	constantPrefix  string
)

var effectsCmd = &cobra.Command{
	Use:   "effects [EFFECT...]",
	Short: "List the sound effects of a registry",
	Long: `List the sound effects given as files or loaded from the --sfx registry,
with the slot of every variation. --constants prints a Go constant block for
the effect ids instead.`,
	RunE: runEffects,
}

func init() {
	effectsCmd.Flags().BoolVar(&exportConstants, "constants", false, "print Go constants for the effect ids")
	effectsCmd.Flags().StringVar(&constantPrefix, "prefix", "Sfx", "prefix of the exported constant names")
	rootCmd.AddCommand(effectsCmd)
}

func runEffects(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Effects = args
	}
	registry, err := loadRegistry()
	if err != nil {
		return err
	}
	if registry == nil {
		return fmt.Errorf("%w: no effects given (pass files or --sfx)", errUsage)
	}

	out := cmd.OutOrStdout()
	if exportConstants {
		return registry.WriteConstants(out, constantPrefix)
	}

	ids := registry.Ids()
	maxLen := maxIDLen(ids)
	for _, id := range ids {
		e, _ := registry.Get(id)
		fmt.Fprintf(out, "%-*s  volume %.2f", maxLen, id, e.Volume)
		if e.ThrottlingMs > 0 {
			fmt.Fprintf(out, "  throttle %dms", e.ThrottlingMs)
		}
		fmt.Fprintln(out)
		for _, variant := range e.Variations {
			fmt.Fprintf(out, "  %-*s  %s (p=%.2f, volume %.2f)\n",
				maxLen, variant.Slot(), variant.Path, variant.Probability, variant.Volume)
		}
	}
	return nil
}

// maxIDLen returns the length of the longest effect id.
func maxIDLen(ids []sfx.Id) int {
	maxLen := 0
	for _, id := range ids {
		maxLen = max(maxLen, len(id))
	}
	return maxLen
}
