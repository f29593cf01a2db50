package profiles

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sipeed/clawguard/pkg/config"
	"github.com/sipeed/clawguard/pkg/guard"
)

// NewProfilesCommand creates the profiles subcommand. It resolves an agent
// name through the same canonicalization and layering the guard uses at
// runtime, so operators can see the thresholds a session would get.
func NewProfilesCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "profiles <agent>",
		Aliases: []string{"p"},
		Short:   "Show the effective guardrail profile for an agent name",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = config.DefaultPath()
			}
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			resolver := guard.NewResolver(&cfg.Guardrails)
			canonical, prof := resolver.Resolve(args[0])

			if canonical != args[0] {
				fmt.Printf("Agent:                  %s (from %q)\n", canonical, args[0])
			} else {
				fmt.Printf("Agent:                  %s\n", canonical)
			}
			fmt.Printf("Max tool calls:         %d\n", prof.MaxToolCalls)
			fmt.Printf("Max duration (min):     %g\n", prof.MaxDurationMinutes)
			fmt.Printf("Max repetition:         %d\n", prof.MaxRepetition)
			fmt.Printf("Max consecutive errors: %d\n", prof.MaxConsecutiveErrors)
			fmt.Printf("Warning fraction:       %g\n", prof.WarningFraction)
			fmt.Printf("Idle timeout:           %s\n", prof.IdleTimeout)
			if !cfg.Guardrails.Enabled {
				fmt.Println("\nNote: guardrails are disabled in this configuration.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path")
	return cmd
}
