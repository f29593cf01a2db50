package configcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/clawguard/pkg/config"
)

// NewConfigCommand creates the config subcommand group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the guard configuration",
	}
	cmd.AddCommand(newCheckCommand(), newInitCommand())
	return cmd
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a configuration file and print the effective sections",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}

			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				fmt.Printf("%s does not exist, defaults apply\n", path)
			} else {
				fmt.Printf("%s OK\n", path)
			}
			fmt.Printf("  guardrails:  enabled=%v, %d agent override(s)\n",
				cfg.Guardrails.Enabled, len(cfg.Guardrails.Agents))
			fmt.Printf("  delegation:  stale_after=%dms, dispatch_tools=%v\n",
				cfg.Delegation.StaleAfterMs, cfg.Delegation.DispatchTools)
			fmt.Printf("  rate_limits: enabled=%v, %d/min burst %d\n",
				cfg.RateLimits.Enabled, cfg.RateLimits.ToolExecutionsPerMinute, cfg.RateLimits.Burst)
			fmt.Printf("  audit:       enabled=%v\n", cfg.Audit.Enabled)
			return nil
		},
	}
}

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
