// ClawGuard - delegation guardrails for serial multi-agent runs
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sipeed/clawguard/cmd/clawguard/internal/configcmd"
	"github.com/sipeed/clawguard/cmd/clawguard/internal/profiles"
	"github.com/sipeed/clawguard/cmd/clawguard/internal/version"
	"github.com/sipeed/clawguard/pkg/logger"
)

func main() {
	root := &cobra.Command{
		Use:   "clawguard",
		Short: "Delegation guardrails for serial multi-agent runs",
		Long: "ClawGuard caps what a delegated agent session can do before control\n" +
			"is forced back to the orchestrator: tool calls, wall-clock time,\n" +
			"identical-call repetition, and consecutive failures.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var debug bool
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	root.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if debug {
			logger.SetLevel(logger.DEBUG)
		}
	}

	root.AddCommand(
		profiles.NewProfilesCommand(),
		configcmd.NewConfigCommand(),
		version.NewVersionCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
