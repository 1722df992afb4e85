// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command rigging is the CLI for the Rigging component resolver.
//
// Usage:
//
//	rigging resolve components.yaml
//	rigging resolve components.yaml --json
//	rigging resolve components.yaml --strict
//	rigging diagnose components.yaml
//	rigging watch components.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// jsonOutput and strictMode hold flag values shared by subcommands.
var (
	jsonOutput bool
	strictMode bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rigging",
		Short: "Component instantiability resolver",
		Long: "Rigging resolves which registered components can be constructed,\n" +
			"in what order, and which unique supertype each one may be looked up by.",
		SilenceUsage: true,
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve <descriptor-file>",
		Short: "Resolve a descriptor set and print the plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolveCommand,
	}
	resolveCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	resolveCmd.Flags().BoolVar(&strictMode, "strict", false, "Exit non-zero when any component is unresolved")

	diagnoseCmd := &cobra.Command{
		Use:   "diagnose <descriptor-file>",
		Short: "Print diagnostics for unresolved components only",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiagnoseCommand,
	}

	watchCmd := &cobra.Command{
		Use:   "watch <descriptor-file>",
		Short: "Re-resolve whenever the descriptor file changes",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatchCommand,
	}

	rootCmd.AddCommand(resolveCmd, diagnoseCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
