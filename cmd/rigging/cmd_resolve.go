// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
	"github.com/AleutianAI/rigging/services/resolver/resolve"
)

// runResolution loads a descriptor file and runs one resolution.
func runResolution(path string) (*resolve.Result, error) {
	set, err := descriptor.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return resolve.NewResolver().Resolve(context.Background(), set)
}

func runResolveCommand(_ *cobra.Command, args []string) error {
	result, err := runResolution(args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		printResult(result)
	}

	if strictMode && result.Stats.Unresolved > 0 {
		return fmt.Errorf("%d component(s) unresolved", result.Stats.Unresolved)
	}
	return nil
}

func runDiagnoseCommand(_ *cobra.Command, args []string) error {
	result, err := runResolution(args[0])
	if err != nil {
		return err
	}

	if len(result.Diagnostics) == 0 {
		fmt.Println("All components resolved.")
		return nil
	}
	for _, d := range result.Diagnostics {
		fmt.Println(d.String())
	}
	return fmt.Errorf("%d component(s) unresolved", len(result.Diagnostics))
}

// printResult renders a human-readable resolution summary.
func printResult(result *resolve.Result) {
	fmt.Printf("Components: %d  Resolved: %d  Unresolved: %d  Passes: %d  (%dµs)\n",
		result.Stats.Components,
		result.Stats.Resolved,
		result.Stats.Unresolved,
		result.Stats.Passes,
		result.Stats.DurationMicro,
	)

	if len(result.Registry) > 0 {
		fmt.Println("\nRegistry:")
		keys := make([]descriptor.TypeID, 0, len(result.Registry))
		for k := range result.Registry {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, k := range keys {
			v := result.Registry[k]
			if k == v {
				fmt.Printf("  %s\n", k)
			} else {
				fmt.Printf("  %s -> %s\n", k, v)
			}
		}
	}

	if notUnique := result.Index.NotUniqueList(); len(notUnique) > 0 {
		fmt.Println("\nAmbiguous supertypes (excluded from lookup):")
		for _, t := range notUnique {
			impls := result.Index.Implementors[t]
			fmt.Printf("  %s (%d implementors)\n", t, len(impls))
		}
	}

	if len(result.Diagnostics) > 0 {
		fmt.Println("\nUnresolved:")
		for _, d := range result.Diagnostics {
			fmt.Printf("  %s\n", d.String())
		}
	}
}
