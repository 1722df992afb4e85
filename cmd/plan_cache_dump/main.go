// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// plan_cache_dump inspects the Rigging resolver's plan cache.
//
// The plan cache persists resolution plans (registry + diagnostics snapshots)
// in BadgerDB between service restarts. This tool opens the cache read-only
// and prints a human-readable summary: plan IDs, descriptor set digests,
// labels, resolution counts, and payload sizes.
//
// Usage:
//
//	plan_cache_dump [--path /path/to/plan/cache]
//
// If --path is not given, reads RIGGING_PLAN_CACHE_DIR from the environment,
// falling back to ~/.rigging/cache/plans/.
//
// Exit codes:
//
//	0 — success (including "empty cache" which prints a message and exits 0)
//	1 — error opening or reading the database
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// planMetaSuffix and planKeyPrefix must match plans.go exactly.
const (
	planKeyPrefix  = "resolver:plan:"
	planMetaSuffix = ":meta"
)

// planMeta mirrors badger.PlanMetadata's JSON shape; declared locally so
// this tool stays decoupled from the storage package's Go types.
type planMeta struct {
	PlanID         string `json:"plan_id"`
	SetDigest      string `json:"set_digest"`
	Label          string `json:"label,omitempty"`
	CreatedAtMilli int64  `json:"created_at_milli"`
	Components     int    `json:"components"`
	Resolved       int    `json:"resolved"`
	Unresolved     int    `json:"unresolved"`
	SchemaVersion  string `json:"schema_version"`
	CompressedSize int64  `json:"compressed_size"`
	ContentHash    string `json:"content_hash"`
}

func main() {
	pathFlag := flag.String("path", "", "Path to plan cache BadgerDB directory (overrides RIGGING_PLAN_CACHE_DIR env var)")
	flag.Parse()

	dbPath := *pathFlag
	if dbPath == "" {
		dbPath = os.Getenv("RIGGING_PLAN_CACHE_DIR")
	}
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fatalf("cannot resolve home directory: %v", err)
		}
		dbPath = filepath.Join(home, ".rigging", "cache", "plans")
	}

	fmt.Printf("Plan cache path: %s\n", dbPath)

	// Check existence before trying to open — gives a cleaner error message
	// than BadgerDB's "no such file or directory" buried in a long error.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("Cache directory does not exist. No resolution plans have been persisted yet.")
		fmt.Println("Run riggingd with the plan cache enabled, or `rigging resolve` with persistence, to populate it.")
		os.Exit(0)
	}

	opts := dgbadger.DefaultOptions(dbPath).
		WithLogger(nil). // suppress BadgerDB internal logs
		WithReadOnly(true)

	db, err := dgbadger.Open(opts)
	if err != nil {
		fatalf("open BadgerDB at %s: %v", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	type entry struct {
		key       string
		meta      planMeta
		decodeErr error
	}

	var entries []entry

	err = db.View(func(txn *dgbadger.Txn) error {
		iterOpts := dgbadger.DefaultIteratorOptions
		iterOpts.PrefetchValues = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		prefix := []byte(planKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if !strings.HasSuffix(key, planMetaSuffix) {
				continue
			}

			var e entry
			e.key = key

			raw, err := item.ValueCopy(nil)
			if err != nil {
				e.decodeErr = fmt.Errorf("copy value: %w", err)
				entries = append(entries, e)
				continue
			}
			if err := json.Unmarshal(raw, &e.meta); err != nil {
				e.decodeErr = fmt.Errorf("json decode: %w", err)
			}

			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		fatalf("read BadgerDB: %v", err)
	}

	if len(entries) == 0 {
		fmt.Println("\nNo resolution plans found.")
		fmt.Println("The cache directory exists but holds no plan entries yet.")
		os.Exit(0)
	}

	// Newest first.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].meta.CreatedAtMilli > entries[j].meta.CreatedAtMilli
	})

	fmt.Printf("\nFound %d plan%s:\n", len(entries), plural(len(entries), "", "s"))
	fmt.Println(strings.Repeat("─", 80))

	for i, e := range entries {
		fmt.Printf("\n[%d] Key:        %s\n", i+1, e.key)

		if e.decodeErr != nil {
			fmt.Printf("    DECODE ERROR: %v\n", e.decodeErr)
			continue
		}

		m := e.meta
		fmt.Printf("    Plan ID:    %s\n", m.PlanID)
		fmt.Printf("    Set digest: %s\n", m.SetDigest)
		if m.Label != "" {
			fmt.Printf("    Label:      %s\n", m.Label)
		}
		created := time.UnixMilli(m.CreatedAtMilli).UTC()
		fmt.Printf("    Created:    %s (%s ago)\n",
			created.Format("2006-01-02 15:04:05 MST"),
			time.Since(created).Round(time.Second),
		)
		fmt.Printf("    Components: %d total, %d resolved, %d unresolved\n",
			m.Components, m.Resolved, m.Unresolved)
		fmt.Printf("    Schema:     v%s\n", m.SchemaVersion)
		fmt.Printf("    Payload:    %s, sha256 %s\n", formatBytes(int(m.CompressedSize)), shortHash(m.ContentHash))
	}

	fmt.Printf("\n%s\n", strings.Repeat("─", 80))
	fmt.Printf("Summary: %d plan%s, cache path: %s\n",
		len(entries), plural(len(entries), "", "s"), dbPath)
}

// shortHash truncates a hex digest for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12] + "…"
	}
	return h
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(n int) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.1f MB (%d bytes)", float64(n)/1024/1024, n)
	case n >= 1024:
		return fmt.Sprintf("%.1f KB (%d bytes)", float64(n)/1024, n)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// plural returns singular or plural suffix based on count.
func plural(n int, singular, pluralSuffix string) string {
	if n == 1 {
		return singular
	}
	return pluralSuffix
}

// fatalf prints to stderr and exits 1.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "plan_cache_dump: "+format+"\n", args...)
	os.Exit(1)
}
