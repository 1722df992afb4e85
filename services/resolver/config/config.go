// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads resolver service configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed resolver_defaults.yaml
var defaultResolverConfigYAML []byte

// WatchConfig configures descriptor file watching.
type WatchConfig struct {
	// DebounceMillis is how long to wait after a file change before
	// re-running resolution, coalescing editor save bursts.
	DebounceMillis int `yaml:"debounce_millis"`
}

// PlanCacheConfig configures resolution plan persistence.
type PlanCacheConfig struct {
	// Enabled controls whether plans are persisted at all.
	Enabled bool `yaml:"enabled"`

	// Dir is the BadgerDB directory. Empty means the standard
	// location (RIGGING_PLAN_CACHE_DIR, else ~/.rigging/cache/plans).
	Dir string `yaml:"dir"`
}

// ResolverConfig holds the resolver service configuration.
//
// Description:
//
//	Loaded from rigging.config.yaml (all fields optional), overlaid on
//	the embedded defaults. A missing config file is not an error
//	(zero-config works out of the box).
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type ResolverConfig struct {
	// MaxComponents caps the descriptor set size accepted per request.
	MaxComponents int `yaml:"max_components"`

	// MaxCachedRuns caps completed runs kept in memory.
	MaxCachedRuns int `yaml:"max_cached_runs"`

	// MaxPasses caps fixpoint passes per run. 0 means the natural
	// bound (one pass per component, plus the no-progress pass).
	MaxPasses int `yaml:"max_passes"`

	// Watch configures descriptor file watching.
	Watch WatchConfig `yaml:"watch"`

	// PlanCache configures plan persistence.
	PlanCache PlanCacheConfig `yaml:"plan_cache"`
}

// Default returns the embedded default configuration.
func Default() ResolverConfig {
	var cfg ResolverConfig
	// The embedded defaults are compiled in and always valid.
	if err := yaml.Unmarshal(defaultResolverConfigYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load reads rigging.config.yaml from the given path, overlaying the
// embedded defaults.
//
// Inputs:
//
//	path - Path to the config file. May be empty.
//
// Outputs:
//
//	ResolverConfig - The merged config; defaults if the file is missing.
//	error - Non-nil only if the file exists but has invalid YAML.
func Load(path string) (ResolverConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
