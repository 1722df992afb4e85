// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver exposes component resolution as an HTTP service:
// descriptor sets in, resolution plans and lookup tables out.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
	"github.com/AleutianAI/rigging/services/resolver/index"
	"github.com/AleutianAI/rigging/services/resolver/resolve"
	badgerstore "github.com/AleutianAI/rigging/services/resolver/storage/badger"
)

// Default service configuration values.
const (
	// DefaultMaxComponents is the default cap on descriptor set size
	// accepted per request.
	DefaultMaxComponents = 10_000

	// DefaultMaxCachedRuns is the default number of completed runs kept
	// in memory for lookup and diagnostics queries.
	DefaultMaxCachedRuns = 16
)

// ServiceConfig configures the resolver service.
type ServiceConfig struct {
	// MaxComponents caps the descriptor set size accepted per request.
	MaxComponents int

	// MaxCachedRuns caps how many completed runs are kept in memory.
	// The oldest run is evicted when the cap is exceeded.
	MaxCachedRuns int

	// MaxPasses caps fixpoint passes per run. 0 means the natural bound.
	MaxPasses int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxComponents: DefaultMaxComponents,
		MaxCachedRuns: DefaultMaxCachedRuns,
	}
}

// CachedRun is a completed resolution run kept for queries.
type CachedRun struct {
	// RunID identifies the run.
	RunID string

	// Set is the input descriptor snapshot.
	Set *descriptor.Set

	// Result is the resolution result.
	Result *resolve.Result

	// Registry is the container-facing lookup table for the run.
	Registry *index.Registry

	// PlanID is the persisted plan ID, if the run was persisted.
	PlanID string
}

// Service owns resolution runs and their cached results.
//
// Description:
//
//	Each Run call is an independent resolution over an immutable
//	descriptor snapshot. Completed runs are cached (bounded FIFO) so
//	lookup and diagnostics endpoints can answer questions about them.
//	When a plan store is attached, runs are additionally persisted as
//	resolution plans.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	config   ServiceConfig
	resolver *resolve.Resolver
	plans    *badgerstore.PlanManager

	mu       sync.RWMutex
	runs     map[string]*CachedRun
	runOrder []string
}

// NewService creates a resolver service with the given config.
func NewService(cfg ServiceConfig) *Service {
	if cfg.MaxComponents <= 0 {
		cfg.MaxComponents = DefaultMaxComponents
	}
	if cfg.MaxCachedRuns <= 0 {
		cfg.MaxCachedRuns = DefaultMaxCachedRuns
	}
	opts := []resolve.ResolverOption{}
	if cfg.MaxPasses > 0 {
		opts = append(opts, resolve.WithMaxPasses(cfg.MaxPasses))
	}
	return &Service{
		config:   cfg,
		resolver: resolve.NewResolver(opts...),
		runs:     make(map[string]*CachedRun),
	}
}

// SetPlanManager attaches an optional plan store.
//
// Pass nil to disable persistence (e.g. when the cache directory is
// unavailable); the service keeps working in in-memory-only mode.
func (s *Service) SetPlanManager(m *badgerstore.PlanManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = m
}

// Run resolves a descriptor set, caches the completed run, and
// persists it when a plan store is attached.
//
// Inputs:
//
//	ctx - Context for cancellation, propagated into the fixpoint.
//	set - Validated descriptor snapshot.
//	label - Optional label recorded on the persisted plan.
//	persist - Whether to persist the plan (ignored without a store).
//
// Outputs:
//
//	*CachedRun - The completed run. Never nil on nil error.
//	error - Set-size violation, resolution failure, or persistence
//	        failure. Unresolved components are NOT an error; they are
//	        data on the run's Result.
func (s *Service) Run(ctx context.Context, set *descriptor.Set, label string, persist bool) (*CachedRun, error) {
	if set.Len() > s.config.MaxComponents {
		return nil, fmt.Errorf("resolver: descriptor set has %d components, limit is %d", set.Len(), s.config.MaxComponents)
	}

	result, err := s.resolver.Resolve(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("resolver: resolve: %w", err)
	}
	registry, err := index.NewFromResult(result)
	if err != nil {
		return nil, fmt.Errorf("resolver: building registry: %w", err)
	}

	run := &CachedRun{
		RunID:    uuid.NewString(),
		Set:      set,
		Result:   result,
		Registry: registry,
	}

	// Persist before publishing the run so PlanID is set before any
	// other goroutine can observe it.
	if persist {
		if plans := s.PlanManager(); plans != nil {
			meta, err := plans.Save(ctx, set, result, label)
			if err != nil {
				// The run itself succeeded; persistence is best-effort.
				slog.Warn("Failed to persist resolution plan",
					slog.String("run_id", run.RunID),
					slog.String("error", err.Error()))
			} else {
				run.PlanID = meta.PlanID
			}
		}
	}

	s.mu.Lock()
	s.runs[run.RunID] = run
	s.runOrder = append(s.runOrder, run.RunID)
	for len(s.runOrder) > s.config.MaxCachedRuns {
		evicted := s.runOrder[0]
		s.runOrder = s.runOrder[1:]
		delete(s.runs, evicted)
	}
	s.mu.Unlock()

	slog.Info("Resolution run complete",
		slog.String("run_id", run.RunID),
		slog.Int("components", result.Stats.Components),
		slog.Int("resolved", result.Stats.Resolved),
		slog.Int("unresolved", result.Stats.Unresolved),
		slog.Int("passes", result.Stats.Passes))
	return run, nil
}

// GetRun returns a cached run by ID.
func (s *Service) GetRun(runID string) (*CachedRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

// LatestRun returns the most recently completed cached run.
func (s *Service) LatestRun() (*CachedRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runOrder) == 0 {
		return nil, false
	}
	run, ok := s.runs[s.runOrder[len(s.runOrder)-1]]
	return run, ok
}

// PlanManager returns the attached plan store, or nil.
func (s *Service) PlanManager() *badgerstore.PlanManager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plans
}
