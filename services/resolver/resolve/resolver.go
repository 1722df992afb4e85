// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve computes which components of a descriptor set can be
// instantiated. Resolution runs as a monotone fixed-point over the set:
// each pass registers every component whose constructor dependencies are
// already satisfied, and stops once a pass makes no progress. Components
// left over are analyzed into Diagnostics explaining what blocks them.
package resolve

import (
	"context"
	"log/slog"
	"time"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
)

// ResolvePhase indicates which phase of a resolution run is in progress.
type ResolvePhase int

const (
	// ResolvePhaseClassifying indicates supertypes are being partitioned
	// into unique and non-unique.
	ResolvePhaseClassifying ResolvePhase = iota

	// ResolvePhaseFixpoint indicates resolution passes are running.
	ResolvePhaseFixpoint

	// ResolvePhaseDiagnosing indicates diagnostics are being collected
	// for components that never resolved.
	ResolvePhaseDiagnosing
)

// String returns the string representation of the ResolvePhase.
func (p ResolvePhase) String() string {
	switch p {
	case ResolvePhaseClassifying:
		return "classifying"
	case ResolvePhaseFixpoint:
		return "fixpoint"
	case ResolvePhaseDiagnosing:
		return "diagnosing"
	default:
		return "unknown"
	}
}

// ResolveProgress contains progress information during a resolution run.
type ResolveProgress struct {
	// Phase is the current resolution phase.
	Phase ResolvePhase

	// Pass is the 1-based fixpoint pass number (0 outside the fixpoint).
	Pass int

	// Resolved is the number of components resolved so far.
	Resolved int

	// Remaining is the number of components still unresolved.
	Remaining int
}

// ProgressFunc is a callback function for resolution progress updates.
type ProgressFunc func(progress ResolveProgress)

// ResolverOptions configures Resolver behavior.
type ResolverOptions struct {
	// MaxPasses caps the number of fixpoint passes. 0 means no cap
	// beyond the natural bound (the fixpoint needs at most one pass
	// per component).
	MaxPasses int

	// ProgressCallback is called once per completed pass. May be nil.
	ProgressCallback ProgressFunc

	// Logger receives per-pass debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// ResolverOption is a functional option for configuring Resolver.
type ResolverOption func(*ResolverOptions)

// WithMaxPasses caps the number of fixpoint passes. Values above the
// natural bound (one pass per component, plus the final no-progress
// pass) are clamped to it; the cap only ever tightens a run.
func WithMaxPasses(n int) ResolverOption {
	return func(o *ResolverOptions) {
		o.MaxPasses = n
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) ResolverOption {
	return func(o *ResolverOptions) {
		o.ProgressCallback = fn
	}
}

// WithLogger sets the logger for per-pass debug output.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(o *ResolverOptions) {
		o.Logger = logger
	}
}

// ResolveStats contains statistics about a resolution run.
type ResolveStats struct {
	// Components is the number of descriptors in the input set.
	Components int `json:"components"`

	// Resolved is the number of components that reached the registry.
	Resolved int `json:"resolved"`

	// Unresolved is the number of components left after the fixpoint.
	Unresolved int `json:"unresolved"`

	// Passes is the number of fixpoint passes executed, including the
	// final pass that made no progress.
	Passes int `json:"passes"`

	// UniqueSupertypes is the number of uniquely implemented supertypes.
	UniqueSupertypes int `json:"unique_supertypes"`

	// NotUniqueSupertypes is the number of ambiguous supertypes.
	NotUniqueSupertypes int `json:"not_unique_supertypes"`

	// DurationMilli is the run duration in milliseconds.
	DurationMilli int64 `json:"duration_milli"`

	// DurationMicro is the run duration in microseconds.
	DurationMicro int64 `json:"duration_micro"`
}

// Result is the output of one resolution run.
//
// Description:
//
//	The registry maps every resolvable type identifier (a concrete
//	component type, or one of its uniquely implemented supertypes) to
//	the concrete component that satisfies it. Components left in
//	Unresolved after the fixpoint are permanently unresolvable for
//	this descriptor set; Diagnostics explains why, per component.
//
// Thread Safety: Read-only after Resolve returns. Safe to share.
type Result struct {
	// Registry maps type identifier -> concrete component identifier.
	// Non-unique supertypes never appear as keys.
	Registry map[descriptor.TypeID]descriptor.TypeID `json:"registry"`

	// Index is the supertype classification for the input set.
	Index SupertypeIndex `json:"-"`

	// Unresolved lists concrete types that never resolved, in
	// discovery order.
	Unresolved []descriptor.TypeID `json:"unresolved"`

	// Diagnostics holds one entry per unresolved component.
	Diagnostics []Diagnostic `json:"diagnostics"`

	// Incomplete is true when the run was cut short (context cancelled
	// or pass cap reached) before the fixpoint was confirmed.
	Incomplete bool `json:"incomplete"`

	// Stats contains run statistics.
	Stats ResolveStats `json:"stats"`
}

// Resolver computes which components of a descriptor set can be
// constructed, and exposes the lookup table for the ones that can.
//
// The resolver is stateless and can be reused across multiple runs.
// Each Resolve() call operates on its own internal state.
//
// Thread Safety:
//
//	Resolver is safe for concurrent use. Each Resolve() call is an
//	independent run over an immutable descriptor snapshot.
type Resolver struct {
	options ResolverOptions
}

// NewResolver creates a new Resolver with the given options.
//
// Example:
//
//	resolver := NewResolver(
//	    WithMaxPasses(100),
//	    WithLogger(slog.Default()),
//	)
func NewResolver(opts ...ResolverOption) *Resolver {
	options := ResolverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Resolver{options: options}
}

// Resolve runs supertype classification, the resolution fixpoint, and
// diagnostics collection over a descriptor set.
//
// Description:
//
//	The fixpoint starts from an empty registry and repeats passes over
//	the unresolved components. A component is newly resolvable in a
//	pass when any of its constructors has zero parameters or every
//	parameter type is already a registry key. All components found
//	resolvable in the same pass are registered together after the
//	scan, so results within a pass never depend on iteration order.
//	A resolved component registers its concrete type and each of its
//	uniquely implemented supertypes; non-unique supertypes are never
//	registered, and a supertype that is itself a concrete type in the
//	set only ever maps to itself, registered when that component
//	resolves. The run stops at the first pass that makes no progress.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked once per pass; a cancelled
//	      run returns the partial result with Incomplete set.
//	set - Immutable descriptor snapshot. Must not be nil.
//
// Outputs:
//
//	*Result - Registry, classification, unresolved set, diagnostics,
//	          and statistics. Never nil. A nil or empty set yields an
//	          empty result.
//	error - Always nil today; kept in the signature so callers handle
//	        failures uniformly with the rest of the service layer.
//
// Unresolved components are a normal outcome, reported as data in
// Result.Diagnostics, never as an error.
func (r *Resolver) Resolve(ctx context.Context, set *descriptor.Set) (*Result, error) {
	ctx, span := startResolveSpan(ctx, set.Len())
	defer span.End()

	start := time.Now()
	logger := r.options.Logger

	r.reportProgress(ResolveProgress{Phase: ResolvePhaseClassifying, Remaining: set.Len()})
	index := ClassifySupertypes(set)

	result := &Result{
		Registry: make(map[descriptor.TypeID]descriptor.TypeID),
		Index:    index,
	}
	result.Stats.Components = set.Len()
	result.Stats.UniqueSupertypes = len(index.UniqueTypeToComponent)
	result.Stats.NotUniqueSupertypes = len(index.NotUniqueTypes)

	// Discovery order drives every scan; combined with batch
	// registration this keeps runs over the same input identical.
	unresolved := set.All()

	maxPasses := r.options.MaxPasses
	if maxPasses <= 0 || maxPasses > set.Len()+1 {
		// The fixpoint needs at most one pass per component, plus the
		// final no-progress pass.
		maxPasses = set.Len() + 1
	}

	for pass := 1; ; pass++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Resolution cancelled mid-run",
				slog.Int("pass", pass),
				slog.Int("resolved", result.Stats.Resolved),
				slog.Int("remaining", len(unresolved)))
			result.Incomplete = true
			break
		}
		if pass > maxPasses {
			result.Incomplete = true
			break
		}
		result.Stats.Passes = pass

		// Scan: collect this pass's batch without touching the
		// registry, so components found resolvable in the same pass
		// are logically simultaneous.
		var batch []descriptor.Descriptor
		var rest []descriptor.Descriptor
		for _, d := range unresolved {
			if canInstantiate(d, result.Registry) {
				batch = append(batch, d)
			} else {
				rest = append(rest, d)
			}
		}

		if len(batch) == 0 {
			// Fixpoint reached.
			break
		}

		// Register: concrete type plus every uniquely implemented
		// supertype. Registry keys are never overwritten: a unique
		// supertype has exactly one implementor, concrete types are
		// unique by Set construction, and a supertype that is itself
		// a concrete type in the set (a registered superclass) is
		// skipped here — that key belongs to the superclass's own
		// resolution and must keep mapping to itself.
		for _, d := range batch {
			result.Registry[d.ConcreteType] = d.ConcreteType
			for st := range d.Supertypes {
				if set.Contains(st) {
					continue
				}
				if _, unique := index.UniqueTypeToComponent[st]; unique {
					result.Registry[st] = d.ConcreteType
				}
			}
		}
		unresolved = rest
		result.Stats.Resolved += len(batch)

		logger.Debug("Resolution pass complete",
			slog.Int("pass", pass),
			slog.Int("newly_resolved", len(batch)),
			slog.Int("remaining", len(unresolved)))
		r.reportProgress(ResolveProgress{
			Phase:     ResolvePhaseFixpoint,
			Pass:      pass,
			Resolved:  result.Stats.Resolved,
			Remaining: len(unresolved),
		})
	}

	r.reportProgress(ResolveProgress{
		Phase:     ResolvePhaseDiagnosing,
		Resolved:  result.Stats.Resolved,
		Remaining: len(unresolved),
	})
	for _, d := range unresolved {
		result.Unresolved = append(result.Unresolved, d.ConcreteType)
	}
	result.Stats.Unresolved = len(result.Unresolved)
	result.Diagnostics = Diagnose(unresolved, result.Registry, index.NotUniqueTypes)

	duration := time.Since(start)
	result.Stats.DurationMilli = duration.Milliseconds()
	result.Stats.DurationMicro = duration.Microseconds()

	setResolveSpanResult(span, result.Stats.Resolved, result.Stats.Unresolved, result.Stats.Passes, result.Incomplete)
	recordResolveMetrics(ctx, duration, result.Stats.Resolved, result.Stats.Unresolved, !result.Incomplete)

	if result.Stats.Unresolved > 0 {
		logger.Info("Resolution finished with unresolved components",
			slog.Int("components", result.Stats.Components),
			slog.Int("resolved", result.Stats.Resolved),
			slog.Int("unresolved", result.Stats.Unresolved),
			slog.Int("passes", result.Stats.Passes))
	}

	return result, nil
}

// canInstantiate reports whether any of the descriptor's constructors
// is satisfiable against the current registry: zero parameters, or
// every parameter type already a registry key.
//
// The existence of one satisfiable constructor suffices for
// resolvability; which constructor a container would actually invoke
// is an instantiation concern outside this resolver (first satisfiable
// in declaration order, should it ever matter).
func canInstantiate(d descriptor.Descriptor, registry map[descriptor.TypeID]descriptor.TypeID) bool {
	for _, ctor := range d.Constructors {
		satisfied := true
		for _, param := range ctor {
			if _, ok := registry[param]; !ok {
				satisfied = false
				break
			}
		}
		if satisfied {
			return true
		}
	}
	return false
}

// reportProgress invokes the progress callback if one is configured.
func (r *Resolver) reportProgress(p ResolveProgress) {
	if r.options.ProgressCallback != nil {
		r.options.ProgressCallback(p)
	}
}
