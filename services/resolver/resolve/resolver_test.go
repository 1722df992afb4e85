// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"testing"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
)

func TestResolver_EmptySet(t *testing.T) {
	resolver := NewResolver()
	result, err := resolver.Resolve(context.Background(), testSet(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Registry) != 0 {
		t.Errorf("expected empty registry, got %d entries", len(result.Registry))
	}
	if len(result.Unresolved) != 0 {
		t.Errorf("expected no unresolved components, got %v", result.Unresolved)
	}
	if result.Incomplete {
		t.Error("expected Incomplete=false for empty set")
	}
}

// Two implementors of one interface: both resolve, the interface is
// excluded from the registry.
func TestResolver_AmbiguousInterface(t *testing.T) {
	set := testSet(t,
		testDescriptor("ImplA", []string{"Interface1"}, []string{}),
		testDescriptor("ImplB", []string{"Interface1"}, []string{}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Index.IsNotUnique("Interface1") {
		t.Error("expected Interface1 in NotUniqueTypes")
	}
	if got, ok := result.Registry["ImplA"]; !ok || got != "ImplA" {
		t.Errorf("expected ImplA -> ImplA, got %q (present=%v)", got, ok)
	}
	if got, ok := result.Registry["ImplB"]; !ok || got != "ImplB" {
		t.Errorf("expected ImplB -> ImplB, got %q (present=%v)", got, ok)
	}
	if _, ok := result.Registry["Interface1"]; ok {
		t.Error("Interface1 must not be a registry key")
	}
	if len(result.Unresolved) != 0 {
		t.Errorf("expected no unresolved components, got %v", result.Unresolved)
	}
}

// A chain resolves over two passes: DepY in pass 1, ServiceX in pass 2.
func TestResolver_DependencyChain(t *testing.T) {
	set := testSet(t,
		testDescriptor("ServiceX", nil, []string{"DepY"}),
		testDescriptor("DepY", nil, []string{}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Unresolved) != 0 {
		t.Errorf("expected no unresolved components, got %v", result.Unresolved)
	}
	// Two productive passes plus the final no-progress pass.
	if result.Stats.Passes != 3 {
		t.Errorf("expected 3 passes, got %d", result.Stats.Passes)
	}
	if got := result.Registry["ServiceX"]; got != "ServiceX" {
		t.Errorf("expected ServiceX resolvable, got %q", got)
	}
}

// A dependency on a never-discovered type is a hard blocker.
func TestResolver_MissingDependency(t *testing.T) {
	set := testSet(t,
		testDescriptor("ServiceZ", nil, []string{"MissingType"}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Unresolved) != 1 || result.Unresolved[0] != "ServiceZ" {
		t.Fatalf("expected ServiceZ unresolved, got %v", result.Unresolved)
	}
	if len(result.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(result.Diagnostics))
	}
	diag := result.Diagnostics[0]
	if diag.Recoverable {
		t.Error("missing dependency must not be marked recoverable")
	}
	if len(diag.Constructors) != 1 || len(diag.Constructors[0].Blockers) != 1 || diag.Constructors[0].Blockers[0] != "MissingType" {
		t.Errorf("expected MissingType as hard blocker, got %+v", diag.Constructors)
	}
}

// Depending on an ambiguous interface is recoverable: the component
// could resolve after disambiguation.
func TestResolver_AmbiguousDependency(t *testing.T) {
	set := testSet(t,
		testDescriptor("ImplA", []string{"Interface1"}, []string{}),
		testDescriptor("ImplB", []string{"Interface1"}, []string{}),
		testDescriptor("ServiceW", nil, []string{"Interface1"}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Unresolved) != 1 || result.Unresolved[0] != "ServiceW" {
		t.Fatalf("expected ServiceW unresolved, got %v", result.Unresolved)
	}
	diag := result.Diagnostics[0]
	if !diag.Recoverable {
		t.Fatal("expected ServiceW marked recoverable")
	}
	if len(diag.ConflictingTypes) != 1 || diag.ConflictingTypes[0] != "Interface1" {
		t.Errorf("expected ConflictingTypes=[Interface1], got %v", diag.ConflictingTypes)
	}
}

// A two-cycle with no zero-arg constructor makes no progress at all.
func TestResolver_CircularDependency(t *testing.T) {
	set := testSet(t,
		testDescriptor("A", nil, []string{"B"}),
		testDescriptor("B", nil, []string{"A"}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Registry) != 0 {
		t.Errorf("expected empty registry, got %v", result.Registry)
	}
	if len(result.Unresolved) != 2 {
		t.Fatalf("expected A and B unresolved, got %v", result.Unresolved)
	}
	if result.Stats.Passes != 1 {
		t.Errorf("expected a single no-progress pass, got %d", result.Stats.Passes)
	}
	for _, diag := range result.Diagnostics {
		if diag.Recoverable {
			t.Errorf("component %s must not be recoverable", diag.Component)
		}
		if len(diag.Constructors[0].Blockers) != 1 {
			t.Errorf("component %s: expected exactly one hard blocker, got %v", diag.Component, diag.Constructors[0].Blockers)
		}
	}
}

// An acyclic, fully covered dependency graph resolves completely.
func TestResolver_AcyclicCompleteness(t *testing.T) {
	set := testSet(t,
		testDescriptor("App", nil, []string{"Web", "Store"}),
		testDescriptor("Web", []string{"Server"}, []string{"Store", "Clock"}),
		testDescriptor("Store", []string{"Repository"}, []string{"Clock"}),
		testDescriptor("Clock", nil, []string{}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Unresolved) != 0 {
		t.Fatalf("expected full resolution, unresolved: %v", result.Unresolved)
	}
	for _, typ := range set.Types() {
		if got, ok := result.Registry[typ]; !ok || got != typ {
			t.Errorf("expected %s -> %s in registry, got %q (present=%v)", typ, typ, got, ok)
		}
	}
	// Unique supertypes resolve to their sole implementor.
	if got := result.Registry["Server"]; got != "Web" {
		t.Errorf("expected Server -> Web, got %q", got)
	}
	if got := result.Registry["Repository"]; got != "Store" {
		t.Errorf("expected Repository -> Store, got %q", got)
	}
}

// Soundness: every registered component replays canInstantiate against
// the final registry.
func TestResolver_Soundness(t *testing.T) {
	set := testSet(t,
		testDescriptor("A", nil, []string{"B"}),
		testDescriptor("B", []string{"IB"}, []string{}),
		testDescriptor("C", nil, []string{"IB"}),
		testDescriptor("D", nil, []string{"Missing"}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[descriptor.TypeID]struct{})
	for _, concrete := range result.Registry {
		if _, done := seen[concrete]; done {
			continue
		}
		seen[concrete] = struct{}{}
		d, ok := set.Get(concrete)
		if !ok {
			t.Fatalf("registry value %q is not a discovered component", concrete)
		}
		if !canInstantiate(d, result.Registry) {
			t.Errorf("registered component %q fails canInstantiate replay", concrete)
		}
	}
}

// Idempotence: scanning the unresolved remainder against the final
// registry yields nothing new.
func TestResolver_FixpointIdempotence(t *testing.T) {
	set := testSet(t,
		testDescriptor("A", nil, []string{"B"}),
		testDescriptor("B", nil, []string{}),
		testDescriptor("X", nil, []string{"Y"}),
		testDescriptor("Y", nil, []string{"X"}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, typ := range result.Unresolved {
		d, _ := set.Get(typ)
		if canInstantiate(d, result.Registry) {
			t.Errorf("unresolved component %q is instantiable against the final registry", typ)
		}
	}
}

// Ambiguity exclusion: non-unique supertypes never appear as keys.
func TestResolver_AmbiguityExclusion(t *testing.T) {
	set := testSet(t,
		testDescriptor("ImplA", []string{"Interface1", "Base"}, []string{}),
		testDescriptor("ImplB", []string{"Interface1"}, []string{}),
		testDescriptor("ImplC", []string{"Base"}, []string{}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for nu := range result.Index.NotUniqueTypes {
		if _, ok := result.Registry[nu]; ok {
			t.Errorf("non-unique supertype %q is a registry key", nu)
		}
	}
}

// A concrete type that doubles as another component's supertype (a
// registered superclass) keeps its own registry entry: supertype
// registration never overwrites a concrete key, regardless of which
// component resolves first.
func TestResolver_ConcreteSupertypeKeepsOwnEntry(t *testing.T) {
	t.Run("superclass resolves first", func(t *testing.T) {
		set := testSet(t,
			testDescriptor("Base", nil, []string{}),
			testDescriptor("Derived", []string{"Base"}, []string{"Base"}),
		)
		result, err := NewResolver().Resolve(context.Background(), set)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := result.Registry["Base"]; got != "Base" {
			t.Errorf("expected Base -> Base, got %q", got)
		}
		if got := result.Registry["Derived"]; got != "Derived" {
			t.Errorf("expected Derived -> Derived, got %q", got)
		}
		if len(result.Unresolved) != 0 {
			t.Errorf("expected no unresolved components, got %v", result.Unresolved)
		}
	})

	t.Run("subclass resolves first", func(t *testing.T) {
		// Derived resolves in pass 1; Base must not gain a registry
		// key until its own constructor is satisfied in pass 2.
		set := testSet(t,
			testDescriptor("Derived", []string{"Base"}, []string{"Clock"}),
			testDescriptor("Base", nil, []string{"Derived"}),
			testDescriptor("Clock", nil, []string{}),
		)
		result, err := NewResolver().Resolve(context.Background(), set)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := result.Registry["Base"]; got != "Base" {
			t.Errorf("expected Base -> Base, got %q", got)
		}
		if len(result.Unresolved) != 0 {
			t.Errorf("expected no unresolved components, got %v", result.Unresolved)
		}
	})
}

// Multiple constructors: one satisfiable constructor suffices.
func TestResolver_AnyConstructorSuffices(t *testing.T) {
	set := testSet(t,
		testDescriptor("Svc", nil, []string{"Missing"}, []string{"Dep"}),
		testDescriptor("Dep", nil, []string{}),
	)
	result, err := NewResolver().Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Unresolved) != 0 {
		t.Errorf("expected Svc to resolve via its second constructor, unresolved: %v", result.Unresolved)
	}
}

func TestResolver_ContextCancellation(t *testing.T) {
	set := testSet(t,
		testDescriptor("A", nil, []string{}),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewResolver().Resolve(ctx, set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Incomplete {
		t.Error("expected Incomplete=true for cancelled run")
	}
}

func TestResolver_ProgressCallback(t *testing.T) {
	set := testSet(t,
		testDescriptor("ServiceX", nil, []string{"DepY"}),
		testDescriptor("DepY", nil, []string{}),
	)

	var passes []int
	resolver := NewResolver(WithProgressCallback(func(p ResolveProgress) {
		if p.Phase == ResolvePhaseFixpoint {
			passes = append(passes, p.Pass)
		}
	}))
	if _, err := resolver.Resolve(context.Background(), set); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(passes) != 2 || passes[0] != 1 || passes[1] != 2 {
		t.Errorf("expected progress for passes [1 2], got %v", passes)
	}
}

func TestResolver_MaxPasses(t *testing.T) {
	// A four-deep chain needs four productive passes; capping at two
	// leaves the tail unresolved and marks the run incomplete.
	set := testSet(t,
		testDescriptor("D", nil, []string{"C"}),
		testDescriptor("C", nil, []string{"B"}),
		testDescriptor("B", nil, []string{"A"}),
		testDescriptor("A", nil, []string{}),
	)
	result, err := NewResolver(WithMaxPasses(2)).Resolve(context.Background(), set)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Incomplete {
		t.Error("expected Incomplete=true when pass cap is hit")
	}
	if len(result.Unresolved) != 2 {
		t.Errorf("expected 2 components left after 2 passes, got %v", result.Unresolved)
	}
}
