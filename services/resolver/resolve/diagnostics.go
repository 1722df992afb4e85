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
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
)

// ConstructorDiagnostic explains why one constructor of an unresolved
// component could not be satisfied.
type ConstructorDiagnostic struct {
	// Index is the constructor's position in declaration order.
	Index int `json:"index"`

	// Params is the full parameter type list, as declared.
	Params []descriptor.TypeID `json:"params"`

	// Blockers lists parameter types that are neither registry keys
	// nor ambiguous supertypes: genuinely unknown dependencies.
	Blockers []descriptor.TypeID `json:"blockers,omitempty"`

	// Conflicting lists parameter types blocked only by ambiguity
	// (the type has multiple implementors).
	Conflicting []descriptor.TypeID `json:"conflicting,omitempty"`
}

// Satisfiable reports whether the constructor's only obstacle is
// ambiguity: it has no hard blockers.
func (cd ConstructorDiagnostic) Satisfiable() bool {
	return len(cd.Blockers) == 0
}

// Diagnostic is a structured explanation of why one component could
// not be resolved.
//
// Description:
//
//	Two failure classes are distinguished. If some constructor's only
//	blockers are non-unique supertypes, the failure is recoverable:
//	disambiguating the types in ConflictingTypes and re-running
//	resolution would let the component through. If every constructor
//	has a genuinely unknown dependency, the component is
//	hard-unresolvable and the per-constructor blocker lists say which
//	types are missing.
//
// Thread Safety: Immutable after Diagnose returns.
type Diagnostic struct {
	// Component is the unresolved component's concrete type.
	Component descriptor.TypeID `json:"component"`

	// NoConstructor is true when the descriptor declares no
	// constructors at all; such a component can never be resolved.
	NoConstructor bool `json:"no_constructor,omitempty"`

	// Recoverable is true when at least one constructor is blocked
	// only by ambiguous supertypes.
	Recoverable bool `json:"recoverable"`

	// ConflictingTypes is the union of ambiguous parameter types over
	// the constructors that are otherwise satisfiable. Empty unless
	// Recoverable. Sorted.
	ConflictingTypes []descriptor.TypeID `json:"conflicting_types,omitempty"`

	// Constructors holds one entry per declared constructor, in
	// declaration order.
	Constructors []ConstructorDiagnostic `json:"constructors"`
}

// String renders the diagnostic as a single human-readable line,
// intended for startup-time reporting.
func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "component %s: ", d.Component)
	switch {
	case d.NoConstructor:
		b.WriteString("no constructors declared")
	case d.Recoverable:
		b.WriteString("possible if disambiguated (conflicting: ")
		b.WriteString(joinTypes(d.ConflictingTypes))
		b.WriteString(")")
	default:
		b.WriteString("unresolvable")
		for _, cd := range d.Constructors {
			fmt.Fprintf(&b, "; constructor %d missing %s", cd.Index, joinTypes(cd.Blockers))
		}
	}
	return b.String()
}

// joinTypes renders a type list as "A, B, C".
func joinTypes(types []descriptor.TypeID) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ", ")
}

// Diagnose inspects every component left unresolved after the fixpoint
// and produces one Diagnostic per component.
//
// Description:
//
//	For each constructor, parameter types are split three ways:
//	already-resolvable (registry keys), ambiguous (non-unique
//	supertypes), and hard blockers (everything else — types never
//	discovered, or belonging to components that are themselves
//	unresolvable). A constructor with no hard blockers marks the
//	component recoverable, and its ambiguous parameters join the
//	ConflictingTypes union.
//
//	Read-only reporting pass; never fails. The order of the returned
//	diagnostics follows the order of the unresolved slice.
func Diagnose(
	unresolved []descriptor.Descriptor,
	registry map[descriptor.TypeID]descriptor.TypeID,
	notUniqueTypes map[descriptor.TypeID]struct{},
) []Diagnostic {
	diagnostics := make([]Diagnostic, 0, len(unresolved))
	for _, d := range unresolved {
		diag := Diagnostic{
			Component:     d.ConcreteType,
			NoConstructor: len(d.Constructors) == 0,
			Constructors:  make([]ConstructorDiagnostic, 0, len(d.Constructors)),
		}

		conflictSet := make(map[descriptor.TypeID]struct{})
		for i, ctor := range d.Constructors {
			cd := ConstructorDiagnostic{Index: i, Params: ctor}
			for _, param := range ctor {
				if _, known := registry[param]; known {
					continue
				}
				if _, ambiguous := notUniqueTypes[param]; ambiguous {
					cd.Conflicting = append(cd.Conflicting, param)
				} else {
					cd.Blockers = append(cd.Blockers, param)
				}
			}
			if cd.Satisfiable() {
				diag.Recoverable = true
				for _, t := range cd.Conflicting {
					conflictSet[t] = struct{}{}
				}
			}
			diag.Constructors = append(diag.Constructors, cd)
		}

		if diag.Recoverable {
			for t := range conflictSet {
				diag.ConflictingTypes = append(diag.ConflictingTypes, t)
			}
			sort.Slice(diag.ConflictingTypes, func(i, j int) bool {
				return diag.ConflictingTypes[i] < diag.ConflictingTypes[j]
			})
		}
		diagnostics = append(diagnostics, diag)
	}
	return diagnostics
}
