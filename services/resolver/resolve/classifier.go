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
	"sort"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
)

// SupertypeIndex partitions every supertype that appears in a
// descriptor set into unique (exactly one implementor) and non-unique
// (two or more implementors).
//
// Description:
//
//	Unique supertypes double as lookup keys: asking the registry for
//	the supertype yields its sole implementor. Non-unique supertypes
//	are never registered as lookup keys; a component depending on one
//	cannot be resolved until the ambiguity is removed.
//
// Invariant: a supertype appears in exactly one of
// UniqueTypeToComponent and NotUniqueTypes, never both, never neither.
//
// Thread Safety: Immutable after ClassifySupertypes returns.
type SupertypeIndex struct {
	// UniqueTypeToComponent maps each uniquely implemented supertype
	// to its single implementing component.
	UniqueTypeToComponent map[descriptor.TypeID]descriptor.TypeID

	// NotUniqueTypes holds every supertype with two or more
	// implementors.
	NotUniqueTypes map[descriptor.TypeID]struct{}

	// Implementors maps every supertype to its implementing components
	// in discovery order. Kept for diagnostics and introspection; the
	// resolver itself only consults the two partitions above.
	Implementors map[descriptor.TypeID][]descriptor.TypeID
}

// IsNotUnique reports whether t is an ambiguously implemented supertype.
func (ix SupertypeIndex) IsNotUnique(t descriptor.TypeID) bool {
	_, ok := ix.NotUniqueTypes[t]
	return ok
}

// NotUniqueList returns the non-unique supertypes as a sorted slice.
func (ix SupertypeIndex) NotUniqueList() []descriptor.TypeID {
	out := make([]descriptor.TypeID, 0, len(ix.NotUniqueTypes))
	for t := range ix.NotUniqueTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ClassifySupertypes builds the SupertypeIndex for a descriptor set.
//
// Description:
//
//	Walks every descriptor's supertype set, collecting implementor
//	lists, then partitions: implementor count 1 goes to
//	UniqueTypeToComponent, count >= 2 to NotUniqueTypes. Supertypes
//	with zero implementors cannot occur by construction.
//
//	Pure function of its input; the returned index shares no state
//	with the set.
func ClassifySupertypes(set *descriptor.Set) SupertypeIndex {
	implementors := make(map[descriptor.TypeID][]descriptor.TypeID)
	for _, d := range set.All() {
		for st := range d.Supertypes {
			implementors[st] = append(implementors[st], d.ConcreteType)
		}
	}

	ix := SupertypeIndex{
		UniqueTypeToComponent: make(map[descriptor.TypeID]descriptor.TypeID),
		NotUniqueTypes:        make(map[descriptor.TypeID]struct{}),
		Implementors:          implementors,
	}
	for st, impls := range implementors {
		if len(impls) == 1 {
			ix.UniqueTypeToComponent[st] = impls[0]
		} else {
			ix.NotUniqueTypes[st] = struct{}{}
		}
	}
	return ix
}
