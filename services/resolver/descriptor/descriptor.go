// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package descriptor defines the component descriptor data model: the
// concrete type, declared supertypes, and constructor signatures that
// resolution operates on, plus the YAML/JSON file format they load from.
package descriptor

import (
	"sort"
	"strconv"
)

// TypeID is an opaque, globally unique identifier for a type.
//
// The discovery layer decides the format (typically a fully-qualified
// type name such as "app.billing.InvoiceService"). The resolver never
// parses a TypeID; it only compares them for equality.
type TypeID string

// Constructor is a single constructor signature: the ordered sequence
// of parameter type identifiers. An empty Constructor is a zero-argument
// constructor.
type Constructor []TypeID

// Descriptor describes one discovered component: its concrete type,
// its declared constructors, and its full supertype set.
//
// Description:
//
//	Descriptors are produced by an external discovery or registration
//	layer and consumed by the resolver. The supertype set must already
//	be transitively closed (every ancestor class and every directly or
//	transitively implemented interface), and must exclude the universal
//	root type.
//
// Thread Safety: Immutable after construction. Safe to share across
// concurrent resolution runs.
type Descriptor struct {
	// ConcreteType is the component's own type identifier.
	ConcreteType TypeID

	// Constructors holds the declared constructor signatures in
	// declaration order. A descriptor with no constructors is never
	// resolvable.
	Constructors []Constructor

	// Supertypes is the transitively closed set of ancestor classes and
	// implemented interfaces. Never contains ConcreteType itself.
	Supertypes map[TypeID]struct{}
}

// New creates a Descriptor from a concrete type, its supertypes, and
// its constructor signatures.
//
// The supertypes slice is copied into a set; duplicates collapse. The
// constructors are kept in the given order.
func New(concrete TypeID, supertypes []TypeID, constructors ...Constructor) Descriptor {
	st := make(map[TypeID]struct{}, len(supertypes))
	for _, s := range supertypes {
		st[s] = struct{}{}
	}
	return Descriptor{
		ConcreteType: concrete,
		Constructors: constructors,
		Supertypes:   st,
	}
}

// HasSupertype reports whether t is in the descriptor's supertype set.
func (d Descriptor) HasSupertype(t TypeID) bool {
	_, ok := d.Supertypes[t]
	return ok
}

// SupertypeList returns the supertypes as a sorted slice.
//
// The map iteration order is randomized by the runtime; sorting keeps
// serialized output and log lines deterministic.
func (d Descriptor) SupertypeList() []TypeID {
	out := make([]TypeID, 0, len(d.Supertypes))
	for t := range d.Supertypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DuplicateTypeError is returned by NewSet when two descriptors share
// the same ConcreteType.
type DuplicateTypeError struct{ Type TypeID }

// Error implements the error interface.
func (e DuplicateTypeError) Error() string {
	return "descriptor: duplicate concrete type " + strconv.Quote(string(e.Type))
}

// SelfSupertypeError is returned by NewSet when a descriptor lists its
// own ConcreteType in its Supertypes.
type SelfSupertypeError struct{ Type TypeID }

// Error implements the error interface.
func (e SelfSupertypeError) Error() string {
	return "descriptor: type " + strconv.Quote(string(e.Type)) + " lists itself as a supertype"
}

// EmptyTypeError is returned by NewSet when a descriptor has an empty
// ConcreteType identifier.
type EmptyTypeError struct{}

// Error implements the error interface.
func (e EmptyTypeError) Error() string {
	return "descriptor: empty concrete type identifier"
}

// Set is an immutable snapshot of discovered component descriptors.
//
// Description:
//
//	A Set is the unit of input for one resolution run. Construction
//	fails fast on programming errors in the input (duplicate concrete
//	types, a type listing itself as its own supertype, empty type
//	identifiers) so resolution never has to handle malformed data.
//
// Thread Safety: Immutable after construction. Safe to share across
// concurrent resolution runs.
type Set struct {
	byType map[TypeID]Descriptor
	order  []TypeID
}

// NewSet builds a Set from descriptors, validating the whole batch.
//
// Inputs:
//
//	descs - Descriptors in discovery order. Order is preserved for
//	        iteration so runs over the same input behave identically.
//
// Outputs:
//
//	*Set - The validated snapshot.
//	error - DuplicateTypeError, SelfSupertypeError, or EmptyTypeError
//	        on the first invalid descriptor encountered.
func NewSet(descs ...Descriptor) (*Set, error) {
	s := &Set{
		byType: make(map[TypeID]Descriptor, len(descs)),
		order:  make([]TypeID, 0, len(descs)),
	}
	for _, d := range descs {
		if d.ConcreteType == "" {
			return nil, EmptyTypeError{}
		}
		if _, exists := s.byType[d.ConcreteType]; exists {
			return nil, DuplicateTypeError{Type: d.ConcreteType}
		}
		if d.HasSupertype(d.ConcreteType) {
			return nil, SelfSupertypeError{Type: d.ConcreteType}
		}
		s.byType[d.ConcreteType] = d
		s.order = append(s.order, d.ConcreteType)
	}
	return s, nil
}

// Len returns the number of descriptors in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Get returns the descriptor for a concrete type.
func (s *Set) Get(t TypeID) (Descriptor, bool) {
	if s == nil {
		return Descriptor{}, false
	}
	d, ok := s.byType[t]
	return d, ok
}

// Contains reports whether a concrete type is in the set.
func (s *Set) Contains(t TypeID) bool {
	_, ok := s.Get(t)
	return ok
}

// All returns the descriptors in discovery order.
//
// The returned slice is freshly allocated; callers may reorder it
// without affecting the Set.
func (s *Set) All() []Descriptor {
	if s == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, s.byType[t])
	}
	return out
}

// Types returns the concrete type identifiers in discovery order.
func (s *Set) Types() []TypeID {
	if s == nil {
		return nil
	}
	out := make([]TypeID, len(s.order))
	copy(out, s.order)
	return out
}
