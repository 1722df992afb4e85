// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index exposes a resolution result as a lookup table for a
// container layer: "give me something satisfying type T".
package index

import (
	"errors"
	"strconv"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
	"github.com/AleutianAI/rigging/services/resolver/resolve"
)

// Default configuration values.
const (
	// DefaultMaxEntries is the default maximum number of lookup keys
	// the registry can hold.
	DefaultMaxEntries = 1_000_000
)

// ErrMaxEntriesExceeded is returned when a resolution result has more
// lookup keys than the registry is configured to hold.
var ErrMaxEntriesExceeded = errors.New("index: max entries exceeded")

// NotUniqueError is returned by Lookup when the requested type is an
// ambiguous supertype: it has implementors, but more than one, so it
// was excluded from the lookup table and needs disambiguation.
type NotUniqueError struct{ Type descriptor.TypeID }

// Error implements the error interface.
func (e NotUniqueError) Error() string {
	return "index: type " + strconv.Quote(string(e.Type)) + " has multiple implementors, disambiguation required"
}

// UnknownTypeError is returned by Lookup when the requested type was
// never discovered, or belongs to a component that itself failed to
// resolve.
type UnknownTypeError struct{ Type descriptor.TypeID }

// Error implements the error interface.
func (e UnknownTypeError) Error() string {
	return "index: no resolvable component for type " + strconv.Quote(string(e.Type))
}

// RegistryOptions configures Registry behavior and limits.
type RegistryOptions struct {
	// MaxEntries is the maximum number of lookup keys the registry can
	// hold. Default: 1,000,000.
	MaxEntries int
}

// DefaultRegistryOptions returns the default options.
func DefaultRegistryOptions() RegistryOptions {
	return RegistryOptions{MaxEntries: DefaultMaxEntries}
}

// RegistryOption is a functional option for configuring Registry.
type RegistryOption func(*RegistryOptions)

// WithMaxEntries sets the maximum number of lookup keys.
func WithMaxEntries(n int) RegistryOption {
	return func(o *RegistryOptions) {
		o.MaxEntries = n
	}
}

// RegistryStats contains statistics about the lookup table.
type RegistryStats struct {
	// TotalKeys is the total number of lookup keys.
	TotalKeys int

	// ConcreteKeys is the number of keys that are concrete component
	// types (mapping to themselves).
	ConcreteKeys int

	// SupertypeKeys is the number of keys that are uniquely implemented
	// supertypes (mapping to their sole implementor).
	SupertypeKeys int

	// NotUniqueTypes is the number of ambiguous supertypes excluded
	// from the table.
	NotUniqueTypes int
}

// Registry answers type lookups against a completed resolution run.
//
// Description:
//
//	Lookup keys are concrete component types (returning themselves)
//	and uniquely implemented supertypes (returning their sole
//	implementor). Ambiguous supertypes are deliberately absent; Lookup
//	distinguishes them from never-discovered types so callers can
//	report "disambiguation required" instead of "missing".
//
// Thread Safety:
//
//	Registry is immutable after construction and safe for concurrent
//	use without locking.
//
// Ownership:
//
//	The registry copies the result's maps at construction; later
//	resolution runs never mutate an existing Registry.
type Registry struct {
	entries   map[descriptor.TypeID]descriptor.TypeID
	notUnique map[descriptor.TypeID]struct{}
	stats     RegistryStats
}

// NewFromResult builds a Registry from a resolution result.
//
// Outputs:
//
//	*Registry - The lookup table.
//	error - ErrMaxEntriesExceeded if the result has more keys than the
//	        configured limit.
func NewFromResult(result *resolve.Result, opts ...RegistryOption) (*Registry, error) {
	options := DefaultRegistryOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if len(result.Registry) > options.MaxEntries {
		return nil, ErrMaxEntriesExceeded
	}

	r := &Registry{
		entries:   make(map[descriptor.TypeID]descriptor.TypeID, len(result.Registry)),
		notUnique: make(map[descriptor.TypeID]struct{}, len(result.Index.NotUniqueTypes)),
	}
	for k, v := range result.Registry {
		r.entries[k] = v
		if k == v {
			r.stats.ConcreteKeys++
		} else {
			r.stats.SupertypeKeys++
		}
	}
	for t := range result.Index.NotUniqueTypes {
		r.notUnique[t] = struct{}{}
	}
	r.stats.TotalKeys = len(r.entries)
	r.stats.NotUniqueTypes = len(r.notUnique)
	return r, nil
}

// Lookup returns the concrete component satisfying type t.
//
// Outputs:
//
//	descriptor.TypeID - The concrete component identifier.
//	error - NotUniqueError when t is an ambiguous supertype,
//	        UnknownTypeError when t has no resolvable implementor.
func (r *Registry) Lookup(t descriptor.TypeID) (descriptor.TypeID, error) {
	if c, ok := r.entries[t]; ok {
		return c, nil
	}
	if _, ambiguous := r.notUnique[t]; ambiguous {
		return "", NotUniqueError{Type: t}
	}
	return "", UnknownTypeError{Type: t}
}

// Has reports whether t is a lookup key.
func (r *Registry) Has(t descriptor.TypeID) bool {
	_, ok := r.entries[t]
	return ok
}

// IsNotUnique reports whether t is an ambiguous supertype.
func (r *Registry) IsNotUnique(t descriptor.TypeID) bool {
	_, ok := r.notUnique[t]
	return ok
}

// Stats returns statistics about the lookup table.
func (r *Registry) Stats() RegistryStats {
	return r.stats
}
