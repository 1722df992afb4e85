// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package descriptor

import (
	"errors"
	"testing"
)

func TestNew_CollapsesDuplicateSupertypes(t *testing.T) {
	d := New("Impl", []TypeID{"Iface", "Iface", "Base"})
	if len(d.Supertypes) != 2 {
		t.Errorf("expected 2 supertypes, got %d", len(d.Supertypes))
	}
	if !d.HasSupertype("Iface") || !d.HasSupertype("Base") {
		t.Error("expected Iface and Base in supertype set")
	}
}

func TestSupertypeList_Sorted(t *testing.T) {
	d := New("Impl", []TypeID{"Zeta", "Alpha", "Mid"})
	got := d.SupertypeList()
	want := []TypeID{"Alpha", "Mid", "Zeta"}
	if len(got) != len(want) {
		t.Fatalf("expected %d supertypes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestNewSet_Validation(t *testing.T) {
	t.Run("duplicate concrete type", func(t *testing.T) {
		_, err := NewSet(
			New("Impl", nil),
			New("Impl", nil),
		)
		var dup DuplicateTypeError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateTypeError, got %v", err)
		}
		if dup.Type != "Impl" {
			t.Errorf("expected offending type Impl, got %q", dup.Type)
		}
	})

	t.Run("self supertype", func(t *testing.T) {
		_, err := NewSet(New("Impl", []TypeID{"Impl"}))
		var self SelfSupertypeError
		if !errors.As(err, &self) {
			t.Fatalf("expected SelfSupertypeError, got %v", err)
		}
	})

	t.Run("empty concrete type", func(t *testing.T) {
		_, err := NewSet(New("", nil))
		var empty EmptyTypeError
		if !errors.As(err, &empty) {
			t.Fatalf("expected EmptyTypeError, got %v", err)
		}
	})

	t.Run("valid set", func(t *testing.T) {
		set, err := NewSet(
			New("A", []TypeID{"IA"}, Constructor{}),
			New("B", nil, Constructor{"A"}),
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if set.Len() != 2 {
			t.Errorf("expected 2 descriptors, got %d", set.Len())
		}
		if !set.Contains("A") || !set.Contains("B") {
			t.Error("expected A and B in set")
		}
	})
}

func TestSet_PreservesDiscoveryOrder(t *testing.T) {
	set, err := NewSet(New("C", nil), New("A", nil), New("B", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := set.Types()
	want := []TypeID{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSet_NilSafe(t *testing.T) {
	var s *Set
	if s.Len() != 0 {
		t.Error("nil set should have length 0")
	}
	if s.Contains("A") {
		t.Error("nil set should contain nothing")
	}
	if s.All() != nil {
		t.Error("nil set All() should be nil")
	}
}
