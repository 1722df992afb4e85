// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
)

// findFixturePath returns the absolute path to the sample-components
// descriptor fixture, walking up from the working directory to the
// module root so the test works regardless of where go test runs.
func findFixturePath(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Cannot determine working directory: %v", err)
	}
	for {
		if _, statErr := os.Stat(filepath.Join(dir, "go.mod")); statErr == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("Cannot find module root (no go.mod in any parent directory)")
		}
		dir = parent
	}

	fixture := filepath.Join(dir, "test", "fixtures", "sample-components", "components.yaml")
	if _, statErr := os.Stat(fixture); statErr != nil {
		t.Fatalf("Fixture not found at %s: %v", fixture, statErr)
	}
	return fixture
}

func TestRunResolution_SampleFixture(t *testing.T) {
	path := findFixturePath(t)

	result, err := runResolution(path)
	if err != nil {
		t.Fatalf("runResolution(%s) failed: %v", path, err)
	}

	if len(result.Unresolved) != 0 {
		t.Fatalf("Expected all components resolved, got %d unresolved: %v",
			len(result.Unresolved), result.Unresolved)
	}
	if result.Stats.Resolved != 5 {
		t.Errorf("Expected 5 resolved components, got %d", result.Stats.Resolved)
	}

	// UserStore has two implementors and Closer has two, so neither may
	// appear as a registry key.
	for _, ambiguous := range []descriptor.TypeID{"UserStore", "Closer"} {
		if !result.Index.IsNotUnique(ambiguous) {
			t.Errorf("Expected %s to be classified as not-unique", ambiguous)
		}
		if _, ok := result.Registry[ambiguous]; ok {
			t.Errorf("Ambiguous type %s must not be a registry key", ambiguous)
		}
	}

	// UserService cannot use its UserStore constructor (ambiguous) but
	// resolves through the PostgresUserStore + AuditLog constructor.
	if _, ok := result.Registry["UserService"]; !ok {
		t.Error("Expected UserService to resolve via its second constructor")
	}
}

func TestRunResolution_MissingFile(t *testing.T) {
	if _, err := runResolution(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing descriptor file")
	}
}
