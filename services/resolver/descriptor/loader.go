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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the on-disk registration format for a descriptor set.
//
// Description:
//
//	Rigging does not scan classpaths or binaries; a build step or the
//	application itself registers components explicitly by emitting this
//	file. YAML and JSON are both accepted (JSON is convenient for
//	generated output, YAML for hand-maintained fixtures).
//
// Example (YAML):
//
//	components:
//	  - type: app.InvoiceService
//	    supertypes: [app.Service]
//	    constructors:
//	      - params: [app.Database, app.Clock]
//	      - params: []
type File struct {
	// Components lists every registered component.
	Components []FileComponent `yaml:"components" json:"components" validate:"required,min=1,dive"`
}

// FileComponent is one component entry in a descriptor file.
type FileComponent struct {
	// Type is the concrete type identifier. Required.
	Type string `yaml:"type" json:"type" validate:"required"`

	// Supertypes lists the transitively closed supertype set.
	Supertypes []string `yaml:"supertypes" json:"supertypes"`

	// Constructors lists the declared constructor signatures in
	// declaration order. May be empty (such a component can never
	// be resolved, and will be diagnosed as such).
	Constructors []FileConstructor `yaml:"constructors" json:"constructors"`
}

// FileConstructor is one constructor signature in a descriptor file.
type FileConstructor struct {
	// Params lists the parameter type identifiers in order.
	// An empty or absent list is a zero-argument constructor.
	Params []string `yaml:"params" json:"params"`
}

// fileValidate checks struct-level constraints on a parsed File.
var fileValidate = validator.New()

// LoadFile reads and validates a descriptor file, returning a Set.
//
// Description:
//
//	The format is chosen by extension: ".json" parses as JSON, anything
//	else as YAML. Validation happens in two stages: field-level
//	constraints (required type identifiers, at least one component)
//	via the validator tags, then Set construction which fails fast on
//	duplicates and self-supertypes.
//
// Inputs:
//
//	path - Path to the descriptor file. Must exist; a missing
//	       descriptor file is an error, unlike optional config files.
//
// Outputs:
//
//	*Set - The validated descriptor snapshot.
//	error - Wrapped read, parse, or validation error.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor file %s: %w", path, err)
	}
	var f File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse descriptor file %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse descriptor file %s: %w", path, err)
		}
	}
	return f.ToSet()
}

// ToSet validates a parsed File and converts it to a Set.
func (f *File) ToSet() (*Set, error) {
	if err := fileValidate.Struct(f); err != nil {
		return nil, fmt.Errorf("validate descriptor file: %w", err)
	}
	descs := make([]Descriptor, 0, len(f.Components))
	for _, c := range f.Components {
		ctors := make([]Constructor, 0, len(c.Constructors))
		for _, fc := range c.Constructors {
			ctor := make(Constructor, 0, len(fc.Params))
			for _, p := range fc.Params {
				ctor = append(ctor, TypeID(p))
			}
			ctors = append(ctors, ctor)
		}
		supertypes := make([]TypeID, 0, len(c.Supertypes))
		for _, s := range c.Supertypes {
			supertypes = append(supertypes, TypeID(s))
		}
		descs = append(descs, New(TypeID(c.Type), supertypes, ctors...))
	}
	return NewSet(descs...)
}

// ToFile converts a Set back to its on-disk representation.
//
// Used by tooling that normalizes or re-emits descriptor files.
func (s *Set) ToFile() *File {
	f := &File{Components: make([]FileComponent, 0, s.Len())}
	for _, d := range s.All() {
		fc := FileComponent{
			Type:       string(d.ConcreteType),
			Supertypes: make([]string, 0, len(d.Supertypes)),
		}
		for _, st := range d.SupertypeList() {
			fc.Supertypes = append(fc.Supertypes, string(st))
		}
		for _, ctor := range d.Constructors {
			params := make([]string, 0, len(ctor))
			for _, p := range ctor {
				params = append(params, string(p))
			}
			fc.Constructors = append(fc.Constructors, FileConstructor{Params: params})
		}
		f.Components = append(f.Components, fc)
	}
	return f
}
