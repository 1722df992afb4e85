// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps BadgerDB for resolution plan persistence.
package badger

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Config configures the plan store database.
type Config struct {
	// Path is the directory for the BadgerDB files. Required unless
	// InMemory is set.
	Path string

	// InMemory runs the database without touching disk. Used in tests.
	InMemory bool

	// ReadOnly opens the database for reads only (e.g. cache
	// inspection tooling).
	ReadOnly bool
}

// DefaultConfig returns the default database configuration.
func DefaultConfig() Config {
	return Config{}
}

// DB is an opened plan store database.
//
// Thread Safety: Safe for concurrent use. BadgerDB handles its own
// concurrency control.
type DB struct {
	inner *badger.DB
}

// OpenDB opens (or creates) the database at cfg.Path.
//
// BadgerDB's internal logger is suppressed; the store layers above log
// their own operations through slog.
func OpenDB(cfg Config) (*DB, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: config path must not be empty")
	}
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithInMemory(cfg.InMemory).
		WithReadOnly(cfg.ReadOnly)
	inner, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", cfg.Path, err)
	}
	return &DB{inner: inner}, nil
}

// Badger returns the underlying BadgerDB handle.
func (db *DB) Badger() *badger.DB {
	return db.inner
}

// Close releases the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}
