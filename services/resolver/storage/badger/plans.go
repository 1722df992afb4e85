// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
	"github.com/AleutianAI/rigging/services/resolver/resolve"
)

// PlanSchemaVersion is the serialization schema version for stored
// resolution plans.
const PlanSchemaVersion = "1"

// BadgerDB key prefixes for resolution plans.
const (
	keyPrefixPlan      = "resolver:plan:"
	keyPrefixPlanIndex = "resolver:plan:index:"
	keySuffixData      = ":data"
	keySuffixMeta      = ":meta"
	keySuffixLatest    = ":latest"
)

// PlanMetadata contains metadata about a saved resolution plan.
type PlanMetadata struct {
	// PlanID is the unique identifier for this plan.
	// Derived from SHA256(SetDigest + CreatedAtMilli)[:16].
	PlanID string `json:"plan_id"`

	// SetDigest is the deterministic digest of the input descriptor
	// set. Two runs over the same set share a digest.
	SetDigest string `json:"set_digest"`

	// Label is an optional human-readable label.
	Label string `json:"label,omitempty"`

	// CreatedAtMilli is when the plan was saved (Unix milliseconds UTC).
	CreatedAtMilli int64 `json:"created_at_milli"`

	// Components is the number of descriptors in the input set.
	Components int `json:"components"`

	// Resolved is the number of components the plan resolves.
	Resolved int `json:"resolved"`

	// Unresolved is the number of components left unresolved.
	Unresolved int `json:"unresolved"`

	// SchemaVersion is the serialization schema version.
	SchemaVersion string `json:"schema_version"`

	// CompressedSize is the size of the gzip-compressed JSON payload.
	CompressedSize int64 `json:"compressed_size"`

	// ContentHash is the SHA256 hash of the compressed payload.
	ContentHash string `json:"content_hash"`
}

// SerializablePlan is the stored form of a resolution result.
type SerializablePlan struct {
	// Registry maps type identifier -> concrete component identifier.
	Registry map[string]string `json:"registry"`

	// NotUniqueTypes lists ambiguous supertypes, sorted.
	NotUniqueTypes []string `json:"not_unique_types"`

	// UniqueTypeToComponent maps unique supertypes to implementors.
	UniqueTypeToComponent map[string]string `json:"unique_type_to_component"`

	// Unresolved lists unresolved concrete types in discovery order.
	Unresolved []string `json:"unresolved"`

	// Diagnostics carries the failure records for unresolved components.
	Diagnostics []resolve.Diagnostic `json:"diagnostics"`

	// Stats contains run statistics.
	Stats resolve.ResolveStats `json:"stats"`
}

// DigestSet computes the deterministic digest of a descriptor set.
//
// Description:
//
//	Serializes the set in normalized form (discovery order, sorted
//	supertype lists) and hashes it. The digest keys the "latest"
//	pointer so a server can answer "has this exact set been resolved
//	before" without re-running resolution.
func DigestSet(set *descriptor.Set) (string, error) {
	data, err := json.Marshal(set.ToFile())
	if err != nil {
		return "", fmt.Errorf("marshaling descriptor set: %w", err)
	}
	return hashBytes(data)[:16], nil
}

// PlanManager manages saving and loading resolution plans in BadgerDB.
//
// Description:
//
//	Provides CRUD operations for resolution plans stored as
//	gzip-compressed JSON in BadgerDB. Each plan stores the full
//	registry, classification, and diagnostics of one run, plus
//	metadata for listing and filtering.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency
//	control.
type PlanManager struct {
	db     *DB
	logger *slog.Logger
}

// NewPlanManager creates a new PlanManager.
//
// Inputs:
//
//	db - An opened plan store database. Must not be nil.
//	logger - Logger for diagnostic output. Must not be nil.
func NewPlanManager(db *DB, logger *slog.Logger) (*PlanManager, error) {
	if db == nil {
		return nil, fmt.Errorf("plan store db must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &PlanManager{db: db, logger: logger}, nil
}

// Save persists a resolution plan to BadgerDB.
//
// Description:
//
//	Serializes the result to JSON, gzip-compresses it, and stores it
//	along with metadata. Updates the "latest" pointer for the
//	descriptor set digest.
//
// Key Schema:
//
//	resolver:plan:{setDigest}:{planID}:data → gzip(JSON(SerializablePlan))
//	resolver:plan:{setDigest}:{planID}:meta → JSON(PlanMetadata)
//	resolver:plan:{setDigest}:latest        → planID
//	resolver:plan:index:{planID}            → setDigest
func (m *PlanManager) Save(ctx context.Context, set *descriptor.Set, result *resolve.Result, label string) (*PlanMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if set == nil || result == nil {
		return nil, fmt.Errorf("set and result must not be nil")
	}

	setDigest, err := DigestSet(set)
	if err != nil {
		return nil, err
	}

	plan := toSerializable(result)
	jsonData, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("marshaling plan: %w", err)
	}

	var compressed bytes.Buffer
	gw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gw.Write(jsonData); err != nil {
		return nil, fmt.Errorf("compressing plan: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}
	compressedData := compressed.Bytes()

	createdAt := time.Now().UnixMilli()
	planID := hashString(fmt.Sprintf("%s:%d", setDigest, createdAt))[:16]

	meta := &PlanMetadata{
		PlanID:         planID,
		SetDigest:      setDigest,
		Label:          label,
		CreatedAtMilli: createdAt,
		Components:     result.Stats.Components,
		Resolved:       result.Stats.Resolved,
		Unresolved:     result.Stats.Unresolved,
		SchemaVersion:  PlanSchemaVersion,
		CompressedSize: int64(len(compressedData)),
		ContentHash:    hashBytes(compressedData),
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	dataKey := keyPrefixPlan + setDigest + ":" + planID + keySuffixData
	metaKey := keyPrefixPlan + setDigest + ":" + planID + keySuffixMeta
	latestKey := keyPrefixPlan + setDigest + keySuffixLatest
	indexKey := keyPrefixPlanIndex + planID

	err = m.db.Badger().Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(dataKey), compressedData); err != nil {
			return fmt.Errorf("storing data: %w", err)
		}
		if err := txn.Set([]byte(metaKey), metaJSON); err != nil {
			return fmt.Errorf("storing metadata: %w", err)
		}
		if err := txn.Set([]byte(latestKey), []byte(planID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		if err := txn.Set([]byte(indexKey), []byte(setDigest)); err != nil {
			return fmt.Errorf("storing reverse index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("writing plan to badger: %w", err)
	}

	m.logger.Info("resolution plan saved",
		slog.String("plan_id", planID),
		slog.String("set_digest", setDigest),
		slog.Int("resolved", meta.Resolved),
		slog.Int("unresolved", meta.Unresolved),
		slog.Int64("compressed_size", meta.CompressedSize),
	)
	return meta, nil
}

// Load retrieves a resolution plan by its ID.
func (m *PlanManager) Load(ctx context.Context, planID string) (*SerializablePlan, *PlanMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if planID == "" {
		return nil, nil, fmt.Errorf("plan ID must not be empty")
	}

	setDigest, err := m.getSetDigest(planID)
	if err != nil {
		return nil, nil, fmt.Errorf("looking up plan %s: %w", planID, err)
	}
	return m.loadByKeys(setDigest, planID)
}

// LoadLatest loads the most recent plan for a descriptor set digest.
func (m *PlanManager) LoadLatest(ctx context.Context, setDigest string) (*SerializablePlan, *PlanMetadata, error) {
	if ctx == nil {
		return nil, nil, fmt.Errorf("ctx must not be nil")
	}
	if setDigest == "" {
		return nil, nil, fmt.Errorf("set digest must not be empty")
	}

	latestKey := keyPrefixPlan + setDigest + keySuffixLatest
	var planID string
	err := m.db.Badger().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			planID = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, nil, fmt.Errorf("reading latest pointer for %s: %w", setDigest, err)
	}
	return m.loadByKeys(setDigest, planID)
}

// List returns metadata for plans matching the optional set digest
// filter, newest first.
func (m *PlanManager) List(ctx context.Context, setDigest string, limit int) ([]*PlanMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if limit <= 0 {
		limit = 100
	}

	prefix := keyPrefixPlan
	if setDigest != "" {
		prefix = keyPrefixPlan + setDigest + ":"
	}

	var metas []*PlanMetadata
	err := m.db.Badger().View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			if len(key) < len(keySuffixMeta) || key[len(key)-len(keySuffixMeta):] != keySuffixMeta {
				continue
			}
			err := it.Item().Value(func(val []byte) error {
				var meta PlanMetadata
				if err := json.Unmarshal(val, &meta); err != nil {
					return fmt.Errorf("unmarshaling metadata at %s: %w", key, err)
				}
				metas = append(metas, &meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAtMilli > metas[j].CreatedAtMilli
	})
	if len(metas) > limit {
		metas = metas[:limit]
	}
	return metas, nil
}

// Delete removes a plan and its metadata.
//
// The "latest" pointer is cleared if it referenced the deleted plan.
func (m *PlanManager) Delete(ctx context.Context, planID string) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	setDigest, err := m.getSetDigest(planID)
	if err != nil {
		return fmt.Errorf("looking up plan %s: %w", planID, err)
	}

	dataKey := keyPrefixPlan + setDigest + ":" + planID + keySuffixData
	metaKey := keyPrefixPlan + setDigest + ":" + planID + keySuffixMeta
	latestKey := keyPrefixPlan + setDigest + keySuffixLatest
	indexKey := keyPrefixPlanIndex + planID

	return m.db.Badger().Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(latestKey))
		if err == nil {
			var latest string
			if err := item.Value(func(val []byte) error {
				latest = string(val)
				return nil
			}); err != nil {
				return err
			}
			if latest == planID {
				if err := txn.Delete([]byte(latestKey)); err != nil {
					return fmt.Errorf("clearing latest pointer: %w", err)
				}
			}
		}
		if err := txn.Delete([]byte(dataKey)); err != nil {
			return fmt.Errorf("deleting data: %w", err)
		}
		if err := txn.Delete([]byte(metaKey)); err != nil {
			return fmt.Errorf("deleting metadata: %w", err)
		}
		if err := txn.Delete([]byte(indexKey)); err != nil {
			return fmt.Errorf("deleting reverse index: %w", err)
		}
		return nil
	})
}

// getSetDigest resolves a plan ID to its set digest via the reverse index.
func (m *PlanManager) getSetDigest(planID string) (string, error) {
	var setDigest string
	err := m.db.Badger().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixPlanIndex + planID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			setDigest = string(val)
			return nil
		})
	})
	return setDigest, err
}

// loadByKeys loads and decompresses a plan given both key components.
func (m *PlanManager) loadByKeys(setDigest, planID string) (*SerializablePlan, *PlanMetadata, error) {
	dataKey := keyPrefixPlan + setDigest + ":" + planID + keySuffixData
	metaKey := keyPrefixPlan + setDigest + ":" + planID + keySuffixMeta

	var compressedData, metaJSON []byte
	err := m.db.Badger().View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(dataKey))
		if err != nil {
			return fmt.Errorf("reading data: %w", err)
		}
		compressedData, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get([]byte(metaKey))
		if err != nil {
			return fmt.Errorf("reading metadata: %w", err)
		}
		metaJSON, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading plan %s: %w", planID, err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	jsonData, err := io.ReadAll(gr)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing plan: %w", err)
	}
	if err := gr.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing gzip reader: %w", err)
	}

	var plan SerializablePlan
	if err := json.Unmarshal(jsonData, &plan); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling plan: %w", err)
	}
	var meta PlanMetadata
	if err := json.Unmarshal(metaJSON, &meta); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return &plan, &meta, nil
}

// toSerializable converts a resolution result to its stored form.
func toSerializable(result *resolve.Result) *SerializablePlan {
	plan := &SerializablePlan{
		Registry:              make(map[string]string, len(result.Registry)),
		UniqueTypeToComponent: make(map[string]string, len(result.Index.UniqueTypeToComponent)),
		Unresolved:            make([]string, 0, len(result.Unresolved)),
		Diagnostics:           result.Diagnostics,
		Stats:                 result.Stats,
	}
	for k, v := range result.Registry {
		plan.Registry[string(k)] = string(v)
	}
	for k, v := range result.Index.UniqueTypeToComponent {
		plan.UniqueTypeToComponent[string(k)] = string(v)
	}
	for _, t := range result.Index.NotUniqueList() {
		plan.NotUniqueTypes = append(plan.NotUniqueTypes, string(t))
	}
	for _, t := range result.Unresolved {
		plan.Unresolved = append(plan.Unresolved, string(t))
	}
	return plan
}

// hashString returns the hex SHA-256 of a string.
func hashString(s string) string {
	return hashBytes([]byte(s))
}

// hashBytes returns the hex SHA-256 of a byte slice.
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
