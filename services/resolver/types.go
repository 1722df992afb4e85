// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"github.com/AleutianAI/rigging/services/resolver/descriptor"
	"github.com/AleutianAI/rigging/services/resolver/resolve"
)

// ErrorResponse is the standard error body for all endpoints.
type ErrorResponse struct {
	// Error is the human-readable message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code"`
}

// ResolveRequest is the body for POST /v1/resolver/resolve.
type ResolveRequest struct {
	// Components is the full descriptor set to resolve.
	Components []descriptor.FileComponent `json:"components" binding:"required,min=1,dive"`

	// Label is an optional label recorded on the persisted plan.
	Label string `json:"label"`

	// Persist requests plan persistence (no-op without a plan store).
	Persist bool `json:"persist"`
}

// ResolveResponse is the body for a successful resolution run.
type ResolveResponse struct {
	// RunID identifies the cached run for follow-up queries.
	RunID string `json:"run_id"`

	// PlanID is the persisted plan ID, when persistence was requested
	// and a plan store is attached.
	PlanID string `json:"plan_id,omitempty"`

	// Registry maps type identifier -> concrete component identifier.
	Registry map[descriptor.TypeID]descriptor.TypeID `json:"registry"`

	// NotUniqueTypes lists ambiguous supertypes, sorted.
	NotUniqueTypes []descriptor.TypeID `json:"not_unique_types"`

	// Unresolved lists unresolved concrete types in discovery order.
	Unresolved []descriptor.TypeID `json:"unresolved"`

	// Diagnostics explains every unresolved component.
	Diagnostics []resolve.Diagnostic `json:"diagnostics"`

	// Incomplete is true when the run was cancelled or capped.
	Incomplete bool `json:"incomplete"`

	// Stats contains run statistics.
	Stats resolve.ResolveStats `json:"stats"`
}

// LookupResponse is the body for a successful type lookup.
type LookupResponse struct {
	// Type is the requested type identifier.
	Type descriptor.TypeID `json:"type"`

	// Component is the concrete component satisfying the type.
	Component descriptor.TypeID `json:"component"`
}

// DiagnosticsResponse is the body for the diagnostics endpoint.
type DiagnosticsResponse struct {
	// RunID identifies the queried run.
	RunID string `json:"run_id"`

	// Diagnostics holds one entry per unresolved component.
	Diagnostics []resolve.Diagnostic `json:"diagnostics"`

	// Rendered holds the human-readable one-line form of each
	// diagnostic, for startup-time log shipping.
	Rendered []string `json:"rendered"`
}

// newResolveResponse builds the response DTO for a completed run.
func newResolveResponse(run *CachedRun) ResolveResponse {
	return ResolveResponse{
		RunID:          run.RunID,
		PlanID:         run.PlanID,
		Registry:       run.Result.Registry,
		NotUniqueTypes: run.Result.Index.NotUniqueList(),
		Unresolved:     run.Result.Unresolved,
		Diagnostics:    run.Result.Diagnostics,
		Incomplete:     run.Result.Incomplete,
		Stats:          run.Result.Stats,
	}
}
