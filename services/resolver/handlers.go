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
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/rigging/services/resolver/descriptor"
	"github.com/AleutianAI/rigging/services/resolver/index"
)

// Handlers holds the HTTP handlers for the resolver service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates the handlers for a service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the request ID from the X-Request-ID
// header, generating one when absent.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleResolve handles POST /v1/resolver/resolve.
//
// Description:
//
//	Accepts a descriptor set, runs resolution, caches the run, and
//	returns the registry, the non-unique supertype set, and one
//	diagnostic per unresolved component. Unresolved components are a
//	200 response; only malformed input is a 4xx.
//
// Response:
//
//	200 OK: ResolveResponse
//	400 Bad Request: body validation or descriptor set construction failed
//	422 Unprocessable Entity: descriptor set exceeds the configured size cap
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleResolve(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleResolve")

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_BODY",
		})
		return
	}

	file := descriptor.File{Components: req.Components}
	set, err := file.ToSet()
	if err != nil {
		// Duplicate concrete types and self-supertypes are programming
		// errors in the input, rejected before resolution starts.
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_DESCRIPTORS",
		})
		return
	}

	run, err := h.svc.Run(c.Request.Context(), set, req.Label, req.Persist)
	if err != nil {
		logger.Warn("Resolution run rejected", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "RUN_REJECTED",
		})
		return
	}

	c.JSON(http.StatusOK, newResolveResponse(run))
}

// HandleGetRun handles GET /v1/resolver/runs/:id.
//
// Response:
//
//	200 OK: ResolveResponse
//	404 Not Found: unknown run ID
func (h *Handlers) HandleGetRun(c *gin.Context) {
	run, ok := h.resolveRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newResolveResponse(run))
}

// HandleLookup handles GET /v1/resolver/runs/:id/lookup.
//
// Description:
//
//	Answers "give me something satisfying type T" against a completed
//	run. Distinguishes ambiguous supertypes (409, disambiguation
//	required) from never-resolvable types (404) so a container can
//	report the right failure.
//
// Query Parameters:
//
//	type: The type identifier to look up (required).
//
// Response:
//
//	200 OK: LookupResponse
//	400 Bad Request: missing type parameter
//	404 Not Found: unknown run, or no resolvable component for the type
//	409 Conflict: the type has multiple implementors
func (h *Handlers) HandleLookup(c *gin.Context) {
	run, ok := h.resolveRun(c)
	if !ok {
		return
	}

	typeParam := c.Query("type")
	if typeParam == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "type parameter is required",
			Code:  "MISSING_PARAMETER",
		})
		return
	}

	component, err := run.Registry.Lookup(descriptor.TypeID(typeParam))
	if err != nil {
		var notUnique index.NotUniqueError
		if errors.As(err, &notUnique) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: err.Error(),
				Code:  "NOT_UNIQUE",
			})
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "UNKNOWN_TYPE",
		})
		return
	}

	c.JSON(http.StatusOK, LookupResponse{
		Type:      descriptor.TypeID(typeParam),
		Component: component,
	})
}

// HandleDiagnostics handles GET /v1/resolver/runs/:id/diagnostics.
//
// Response:
//
//	200 OK: DiagnosticsResponse
//	404 Not Found: unknown run ID
func (h *Handlers) HandleDiagnostics(c *gin.Context) {
	run, ok := h.resolveRun(c)
	if !ok {
		return
	}

	resp := DiagnosticsResponse{
		RunID:       run.RunID,
		Diagnostics: run.Result.Diagnostics,
		Rendered:    make([]string, 0, len(run.Result.Diagnostics)),
	}
	for _, d := range run.Result.Diagnostics {
		resp.Rendered = append(resp.Rendered, d.String())
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListPlans handles GET /v1/resolver/plans.
//
// Query Parameters:
//
//	set_digest: Optional descriptor set digest filter.
//	limit: Maximum results, default 100.
//
// Response:
//
//	200 OK: []PlanMetadata
//	503 Service Unavailable: no plan store attached
func (h *Handlers) HandleListPlans(c *gin.Context) {
	plans := h.svc.PlanManager()
	if plans == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "plan persistence is not enabled",
			Code:  "NO_PLAN_STORE",
		})
		return
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	metas, err := plans.List(c.Request.Context(), c.Query("set_digest"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "PLAN_LIST_FAILED",
		})
		return
	}
	c.JSON(http.StatusOK, metas)
}

// HandleGetPlan handles GET /v1/resolver/plans/:id.
//
// Response:
//
//	200 OK: SerializablePlan
//	404 Not Found: unknown plan ID
//	503 Service Unavailable: no plan store attached
func (h *Handlers) HandleGetPlan(c *gin.Context) {
	plans := h.svc.PlanManager()
	if plans == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "plan persistence is not enabled",
			Code:  "NO_PLAN_STORE",
		})
		return
	}

	plan, _, err := plans.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "PLAN_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, plan)
}

// HandleHealth handles GET /v1/resolver/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveRun extracts the run ID path parameter and fetches the cached
// run, writing the error response itself on failure.
func (h *Handlers) resolveRun(c *gin.Context) (*CachedRun, bool) {
	runID := c.Param("id")
	if runID == "latest" {
		run, ok := h.svc.LatestRun()
		if !ok {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "no resolution runs cached",
				Code:  "NO_RUNS",
			})
			return nil, false
		}
		return run, true
	}
	run, ok := h.svc.GetRun(runID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "run " + runID + " not found",
			Code:  "RUN_NOT_FOUND",
		})
		return nil, false
	}
	return run, true
}
