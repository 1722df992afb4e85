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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all resolver routes with the router.
//
// Description:
//
//	Registers all /v1/resolver/* endpoints with the given Gin router
//	group. The router group should already have any required
//	middleware applied.
//
// Core Endpoints:
//
//	POST /v1/resolver/resolve - Resolve a descriptor set
//	GET  /v1/resolver/runs/:id - Get a cached run (":id" may be "latest")
//	GET  /v1/resolver/runs/:id/lookup - Look up a type against a run
//	GET  /v1/resolver/runs/:id/diagnostics - Diagnostics for a run
//
// Plan Endpoints:
//
//	GET  /v1/resolver/plans - List persisted plans
//	GET  /v1/resolver/plans/:id - Get a persisted plan
//
// Health Endpoints:
//
//	GET  /v1/resolver/health - Liveness check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	r := rg.Group("/resolver")

	r.POST("/resolve", handlers.HandleResolve)
	r.GET("/runs/:id", handlers.HandleGetRun)
	r.GET("/runs/:id/lookup", handlers.HandleLookup)
	r.GET("/runs/:id/diagnostics", handlers.HandleDiagnostics)

	r.GET("/plans", handlers.HandleListPlans)
	r.GET("/plans/:id", handlers.HandleGetPlan)

	r.GET("/health", handlers.HandleHealth)
}
