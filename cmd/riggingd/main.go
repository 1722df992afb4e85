// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command riggingd starts the Rigging resolver API server.
//
// Rigging answers one question per registered component: "can I build
// this, and if not, why not" — and exposes the resulting lookup table
// over HTTP:
//   - Descriptor sets in (explicit registration, no scanning)
//   - Resolution plans, lookup tables, and diagnostics out
//   - Optional plan persistence in BadgerDB, keyed by set digest
//
// Usage:
//
//	go run ./cmd/riggingd
//	go run ./cmd/riggingd -port 9090
//	go run ./cmd/riggingd -config rigging.config.yaml
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/resolver/health
//
//	# Resolve a descriptor set
//	curl -X POST http://localhost:8080/v1/resolver/resolve \
//	  -H "Content-Type: application/json" \
//	  -d '{"components": [{"type": "app.Clock", "constructors": [{"params": []}]}]}'
//
//	# Look up a type against the latest run
//	curl "http://localhost:8080/v1/resolver/runs/latest/lookup?type=app.Clock"
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/rigging/services/resolver"
	resolverconfig "github.com/AleutianAI/rigging/services/resolver/config"
	badgerstore "github.com/AleutianAI/rigging/services/resolver/storage/badger"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	configPath := flag.String("config", "rigging.config.yaml", "Path to the service config file")
	flag.Parse()

	// Set Gin mode
	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Set up W3C TraceContext propagation so trace context flows from
	// incoming HTTP headers through all handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg, err := resolverconfig.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc := resolver.NewService(resolver.ServiceConfig{
		MaxComponents: cfg.MaxComponents,
		MaxCachedRuns: cfg.MaxCachedRuns,
		MaxPasses:     cfg.MaxPasses,
	})
	handlers := resolver.NewHandlers(svc)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("rigging-resolver"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	resolver.RegisterRoutes(v1, handlers)

	// Open the plan cache BadgerDB. Graceful degradation: if the
	// directory is unavailable, the service runs in-memory only.
	var planDB *badgerstore.DB
	if cfg.PlanCache.Enabled {
		cacheDir := planCacheDir(cfg)
		if cacheDir != "" {
			storeCfg := badgerstore.DefaultConfig()
			storeCfg.Path = cacheDir
			db, err := badgerstore.OpenDB(storeCfg)
			if err != nil {
				slog.Warn("Plan cache BadgerDB unavailable, plan persistence disabled",
					slog.String("path", cacheDir),
					slog.String("error", err.Error()),
				)
			} else {
				planDB = db
				plans, err := badgerstore.NewPlanManager(db, slog.Default())
				if err != nil {
					slog.Warn("Plan manager unavailable", slog.String("error", err.Error()))
				} else {
					svc.SetPlanManager(plans)
					slog.Info("Plan cache BadgerDB opened",
						slog.String("path", cacheDir),
					)
				}
			}
		}
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Rigging resolver server")
		if planDB != nil {
			if err := planDB.Close(); err != nil {
				slog.Warn("Failed to close plan cache BadgerDB", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Rigging resolver server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// planCacheDir resolves the plan cache directory: explicit config,
// then RIGGING_PLAN_CACHE_DIR, then ~/.rigging/cache/plans.
func planCacheDir(cfg resolverconfig.ResolverConfig) string {
	if cfg.PlanCache.Dir != "" {
		return cfg.PlanCache.Dir
	}
	if dir := os.Getenv("RIGGING_PLAN_CACHE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rigging", "cache", "plans")
}
