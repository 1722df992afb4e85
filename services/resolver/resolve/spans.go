// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package's tracer and meter.
const instrumentationName = "rigging.resolver"

var (
	metricsOnce      sync.Once
	resolveRuns      metric.Int64Counter
	resolveDuration  metric.Float64Histogram
	resolvedTotal    metric.Int64Counter
	unresolvedFinal  metric.Int64Histogram
	metricsInitError error
)

// initMetrics creates the package's metric instruments once.
//
// If no MeterProvider is configured the otel API falls back to no-op
// instruments, so callers never need to check metricsInitError on the
// hot path.
func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter(instrumentationName)
		resolveRuns, metricsInitError = meter.Int64Counter(
			"rigging.resolve.runs",
			metric.WithDescription("Number of resolution runs"))
		if metricsInitError != nil {
			return
		}
		resolveDuration, metricsInitError = meter.Float64Histogram(
			"rigging.resolve.duration_ms",
			metric.WithDescription("Resolution run duration in milliseconds"),
			metric.WithUnit("ms"))
		if metricsInitError != nil {
			return
		}
		resolvedTotal, metricsInitError = meter.Int64Counter(
			"rigging.resolve.components_resolved",
			metric.WithDescription("Total components resolved across runs"))
		if metricsInitError != nil {
			return
		}
		unresolvedFinal, metricsInitError = meter.Int64Histogram(
			"rigging.resolve.components_unresolved",
			metric.WithDescription("Unresolved components per run"))
	})
}

// startResolveSpan starts the span covering one resolution run.
func startResolveSpan(ctx context.Context, componentCount int) (context.Context, oteltrace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, "resolver.resolve",
		oteltrace.WithAttributes(
			attribute.Int("rigging.component_count", componentCount),
		))
}

// setResolveSpanResult records the run outcome on the span.
func setResolveSpanResult(span oteltrace.Span, resolved, unresolved, passes int, incomplete bool) {
	span.SetAttributes(
		attribute.Int("rigging.resolved", resolved),
		attribute.Int("rigging.unresolved", unresolved),
		attribute.Int("rigging.passes", passes),
		attribute.Bool("rigging.incomplete", incomplete),
	)
}

// recordResolveMetrics records run metrics. Success means the fixpoint
// was confirmed (the run was not cancelled or capped).
func recordResolveMetrics(ctx context.Context, duration time.Duration, resolved, unresolved int, success bool) {
	initMetrics()
	if metricsInitError != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	resolveRuns.Add(ctx, 1, attrs)
	resolveDuration.Record(ctx, float64(duration.Microseconds())/1000.0, attrs)
	resolvedTotal.Add(ctx, int64(resolved), attrs)
	unresolvedFinal.Record(ctx, int64(unresolved), attrs)
}
