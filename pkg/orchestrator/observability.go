// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// PipelineMetrics holds the Prometheus instruments for one pipeline run.
// Unlike the teacher's observability.StreamingMetrics (a promauto singleton
// on the default registry), this carries its own *prometheus.Registry so a
// caller — including a test — can hold several independent instances in one
// process.
type PipelineMetrics struct {
	Registry             *prometheus.Registry
	DocumentsTotal       *prometheus.CounterVec
	StageDurationSeconds *prometheus.HistogramVec
}

// NewPipelineMetrics builds and registers a fresh set of pipeline metrics.
func NewPipelineMetrics() *PipelineMetrics {
	reg := prometheus.NewRegistry()
	m := &PipelineMetrics{
		Registry: reg,
		DocumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "structcore",
				Subsystem: "pipeline",
				Name:      "documents_total",
				Help:      "Documents processed, by stage and outcome.",
			},
			[]string{"stage", "status"},
		),
		StageDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "structcore",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Per-document stage processing time in seconds.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),
	}
	reg.MustRegister(m.DocumentsTotal, m.StageDurationSeconds)
	return m
}

// observe records one document's outcome. A nil receiver is a no-op, so
// callers can pass an unset Options.Metrics unconditionally.
func (m *PipelineMetrics) observe(stage, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(stage, status).Inc()
	m.StageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// NewTracerProvider builds an OpenTelemetry tracer provider that exports
// spans to stdout, matching the stdouttrace dependency the teacher pack
// offers in place of an OTLP collector dependency this module has no use
// for (no collector endpoint in SPEC_FULL.md). Callers tear it down with
// Shutdown once the run completes.
func NewTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	return tp, nil
}

// startDocSpan starts a span for one document's stage processing if tracer
// is non-nil, returning a no-op end function otherwise.
func startDocSpan(ctx context.Context, tracer trace.Tracer, stage, hadm string) (context.Context, func()) {
	if tracer == nil {
		return ctx, func() {}
	}
	ctx, span := tracer.Start(ctx, "structcore."+stage,
		trace.WithAttributes(attribute.String("hadm_id", hadm)))
	return ctx, func() { span.End() }
}
