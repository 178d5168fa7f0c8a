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
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/SZabolotnii/structcore/pkg/orchestrator"
)

// observabilityHandles bundles the optional instrumentation a run may
// start, plus how to tear it down once the run completes.
type observabilityHandles struct {
	metrics  *orchestrator.PipelineMetrics
	tracer   trace.Tracer
	shutdown func(ctx context.Context)
}

// setupObservability wires --trace and --serve-metrics into a tracer and a
// metrics registry. Both are optional: a run with neither flag set returns
// a handle whose fields are nil, which orchestrator.Options treats as
// instrumentation disabled.
func setupObservability(ctx context.Context) (*observabilityHandles, error) {
	h := &observabilityHandles{shutdown: func(context.Context) {}}

	var srv *http.Server
	if flagServeMetrics != "" {
		h.metrics = orchestrator.NewPipelineMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: flagServeMetrics, Handler: mux}
		go func() {
			_ = srv.ListenAndServe()
		}()
		fmt.Printf("serving metrics on %s/metrics\n", flagServeMetrics)
	}

	var tp *sdktrace.TracerProvider
	if flagTrace {
		var err error
		tp, err = orchestrator.NewTracerProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("start tracer provider: %w", err)
		}
		h.tracer = tp.Tracer("structcore")
	}

	h.shutdown = func(shutdownCtx context.Context) {
		if tp != nil {
			_ = tp.Shutdown(shutdownCtx)
		}
		if srv != nil {
			_ = srv.Shutdown(shutdownCtx)
		}
	}
	return h, nil
}
