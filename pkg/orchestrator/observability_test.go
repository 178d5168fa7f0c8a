// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineMetricsRegistersOnAPrivateRegistry(t *testing.T) {
	m1 := NewPipelineMetrics()
	m2 := NewPipelineMetrics()
	require.NotSame(t, m1.Registry, m2.Registry)

	// Registering both on the same process would panic under promauto's
	// default-registry pattern; constructing two confirms isolation.
	m1.observe("stage1", "ok", 2*time.Second)
	m2.observe("stage1", "ok", time.Second)

	require.Equal(t, 1.0, testutil.ToFloat64(m1.DocumentsTotal.WithLabelValues("stage1", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m2.DocumentsTotal.WithLabelValues("stage1", "ok")))
}

func TestPipelineMetricsObserveTracksStageAndStatusLabels(t *testing.T) {
	m := NewPipelineMetrics()

	m.observe("stage1", "ok", time.Second)
	m.observe("stage1", "error", time.Second)
	m.observe("stage2", "ok", time.Second)

	require.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("stage1", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("stage1", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("stage2", "ok")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.DocumentsTotal.WithLabelValues("stage2", "error")))
}

func TestPipelineMetricsObserveOnNilReceiverIsANoOp(t *testing.T) {
	var m *PipelineMetrics
	require.NotPanics(t, func() {
		m.observe("stage1", "ok", time.Second)
	})
}

func TestStartDocSpanWithNilTracerIsANoOp(t *testing.T) {
	ctx, end := startDocSpan(context.Background(), nil, "stage1", "100001")
	require.NotNil(t, ctx)
	require.NotPanics(t, end)
}
