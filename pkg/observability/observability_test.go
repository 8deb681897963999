package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSpansExportToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.TraceWriter = &buf
	cfg.SamplingRate = 1

	p, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := StartSpan(context.Background(), p.Tracer(), "resolve-template", attribute.String("path", "fx/bullet"))
	EndSpan(span, nil)
	_, span = StartSpan(context.Background(), nil, "preload")
	EndSpan(span, errors.New("load failed"))

	out := buf.String()
	assert.Contains(t, out, "resolve-template")
	assert.Contains(t, out, "fx/bullet")
	assert.Contains(t, out, "load failed")
}

func TestMeterCollect(t *testing.T) {
	p, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	counter, err := p.Meter("test").Int64Counter("spawns")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)
	counter.Add(context.Background(), 4)

	rm, err := p.Collect(context.Background())
	require.NoError(t, err)
	v, ok := CounterValue(rm, "spawns")
	require.True(t, ok)
	assert.EqualValues(t, 7, v)

	_, ok = CounterValue(rm, "missing")
	assert.False(t, ok)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableMetrics = false
	p, err := New(context.Background(), cfg)
	require.NoError(t, err)

	rm, err := p.Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rm.ScopeMetrics)
	assert.NotNil(t, p.Meter("x"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Contains(t, samplerFor(0.5).Description(), "TraceIDRatioBased")
}
