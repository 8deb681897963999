// Package observability wires OpenTelemetry tracing and metering for prefabpool.
//
// Tracing exports to stdout (or any writer) with a ratio sampler. Metering uses a
// manual reader so a caller such as the simulation can collect instrument values on
// demand. New installs both providers as the otel globals, so components that hold
// otel.Tracer or otel.Meter pick them up without being wired explicitly.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Instrumentation scope used for spans and instruments.
const ScopeName = "github.com/ajitpratap0/prefabpool"

// Config contains observability configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	SamplingRate   float64
	TraceExporter  string    // "stdout" or "none"
	TraceWriter    io.Writer // defaults to os.Stdout; a non-nil writer exports synchronously
	PrettyPrint    bool
	BatchTimeout   time.Duration
	EnableMetrics  bool
}

// DefaultConfig returns a default observability configuration
func DefaultConfig() Config {
	return Config{
		ServiceName:    "prefabpool",
		ServiceVersion: "dev",
		Environment:    getEnv("PREFABPOOL_ENV", "development"),
		SamplingRate:   getEnvFloat("PREFABPOOL_TRACE_SAMPLING", 0.1),
		TraceExporter:  getEnv("PREFABPOOL_TRACE_EXPORTER", "none"),
		BatchTimeout:   5 * time.Second,
		EnableMetrics:  true,
	}
}

// Provider owns the tracer and meter providers.
type Provider struct {
	cfg    Config
	tp     *sdktrace.TracerProvider
	mp     *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
}

// New builds the providers described by cfg and installs them globally.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{cfg: cfg}

	topts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRate)),
	}
	if cfg.TraceExporter == "stdout" {
		eopts := []stdouttrace.Option{}
		if cfg.PrettyPrint {
			eopts = append(eopts, stdouttrace.WithPrettyPrint())
		}
		w := cfg.TraceWriter
		if w != nil {
			eopts = append(eopts, stdouttrace.WithWriter(w))
		}
		exporter, err := stdouttrace.New(eopts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		if w != nil {
			topts = append(topts, sdktrace.WithSyncer(exporter))
		} else {
			topts = append(topts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)))
		}
	}
	p.tp = sdktrace.NewTracerProvider(topts...)
	otel.SetTracerProvider(p.tp)

	if cfg.EnableMetrics {
		p.reader = sdkmetric.NewManualReader()
		p.mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(p.reader),
		)
		otel.SetMeterProvider(p.mp)
	}
	return p, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the provider's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(ScopeName)
}

// Meter returns a meter with the given name, falling back to the global meter when
// metrics are disabled.
func (p *Provider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p.mp == nil {
		return otel.Meter(name, opts...)
	}
	return p.mp.Meter(name, opts...)
}

// Collect gathers the current value of every instrument.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p.reader == nil {
		return rm, nil
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []string
	if err := p.tp.Shutdown(ctx); err != nil {
		errs = append(errs, "tracer: "+err.Error())
	}
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, "meter: "+err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Tracer returns the global prefabpool tracer. It is a no-op until New runs.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}

// StartSpan starts a span on tracer, or on the global tracer when tracer is nil.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Tracer()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// CounterValue returns the summed value of the named int64 counter from rm.
func CounterValue(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return 0, false
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}
