// Package telemetry wires a single process-wide tracer across every
// pipeline stage, exported over OTLP/gRPC, per SPEC_FULL.md §2.1/§4.10.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/pactown/pactown"

// Config controls where spans are exported and how the service identifies
// itself in the resulting traces.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP/gRPC collector address, e.g. "localhost:4317".
	// Empty leaves the target to otlptracegrpc's own default resolution
	// (environment variables, then localhost:4317).
	Endpoint string
	Insecure bool
}

// Provider owns the SDK TracerProvider and its exporter's connection.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup installs a TracerProvider as the process-wide default and returns a
// Provider whose Shutdown flushes and closes the OTLP exporter. Callers that
// only want a tracer without owning shutdown should call Tracer() on the
// global otel.Tracer(tracerName) instead.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	var opts []otlptracegrpc.Option
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", orDefault(cfg.ServiceName, "pactownd")),
			attribute.String("service.version", orDefault(cfg.ServiceVersion, "dev")),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Shutdown flushes pending spans and closes the exporter connection. Callers
// should bound ctx with a short timeout (a few seconds) since this blocks on
// network I/O to the collector.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the package-wide tracer used for the pipeline's spans
// (dependency caching and rehydration, sandbox materialization, fast run,
// process supervision, IPC requests); block parsing, target resolution and
// manifest generation run inside the sandbox span and get no span of their own.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan is a small convenience wrapper so call sites read like
// "ctx, end := telemetry.StartSpan(ctx, "sandbox.create")" followed by a
// single deferred end() instead of repeating the attribute plumbing.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func()) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// RecordDuration is a helper for spans that want to additionally report a
// stage's wall-clock duration as an attribute, for stages (dependency
// install, hardlink rehydration) whose cost is the main thing worth seeing
// on a trace at a glance.
func RecordDuration(ctx context.Context, since time.Time) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(since).Milliseconds()))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
