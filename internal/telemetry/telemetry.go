// Package telemetry installs the global OpenTelemetry tracer provider used
// by the migration runner. Tracing is off unless an exporter is selected.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// EnvTrace selects the exporter when no flag is given.
const EnvTrace = "FDML_TRACE"

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// ErrUnknownExporter is returned for exporter names other than none/stdout.
var ErrUnknownExporter = errors.New("telemetry: unknown trace exporter")

// Config selects and configures the exporter.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Exporter is "none" or "stdout". Empty falls back to $FDML_TRACE.
	Exporter string
	// Writer receives stdout spans; defaults to os.Stderr so command
	// output stays clean.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

// Setup installs a tracer provider per cfg and returns its shutdown hook.
// With no exporter selected it leaves the global no-op provider in place.
func Setup(cfg Config) (ShutdownFunc, error) {
	exporter := strings.ToLower(strings.TrimSpace(cfg.Exporter))
	if exporter == "" {
		exporter = strings.ToLower(strings.TrimSpace(os.Getenv(EnvTrace)))
	}
	switch exporter {
	case "", ExporterNone:
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, exporter)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}
	name := cfg.ServiceName
	if name == "" {
		name = "fdml"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
