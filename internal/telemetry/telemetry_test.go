package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupNoneIsNoop(t *testing.T) {
	t.Setenv(EnvTrace, "")
	shutdown, err := Setup(Config{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	_, err := Setup(Config{Exporter: "jaeger"})
	if !errors.Is(err, ErrUnknownExporter) {
		t.Fatalf("expected ErrUnknownExporter, got %v", err)
	}
}

func TestSetupStdoutWritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	t.Setenv(EnvTrace, ExporterStdout)
	shutdown, err := Setup(Config{Writer: &buf, ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "migration.apply")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("migration.apply")) {
		t.Fatalf("expected span in output, got %q", buf.String())
	}
}
