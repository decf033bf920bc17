package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ShutdownFunc завершает tracer provider и сбрасывает буферы.
type ShutdownFunc func(context.Context) error

// SetupTracing настраивает глобальный TracerProvider.
//
// Экспортёр выбирается переменной OTEL_TRACES_EXPORTER:
//   - "stdout" — spans пишутся в stdout
//   - пусто — tracing остаётся no-op
func SetupTracing(service string) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	switch os.Getenv("OTEL_TRACES_EXPORTER") {
	case "":
		return noop, nil
	case "stdout":
	default:
		return noop, fmt.Errorf("unsupported OTEL_TRACES_EXPORTER %q", os.Getenv("OTEL_TRACES_EXPORTER"))
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return noop, fmt.Errorf("create stdout exporter: %w", err)
	}

	res := resource.NewSchemaless(semconv.ServiceName(service))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
