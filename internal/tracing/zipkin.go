package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// Setup регистрирует глобальный провайдер трассировки с экспортом в Zipkin.
// Пустой url отключает экспорт: остается no-op провайдер otel.
func Setup(url, service string) (func(context.Context) error, error) {
	if url == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := zipkin.New(url)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать Zipkin exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(service),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
