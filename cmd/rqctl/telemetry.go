package main

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// initTelemetry installs OTel SDK tracer/meter providers in place of the
// global no-op default for every command run. internal/queue's instruments
// forward to them through the global delegate (see metrics.go). No span
// processor, metric reader or exporter is registered, so spans and
// measurements are not exported or retained anywhere.
func initTelemetry() {
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetMeterProvider(metric.NewMeterProvider())
}
