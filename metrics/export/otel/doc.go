// Package otel binds Engine counters and histograms to OpenTelemetry
// observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket. A single callback reads
// [accountcore.Engine.MetricsSnapshot] on each collection cycle.
//
// Callers own the MeterProvider; the exporter only supplies a callback.
package otel
