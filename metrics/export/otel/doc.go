// Package otel binds goAccounts pipeline metrics to OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter family,
// with samples distinguished by an attribute (stage, outcome, code, result
// or event), and one Int64ObservableGauge per latency bucket. A single
// callback reads [goAccounts.Engine.MetricsSnapshot].
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
