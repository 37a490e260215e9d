// Package otel binds engine metrics to an OpenTelemetry meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine
// counter and Int64ObservableGauges for the histogram buckets. One
// callback reads a metrics snapshot per collection cycle. The package
// never owns the MeterProvider; callers supply the Meter.
package otel
