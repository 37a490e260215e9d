// Package internaldefs exposes stable metric name definitions shared by
// the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and
// OTel exporters expose identical names and bucket boundaries; a change
// here affects both at once.
package internaldefs
