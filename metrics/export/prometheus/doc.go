// Package prometheus renders engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an engine and exposes an http.Handler.
// Counter names are prefixed authd_*_total; the single histogram is
// authd_login_latency_seconds. The package never registers in a global
// registry; callers mount the Handler where they want it.
package prometheus
