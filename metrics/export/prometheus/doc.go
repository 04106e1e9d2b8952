// Package prometheus renders Engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] exposes an [http.Handler] for a scrape endpoint.
// Counters are named accountcore_*_total; the latency histograms are
// accountcore_login_latency_seconds and accountcore_validate_latency_seconds.
// Nothing is registered globally; callers mount the Handler.
package prometheus
