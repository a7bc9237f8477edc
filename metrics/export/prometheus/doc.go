// Package prometheus renders rollAuth metrics in the Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts an [rollAuth.Engine] and exposes an [http.Handler].
// Counter names are prefixed rollauth_*_total; the single histogram is
// rollauth_exchange_latency_seconds. The number of live poll tasks is exported as the
// rollauth_active_polls gauge.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
