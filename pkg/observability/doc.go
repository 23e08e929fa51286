// Package observability provides structured logging, Prometheus metrics,
// health checks and graceful shutdown for the identity core.
//
// The identity engine deliberately swallows local persistence failures so a
// remote-created account is never blocked on a local write (availability
// over consistency). Operators still need to see that drift, so every
// swallowed failure is routed through the Logger and counted in
// Metrics.StoreFailuresTotal. Dashboards watching that counter are the
// detection mechanism for provider/local-store divergence.
package observability
