// Package observe provides reactive.Observer implementations for the
// derived graph: Prometheus metrics, OpenTelemetry spans, slog logging and
// per-node recomputation counts.
//
// Observers are called synchronously from the goroutine driving the
// runtime. Combine several with Multi:
//
//	metrics := observe.NewPrometheus(observe.WithNamespace("pricing"))
//	rt := reactive.New(reactive.WithObserver(observe.Multi(
//	    metrics,
//	    observe.NewTracing(),
//	    observe.NewLogging(logger),
//	)))
package observe
