// Package observability defines the tracing, metrics and logging interfaces
// used by the explainer core and provider adapters.
//
// [Provider] composes [Tracer], [Metrics] and [Logger] into one injectable
// dependency. The active provider and span travel through a
// [context.Context] via [ContextWithObserver] and [ContextWithSpan]. Adapters
// and HTTP helpers only read from the context and treat a missing provider or
// span as "observability disabled".
//
// Attribute keys, span names and metric names live in semconv.go.
package observability
