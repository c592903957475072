// Package slogobs implements observability.Provider on top of log/slog.
// Spans and metrics become debug-level log records and counters are kept in
// memory so their totals can be read back with [Observer.CounterValue].
//
// Output format and level default to EXPLAINER_LOG_FORMAT and
// EXPLAINER_LOG_LEVEL; see [New] and its options.
package slogobs
