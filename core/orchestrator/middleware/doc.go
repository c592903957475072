// Package middleware provides middleware for the orchestrator's send chain.
//
//   - [NewLoggingMiddleware]: emits structured slog entries before and after
//     every provider send, with three verbosity levels (Minimal, Standard,
//     Verbose).
//
// # Usage
//
//	orch, err := orchestrator.New(registry, store,
//	    orchestrator.WithMiddleware(middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard)),
//	)
package middleware
