// Package orchestrator turns an explain or translate request into a provider
// call. For every request it takes a fresh settings snapshot, resolves the
// configured adapter from a registry built once at startup, renders the
// prompt and drives either a one-shot or a streaming send through an
// optional middleware chain.
//
// The orchestrator keeps no state between requests: no result, model choice
// or error from one request can influence the next.
//
// # Usage
//
//	registry := ai.NewRegistry(openrouter.New(), anthropic.New())
//	orch, err := orchestrator.New(registry, store,
//	    orchestrator.WithObserver(slogobs.New()),
//	    orchestrator.WithMiddleware(middleware.NewLoggingMiddleware(slog.Default(), middleware.LogLevelStandard)),
//	)
//	content, err := orch.Handle(ctx, message, func(chunk string) { fmt.Print(chunk) })
package orchestrator
