package orchestrator

import (
	"context"

	"github.com/leofalp/explainer/providers/ai"
)

// SendFunc performs one provider send. A nil onChunk selects the one-shot
// path, exactly like ai.Provider.Send.
type SendFunc func(ctx context.Context, provider ai.Provider, request ai.Request, onChunk ai.ChunkFunc) (string, error)

// Middleware wraps a SendFunc. Middlewares are applied outermost-first: the
// first one passed to WithMiddleware runs first.
type Middleware func(next SendFunc) SendFunc

// buildChain wraps the direct provider call with middlewares in reverse so
// that middlewares[0] is the outermost wrapper.
func buildChain(middlewares []Middleware) SendFunc {
	var chain SendFunc = func(ctx context.Context, provider ai.Provider, request ai.Request, onChunk ai.ChunkFunc) (string, error) {
		return provider.Send(ctx, request, onChunk)
	}

	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			chain = middlewares[i](chain)
		}
	}
	return chain
}
