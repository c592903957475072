package ai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leofalp/explainer/internal/utils"
	"github.com/leofalp/explainer/providers/observability"
)

// HTTPError maps an error returned by the utils HTTP helpers into the
// taxonomy: non-2xx responses by status code, network and context failures
// as transport errors, anything else (undecodable bodies) as protocol errors.
func HTTPError(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := AsError(err); ok {
		return typed
	}

	var statusErr *utils.StatusError
	if errors.As(err, &statusErr) {
		mapped := StatusError(provider, statusErr.StatusCode, statusErr.Body)
		mapped.Err = err
		return mapped
	}
	if isTransport(err) {
		return TransportError(provider, err)
	}
	return ProtocolError(provider, err)
}

// SkipFragment records a stream fragment that could not be decoded even
// after repair. The stream continues; only the fragment is lost.
func SkipFragment(ctx context.Context, provider, payload string, err error) {
	preview := utils.TruncateString(payload, 120)

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventFragmentSkipped,
			observability.String(observability.AttrLLMProvider, provider),
			observability.Error(err),
		)
	}

	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Warn(ctx, "Skipping malformed stream fragment",
			observability.String(observability.AttrLLMProvider, provider),
			observability.String("fragment", preview),
			observability.Error(err),
		)
		return
	}
	slog.WarnContext(ctx, "Skipping malformed stream fragment", "provider", provider, "fragment", preview, "error", err)
}
