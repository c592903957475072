package ai

import (
	"context"
)

// ChunkFunc receives one non-empty text fragment of a streamed response.
// Fragments are delivered in emission order.
type ChunkFunc func(content string)

// Provider is the core interface that every backend adapter must satisfy.
// The capability set is closed: send, test and list models. The orchestrator
// holds a map from provider id to Provider resolved once at startup.
type Provider interface {
	// ID returns the stable identifier used in settings (e.g. "openrouter").
	ID() string

	// Send executes the request. When onChunk is non-nil the adapter streams
	// and invokes onChunk zero or more times with non-empty fragments; the
	// returned content on success equals their concatenation. When onChunk is
	// nil the adapter performs a single blocking round trip.
	// Every failure is returned as an *Error.
	Send(ctx context.Context, request Request, onChunk ChunkFunc) (string, error)

	// Test performs the cheapest call that validates the credential without
	// incurring generation cost.
	Test(ctx context.Context, credential string) error

	// ListModels returns the cached model list unless forceRefresh is set.
	// When fetching fails it returns the adapter's fallback list together
	// with the fetch error, so callers can keep using a known model id.
	ListModels(ctx context.Context, credential string, forceRefresh bool) ([]ModelDescriptor, error)
}

// Registry maps provider ids to adapter instances.
type Registry map[string]Provider

// NewRegistry indexes the given providers by their ID.
func NewRegistry(providers ...Provider) Registry {
	registry := make(Registry, len(providers))
	for _, provider := range providers {
		registry[provider.ID()] = provider
	}
	return registry
}

// Lookup resolves a provider id. Unknown ids return a configuration error
// wrapping ErrUnknownProvider.
func (r Registry) Lookup(id string) (Provider, error) {
	provider, ok := r[id]
	if !ok || provider == nil {
		return nil, NewError(KindConfiguration, id, "unknown provider: "+id, ErrUnknownProvider)
	}
	return provider, nil
}

// IDs returns the registered provider ids in no particular order.
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids
}
