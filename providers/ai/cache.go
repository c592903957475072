package ai

import (
	"context"
	"sync"
)

// FetchFunc retrieves a fresh model list from the vendor.
type FetchFunc func(ctx context.Context) ([]ModelDescriptor, error)

// ModelCache is the per-adapter model list cache. It is the only shared
// mutable state of an adapter; entries never expire implicitly and are
// replaced only by a successful forced refresh.
type ModelCache struct {
	mu       sync.Mutex
	models   []ModelDescriptor
	loaded   bool
	fallback []ModelDescriptor
}

// NewModelCache creates a cache that serves fallback when a fetch fails.
func NewModelCache(fallback []ModelDescriptor) *ModelCache {
	return &ModelCache{fallback: CloneModels(fallback)}
}

// Get returns the cached list, if any.
func (c *ModelCache) Get() ([]ModelDescriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return nil, false
	}
	return CloneModels(c.models), true
}

// Fallback returns a copy of the fixed fallback list.
func (c *ModelCache) Fallback() []ModelDescriptor {
	return CloneModels(c.fallback)
}

// Load returns the cached list unless forceRefresh is set or nothing is
// cached yet, in which case fetch is called. A failed fetch returns the
// fallback list together with the error and leaves the cache untouched, so a
// failed forced refresh keeps the last good list for later loads. An empty
// successful fetch also returns the fallback but is not an error.
func (c *ModelCache) Load(ctx context.Context, forceRefresh bool, fetch FetchFunc) ([]ModelDescriptor, error) {
	if !forceRefresh {
		if cached, ok := c.Get(); ok {
			return cached, nil
		}
	}

	models, err := fetch(ctx)
	if err != nil {
		return c.Fallback(), err
	}
	if len(models) == 0 {
		return c.Fallback(), nil
	}

	c.mu.Lock()
	c.models = CloneModels(models)
	c.loaded = true
	c.mu.Unlock()

	return models, nil
}
