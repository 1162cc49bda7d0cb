package embedding

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"taskpulse/internal/logging"
)

// Resolver obtains vectors for text, preferring vectors the caller already
// holds. Provider failure degrades to an empty vector: no embedding means
// no semantic signal, not a fatal error. The resolver never retries; retry
// policy belongs to the ingestion loop.
type Resolver struct {
	engine Engine

	// Task texts are re-embedded on every pass in the source design. The
	// cache plus singleflight keeps that from hammering the provider when
	// the same pending tasks are scored message after message.
	group      singleflight.Group
	mu         sync.RWMutex
	cache      map[string][]float32
	maxEntries int
}

// NewResolver creates a resolver backed by the given engine.
func NewResolver(engine Engine) *Resolver {
	return &Resolver{
		engine:     engine,
		cache:      make(map[string][]float32),
		maxEntries: 512,
	}
}

// Resolve returns the message's vector. A non-empty cached vector is
// returned unchanged with persist=false. Otherwise the engine is called
// once; on success persist=true signals the caller to write the vector
// back, on failure the result is empty and persist=false.
func (r *Resolver) Resolve(ctx context.Context, text string, cached []float32) (vec []float32, persist bool) {
	if len(cached) > 0 {
		return cached, false
	}

	out, err := r.engine.Embed(ctx, text)
	if err != nil {
		logging.EmbeddingWarn("Embed failed, continuing without semantic signal: %v", err)
		return nil, false
	}
	return out, true
}

// ResolveText embeds arbitrary text (task content) with a process-local
// cache. Failure returns an empty vector.
func (r *Resolver) ResolveText(ctx context.Context, text string) []float32 {
	r.mu.RLock()
	vec, ok := r.cache[text]
	r.mu.RUnlock()
	if ok {
		return vec
	}

	out, err, _ := r.group.Do(text, func() (interface{}, error) {
		return r.engine.Embed(ctx, text)
	})
	if err != nil {
		logging.EmbeddingWarn("Embed failed for candidate text: %v", err)
		return nil
	}

	vec = out.([]float32)
	r.mu.Lock()
	if len(r.cache) >= r.maxEntries {
		// Full reset keeps the map bounded.
		r.cache = make(map[string][]float32)
	}
	r.cache[text] = vec
	r.mu.Unlock()
	return vec
}
