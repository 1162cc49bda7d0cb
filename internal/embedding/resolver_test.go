package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// countingEngine returns a fixed vector and counts calls.
type countingEngine struct {
	vec   []float32
	err   error
	calls atomic.Int64
}

func (e *countingEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return e.vec, nil
}

func (e *countingEngine) Dimensions() int { return len(e.vec) }
func (e *countingEngine) Name() string    { return "counting" }

func TestResolver_CachedVectorReturnedUnchanged(t *testing.T) {
	eng := &countingEngine{vec: []float32{9, 9}}
	r := NewResolver(eng)

	cached := []float32{1, 2, 3}
	vec, persist := r.Resolve(context.Background(), "hello", cached)

	assert.Equal(t, cached, vec)
	assert.False(t, persist, "a cached vector must not be re-persisted")
	assert.Zero(t, eng.calls.Load(), "the engine must not be called for a cached vector")
}

func TestResolver_FreshVectorIsPersisted(t *testing.T) {
	eng := &countingEngine{vec: []float32{0.1, 0.2}}
	r := NewResolver(eng)

	vec, persist := r.Resolve(context.Background(), "hello", nil)

	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.True(t, persist)
	assert.EqualValues(t, 1, eng.calls.Load())
}

func TestResolver_FailureDegrades(t *testing.T) {
	eng := &countingEngine{err: errors.New("provider down")}
	r := NewResolver(eng)

	vec, persist := r.Resolve(context.Background(), "hello", nil)

	assert.Nil(t, vec)
	assert.False(t, persist)
}

func TestResolveText_CachesPerText(t *testing.T) {
	eng := &countingEngine{vec: []float32{1, 1}}
	r := NewResolver(eng)

	ctx := context.Background()
	first := r.ResolveText(ctx, "finish the report")
	second := r.ResolveText(ctx, "finish the report")

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, eng.calls.Load(), "same text must embed once")

	r.ResolveText(ctx, "different text")
	assert.EqualValues(t, 2, eng.calls.Load())
}

func TestResolveText_FailureReturnsNil(t *testing.T) {
	eng := &countingEngine{err: errors.New("boom")}
	r := NewResolver(eng)

	assert.Nil(t, r.ResolveText(context.Background(), "anything"))
	// Failures are not cached; a later call retries the engine.
	r.ResolveText(context.Background(), "anything")
	assert.EqualValues(t, 2, eng.calls.Load())
}
