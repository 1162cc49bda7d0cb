// Package retrieval fetches the bounded, conversation-scoped context the
// classifier works from: semantically similar prior messages and recently
// created tasks.
package retrieval

import (
	"context"

	"taskpulse/internal/embedding"
	"taskpulse/internal/logging"
	"taskpulse/internal/store"
	"taskpulse/internal/types"
)

// Config bounds the retriever's two queries.
type Config struct {
	// MaxMessages is the fetch bound for embedded prior messages (M).
	MaxMessages int `yaml:"max_messages"`
	// TopK is how many similar messages survive ranking (K).
	TopK int `yaml:"top_k"`
	// MaxTasks is the fetch bound for recent tasks (N).
	MaxTasks int `yaml:"max_tasks"`
}

// DefaultConfig returns the source system's bounds.
func DefaultConfig() Config {
	return Config{MaxMessages: 100, TopK: 10, MaxTasks: 20}
}

// Retriever runs the two candidate queries against the store.
type Retriever struct {
	store *store.Store
	cfg   Config
}

// New creates a retriever.
func New(st *store.Store, cfg Config) *Retriever {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 100
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 20
	}
	return &Retriever{store: st, cfg: cfg}
}

// SimilarMessages returns the top-K prior messages in the conversation
// ranked by similarity to the current message's embedding. The current
// message is excluded; an empty conversation or missing embedding yields
// an empty slice, never an error downstream.
func (r *Retriever) SimilarMessages(ctx context.Context, msg types.Message, vec []float32) ([]types.ContextSnippet, error) {
	if len(vec) == 0 {
		return nil, nil
	}

	prior, err := r.store.ConversationMessages(ctx, msg.Conversation(), msg.ID, r.cfg.MaxMessages)
	if err != nil {
		return nil, err
	}
	if len(prior) == 0 {
		return nil, nil
	}

	corpus := make([][]float32, len(prior))
	for i := range prior {
		corpus[i] = prior[i].Embedding
	}

	ranked := embedding.TopK(vec, corpus, r.cfg.TopK)
	out := make([]types.ContextSnippet, 0, len(ranked))
	for _, res := range ranked {
		out = append(out, types.ContextSnippet{
			Content:    prior[res.Index].Content,
			Similarity: res.Similarity,
			CreatedAt:  prior[res.Index].CreatedAt,
		})
	}

	logging.RetrievalDebug("SimilarMessages: %d prior, kept %d for message %s", len(prior), len(out), msg.ID)
	return out, nil
}

// RecentTasks returns the conversation's most recent pending/completed
// tasks, newest first.
func (r *Retriever) RecentTasks(ctx context.Context, key types.ConversationKey) ([]types.Task, error) {
	tasks, err := r.store.RecentTasks(ctx, key, r.cfg.MaxTasks)
	if err != nil {
		return nil, err
	}
	logging.RetrievalDebug("RecentTasks: %d for conversation %s", len(tasks), key)
	return tasks, nil
}
