// Package engine runs the ingestion pipeline: it sweeps the message
// backlog, follows the live feed, and pushes every message through
// embed -> retrieve -> score -> classify -> reconcile, serialized per
// conversation.
package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"taskpulse/internal/classify"
	"taskpulse/internal/embedding"
	"taskpulse/internal/logging"
	"taskpulse/internal/retrieval"
	"taskpulse/internal/scorer"
	"taskpulse/internal/store"
	"taskpulse/internal/types"
)

// Config tunes the ingestion loop.
type Config struct {
	// SweepLimit caps how many backlog messages one sweep pass takes.
	SweepLimit int `yaml:"sweep_limit"`
	// SweepDelay paces backlog submissions.
	SweepDelay time.Duration `yaml:"sweep_delay"`
	// SweepInterval is how often the live loop re-sweeps for strays.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// StageTimeout bounds each external call (embedding, classification).
	StageTimeout time.Duration `yaml:"stage_timeout"`
	// MaxRetries bounds retries of transient embedding and
	// classification failures within one pass.
	MaxRetries int `yaml:"max_retries"`
	// RetryBackoff is the base backoff, doubled per attempt.
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// Fallback is the matching policy for decisions without a valid
	// matched task id.
	Fallback FallbackConfig `yaml:"fallback"`
}

// DefaultConfig returns the source system's pacing with retries on.
func DefaultConfig() Config {
	return Config{
		SweepLimit:    50,
		SweepDelay:    200 * time.Millisecond,
		SweepInterval: time.Minute,
		StageTimeout:  30 * time.Second,
		MaxRetries:    2,
		RetryBackoff:  500 * time.Millisecond,
		Fallback:      FallbackConfig{Enabled: true, MinScore: 0},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SweepLimit <= 0 {
		c.SweepLimit = d.SweepLimit
	}
	if c.SweepDelay <= 0 {
		c.SweepDelay = d.SweepDelay
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = d.StageTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	return c
}

// Engine wires the pipeline stages together.
type Engine struct {
	store      *store.Store
	resolver   *embedding.Resolver
	retriever  *retrieval.Retriever
	scorer     *scorer.Scorer
	classifier classify.Classifier
	reconciler *Reconciler
	cfg        Config
	now        func() time.Time
}

// New assembles an engine from its stages.
func New(st *store.Store, resolver *embedding.Resolver, retriever *retrieval.Retriever, sc *scorer.Scorer, classifier classify.Classifier, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		store:      st,
		resolver:   resolver,
		retriever:  retriever,
		scorer:     sc,
		classifier: classifier,
		reconciler: NewReconciler(st, cfg.Fallback),
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run sweeps the backlog, then follows the live feed until ctx is
// cancelled. A periodic re-sweep picks up messages whose processing
// failed or whose live notification was dropped.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	d := newDispatcher(ctx, e.Process)
	defer d.close()

	logging.Engine("Ingestion loop starting")
	if err := e.sweep(ctx, d); err != nil {
		return err
	}

	feed := e.store.Subscribe()

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-feed:
				if !ok {
					return nil
				}
				d.submit(ctx, msg)
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(e.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := e.sweep(ctx, d); err != nil {
					logging.EngineWarn("Periodic sweep failed: %v", err)
				}
			}
		}
	})

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

// SweepOnce processes the current backlog serially and returns how many
// messages it handled. Used by the one-shot sweep command.
func (e *Engine) SweepOnce(ctx context.Context) (int, error) {
	backlog, err := e.store.Backlog(ctx, e.cfg.SweepLimit)
	if err != nil {
		return 0, err
	}

	logging.Engine("Sweep: %d messages in backlog", len(backlog))
	for i, msg := range backlog {
		if i > 0 {
			select {
			case <-ctx.Done():
				return i, ctx.Err()
			case <-time.After(e.cfg.SweepDelay):
			}
		}
		e.Process(ctx, msg)
	}
	return len(backlog), nil
}

func (e *Engine) sweep(ctx context.Context, d *dispatcher) error {
	backlog, err := e.store.Backlog(ctx, e.cfg.SweepLimit)
	if err != nil {
		return err
	}
	if len(backlog) > 0 {
		logging.Engine("Sweep: dispatching %d backlog messages", len(backlog))
	}
	for i, msg := range backlog {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.SweepDelay):
			}
		}
		d.submit(ctx, msg)
	}
	return nil
}

// Process runs one message through the full pipeline. Failures degrade:
// the message keeps a non-applied state and the next sweep retries it.
func (e *Engine) Process(ctx context.Context, msg types.Message) {
	// The in-memory copy can be stale: the feed, the sweep, and a
	// redelivery may all carry the same message. The persisted state is
	// authoritative, and reading it inside the serialized lane makes a
	// second delivery a no-op instead of a duplicate task.
	if state, err := e.store.MessageState(ctx, msg.ID); err != nil {
		logging.EngineWarn("State read failed for %s: %v", msg.ID, err)
	} else {
		msg.State = state
	}
	if msg.State == types.StateApplied {
		logging.EngineDebug("Message %s already applied, skipping", msg.ID)
		return
	}
	logging.EngineDebug("Processing message %s (state=%s)", msg.ID, msg.State)

	vec := e.embed(ctx, &msg)
	if vec == nil && len(msg.Content) > 0 {
		logging.EngineWarn("Message %s has no embedding, proceeding without semantic signal", msg.ID)
	}

	key := msg.Conversation()

	snippets, err := e.retriever.SimilarMessages(ctx, msg, vec)
	if err != nil {
		logging.EngineWarn("Context retrieval failed for %s: %v", msg.ID, err)
	}
	tasks, err := e.retriever.RecentTasks(ctx, key)
	if err != nil {
		logging.EngineWarn("Task retrieval failed for %s: %v", msg.ID, err)
	}

	// Scoring embeds candidate task texts, so it gets the same bound as
	// the other provider calls.
	sctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	candidates := e.scorer.Score(sctx, msg.Content, vec, tasks)
	cancel()

	decision, ok := e.classify(ctx, classify.Input{
		MessageText: msg.Content,
		Context:     snippets,
		RecentTasks: tasks,
		Candidates:  candidates,
		CurrentDate: e.now(),
	})
	if !ok {
		// Classification kept failing. The state stays short of
		// applied so the next sweep retries this message.
		return
	}
	if decision == nil {
		// No actionable intent. The message is fully processed.
		if err := e.store.SetMessageState(ctx, msg.ID, types.StateApplied); err != nil {
			logging.EngineWarn("State advance failed for %s: %v", msg.ID, err)
		}
		return
	}

	if err := e.store.SetMessageState(ctx, msg.ID, types.StateClassified); err != nil {
		logging.EngineWarn("State advance failed for %s: %v", msg.ID, err)
	}

	if err := e.reconciler.Apply(ctx, msg, decision, candidates); err != nil {
		logging.EngineWarn("Reconcile failed for %s: %v", msg.ID, err)
		return
	}

	if err := e.store.SetMessageState(ctx, msg.ID, types.StateApplied); err != nil {
		logging.EngineWarn("State advance failed for %s: %v", msg.ID, err)
	}
}

// embed resolves the message's embedding with bounded retry and persists
// a fresh one. Returns nil after exhausting retries.
func (e *Engine) embed(ctx context.Context, msg *types.Message) []float32 {
	backoff := e.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
		vec, persist := e.resolver.Resolve(sctx, msg.Content, msg.Embedding)
		cancel()

		if vec != nil {
			if persist {
				if err := e.store.SetMessageEmbedding(ctx, msg.ID, vec); err != nil {
					logging.EngineWarn("Persisting embedding for %s failed: %v", msg.ID, err)
				} else {
					msg.State = types.StateEmbedded
				}
			}
			msg.Embedding = vec
			return vec
		}

		if attempt >= e.cfg.MaxRetries || ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// classify calls the classifier with bounded retry on provider errors.
// Malformed output is a nil decision without error and is not retried.
// ok is false only when every attempt errored.
func (e *Engine) classify(ctx context.Context, input classify.Input) (decision *types.Decision, ok bool) {
	backoff := e.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
		decision, err := e.classifier.Classify(sctx, input)
		cancel()

		if err == nil {
			return decision, true
		}
		logging.EngineWarn("Classification attempt %d failed: %v", attempt+1, err)

		if attempt >= e.cfg.MaxRetries || ctx.Err() != nil {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
