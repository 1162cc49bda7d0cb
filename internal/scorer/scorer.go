// Package scorer ranks candidate tasks against an incoming message by
// combining semantic similarity with lexical and heuristic signals. Each
// retained candidate carries the reasons that earned it a slot, both for
// auditability and as context for the classifier.
package scorer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskpulse/internal/embedding"
	"taskpulse/internal/logging"
	"taskpulse/internal/types"
)

// Config tunes candidate retention.
type Config struct {
	// Threshold retains a candidate on semantic score alone.
	Threshold float64 `yaml:"threshold"`
	// HighSimilarity marks a similarity worth calling out as a reason.
	HighSimilarity float64 `yaml:"high_similarity"`
}

// DefaultConfig returns the source system's thresholds.
func DefaultConfig() Config {
	return Config{Threshold: 0.5, HighSimilarity: 0.7}
}

// Scorer computes relevance candidates. Cue predicates are pluggable so
// the heuristic set can be extended or swapped (other languages) without
// touching the combination logic.
type Scorer struct {
	resolver *embedding.Resolver
	cues     []Cue
	cfg      Config
	now      func() time.Time
}

// New creates a scorer with the default cue set.
func New(resolver *embedding.Resolver, cfg Config) *Scorer {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.5
	}
	if cfg.HighSimilarity == 0 {
		cfg.HighSimilarity = 0.7
	}
	return &Scorer{
		resolver: resolver,
		cues:     DefaultCues(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetCues replaces the cue predicate list.
func (s *Scorer) SetCues(cues []Cue) {
	s.cues = cues
}

// Score ranks the pending subset of tasks against the message. Only
// pending tasks are eligible for update/complete/cancel matching. The
// result is sorted descending by semantic score.
func (s *Scorer) Score(ctx context.Context, content string, vec []float32, tasks []types.Task) []types.ScoredTask {
	var out []types.ScoredTask
	now := s.now()

	for _, task := range tasks {
		if task.Status != types.StatusPending {
			continue
		}

		taskVec := s.resolver.ResolveText(ctx, task.Text())
		sim := embedding.CosineSimilarity(vec, taskVec)

		var reasons []string
		if sim > s.cfg.HighSimilarity {
			reasons = append(reasons, fmt.Sprintf("high semantic similarity (%.1f%%)", sim*100))
		}

		if common := sharedKeywords(content, task.Text()); len(common) > 0 {
			reasons = append(reasons, "shared keywords: "+strings.Join(common, ", "))
		}

		for _, cue := range s.cues {
			if cue.Match(content) {
				reasons = append(reasons, "contains "+cue.Name+" cue")
			}
		}

		switch age := now.Sub(task.CreatedAt); {
		case age < 24*time.Hour:
			reasons = append(reasons, "very recent task (< 1 day)")
		case age < 72*time.Hour:
			reasons = append(reasons, "recent task (< 3 days)")
		}

		if sim > s.cfg.Threshold || len(reasons) >= 2 {
			out = append(out, types.ScoredTask{Task: task, Score: sim, Reasons: reasons})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	logging.ScorerDebug("Scored %d tasks, retained %d candidates", len(tasks), len(out))
	return out
}

// sharedKeywords returns message words longer than 3 characters that the
// task text contains (substring containment, either direction).
func sharedKeywords(message, taskText string) []string {
	messageWords := strings.Fields(strings.ToLower(message))
	taskWords := strings.Fields(strings.ToLower(taskText))

	var common []string
	seen := make(map[string]bool)
	for _, word := range messageWords {
		word = strings.Trim(word, ".,!?;:\"'")
		if len(word) <= 3 || seen[word] {
			continue
		}
		for _, tw := range taskWords {
			tw = strings.Trim(tw, ".,!?;:\"'")
			if strings.Contains(tw, word) || strings.Contains(word, tw) {
				common = append(common, word)
				seen[word] = true
				break
			}
		}
	}
	return common
}
