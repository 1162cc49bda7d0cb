// Package classify turns a message plus its retrieved context into a
// structured task decision by prompting an LLM and parsing its JSON
// output leniently. A malformed response is "no action", never an error.
package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskpulse/internal/llm"
	"taskpulse/internal/logging"
	"taskpulse/internal/types"
)

// Input is everything the classifier sees for one message.
type Input struct {
	MessageText string
	Context     []types.ContextSnippet
	RecentTasks []types.Task
	Candidates  []types.ScoredTask
	CurrentDate time.Time
}

// Classifier is the action classification capability. A nil decision with
// a nil error means "no action".
type Classifier interface {
	Classify(ctx context.Context, input Input) (*types.Decision, error)
}

// LLMClassifier prompts a completion client and parses the response.
type LLMClassifier struct {
	client llm.Client
}

// NewLLMClassifier creates a classifier backed by the given client.
func NewLLMClassifier(client llm.Client) *LLMClassifier {
	return &LLMClassifier{client: client}
}

// Classify sends the structured context to the model. Provider errors are
// returned for the caller's retry policy; unparsable output is nil, nil.
func (c *LLMClassifier) Classify(ctx context.Context, input Input) (*types.Decision, error) {
	response, err := c.client.CompleteWithSystem(ctx, systemPrompt(input.CurrentDate), userPrompt(input))
	if err != nil {
		return nil, fmt.Errorf("classification request: %w", err)
	}

	decision := ParseDecision(response)
	if decision == nil {
		logging.ClassifyDebug("No actionable decision parsed from response (%d bytes)", len(response))
	} else {
		logging.Classify("Decision: action=%s confidence=%.2f matched=%q", decision.Action, decision.Confidence, decision.MatchedTaskID)
	}
	return decision, nil
}

func systemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are an intelligent task management AI. Analyze messages to determine the correct action: CREATE, UPDATE, COMPLETE, or CANCEL tasks.

TODAY'S DATE: %s

You have access to existing tasks with similarity scores and relevance reasons. Use them to:
1. Identify when a message refers to an existing task
2. Determine which aspects of the task should change
3. Provide the exact task ID for updates

UPDATE SIGNALS: direct references ("that task", "it", "this"), update keywords ("change to", "make it", "update", "modify", "revise", "adjust"), deadline changes ("move to tomorrow", "due next week instead"), priority changes ("make it urgent", "lower priority").
COMPLETION SIGNALS: "done with", "finished", "completed", "submitted the", "sent the", "delivered the".
CANCELLATION SIGNALS: "cancel", "forget about", "not needed anymore", "remove", "delete".

PRIORITY LEVELS:
- urgent: critical, immediate action needed
- high: important, deadline within 24-48 hours
- medium: moderate importance, can wait a few days
- low: nice to have, no strict deadline

RESPONSE FORMAT (JSON only):
{
  "task": "task content (new or updated)",
  "priority": "low|medium|high|urgent",
  "confidence": 0.0-1.0,
  "description": "what this action does",
  "due_date": "YYYY-MM-DD or null",
  "action": "create|update|complete|cancel",
  "matched_task_id": "exact task ID if updating/completing/cancelling",
  "update_fields": ["content", "priority", "due_date", "description"]
}
If the message contains no actionable task intent, respond with {"task": null}.`,
		now.Format("2006-01-02"))
}

func userPrompt(input Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CURRENT MESSAGE: %q\n\n", input.MessageText)

	b.WriteString("CONVERSATION CONTEXT:\n")
	if len(input.Context) == 0 {
		b.WriteString("No similar context available.\n")
	}
	for i, snip := range input.Context {
		fmt.Fprintf(&b, "Context %d (similarity: %.2f): %q\n", i+1, snip.Similarity, snip.Content)
	}

	b.WriteString("\nALL RECENT TASKS:\n")
	if len(input.RecentTasks) == 0 {
		b.WriteString("No recent tasks found.\n")
	}
	for i, task := range input.RecentTasks {
		fmt.Fprintf(&b, "Task %d (ID: %s): %q - Priority: %s, Status: %s, Due: %s, Created: %s\n",
			i+1, task.ID, task.Content, task.Priority, task.Status,
			formatDue(task.DueDate), task.CreatedAt.Format(time.RFC3339))
	}

	b.WriteString("\nMOST RELEVANT TASKS FOR POTENTIAL UPDATES:\n")
	if len(input.Candidates) == 0 {
		b.WriteString("No relevant tasks found for potential updates.\n")
	}
	for i, cand := range input.Candidates {
		fmt.Fprintf(&b, "Relevant Task %d (ID: %s, Similarity: %.1f%%):\n  Content: %q\n  Priority: %s, Status: %s\n  Due: %s\n  Reasons: %s\n\n",
			i+1, cand.Task.ID, cand.Score*100, cand.Task.Content, cand.Task.Priority,
			cand.Task.Status, formatDue(cand.Task.DueDate), strings.Join(cand.Reasons, ", "))
	}

	b.WriteString("\nAnalyze the message and determine the appropriate action. If updating an existing task, use the matched_task_id from the relevant tasks. Respond with JSON only.")
	return b.String()
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "No deadline"
	}
	return due.Format("2006-01-02")
}
