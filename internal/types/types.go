// Package types holds the shared data model for the task extraction
// pipeline: messages, tasks, classifier decisions, and the conversation
// key that scopes retrieval and reconciliation.
package types

import (
	"strings"
	"time"
)

// Priority is the urgency level assigned to a task by the classifier.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the four known levels.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status is the lifecycle state of a task. Transitions are monotonic:
// pending -> completed or pending -> cancelled. Reopening is unsupported.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ProcessingState tracks how far a message has travelled through the
// pipeline. The original system overloaded "embedding is NULL" as the
// unprocessed marker, which permanently skips a message whose
// classification failed once; the explicit state makes that retryable.
type ProcessingState string

const (
	StateUnprocessed ProcessingState = "unprocessed"
	StateEmbedded    ProcessingState = "embedded"
	StateClassified  ProcessingState = "classified"
	StateApplied     ProcessingState = "applied"
)

// Message is a chat message between two users. Immutable except for the
// embedding, which is populated at most once, and the processing state.
type Message struct {
	ID         string
	Content    string
	SenderID   string
	ReceiverID string
	CreatedAt  time.Time
	Embedding  []float32
	State      ProcessingState
}

// Conversation returns the key scoping this message's retrieval.
func (m Message) Conversation() ConversationKey {
	return NewConversationKey(m.SenderID, m.ReceiverID)
}

// Task is an actionable item extracted from a message. Created only by the
// reconciler acting on a create decision; never deleted by this engine.
type Task struct {
	ID          string
	Content     string
	Description string
	Priority    Priority
	Confidence  float64
	Status      Status
	DueDate     *time.Time
	MessageID   string
	SenderID    string
	ReceiverID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Conversation returns the key scoping this task's retrieval.
func (t Task) Conversation() ConversationKey {
	return NewConversationKey(t.SenderID, t.ReceiverID)
}

// Text returns the combined content and description, the text scored
// against incoming messages.
func (t Task) Text() string {
	if t.Description == "" {
		return t.Content
	}
	return t.Content + " " + t.Description
}

// ConversationKey identifies the unordered pair of participants. The two
// ids are sorted so {a,b} and {b,a} produce the same key.
type ConversationKey string

// NewConversationKey normalizes a participant pair into a key.
func NewConversationKey(a, b string) ConversationKey {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return ConversationKey(a + "|" + b)
}

// Participants returns the two participant ids in normalized order.
func (k ConversationKey) Participants() (string, string) {
	i := strings.IndexByte(string(k), '|')
	if i < 0 {
		return string(k), ""
	}
	return string(k)[:i], string(k)[i+1:]
}

// Action is the mutation a decision requests against the task store.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

// Task fields a decision's update may patch.
const (
	FieldContent     = "content"
	FieldPriority    = "priority"
	FieldDueDate     = "due_date"
	FieldDescription = "description"
)

// Decision is the structured output of the action classifier. A nil
// *Decision means "no action".
type Decision struct {
	Task          string
	Priority      Priority
	Confidence    float64
	Description   string
	DueDate       *time.Time
	Action        Action
	MatchedTaskID string
	UpdateFields  []string
}

// Updates returns true if the decision names the given update field.
func (d *Decision) Updates(field string) bool {
	for _, f := range d.UpdateFields {
		if f == field {
			return true
		}
	}
	return false
}

// ContextSnippet is a prior message surfaced as conversational context for
// the classifier, with its similarity to the current message.
type ContextSnippet struct {
	Content    string
	Similarity float64
	CreatedAt  time.Time
}

// ScoredTask is a pending task surfaced by the relevance scorer as a
// plausible referent of the incoming message.
type ScoredTask struct {
	Task    Task
	Score   float64
	Reasons []string
}
