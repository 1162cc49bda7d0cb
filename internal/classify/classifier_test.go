package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpulse/internal/types"
)

// scriptedClient replays a fixed response and records the prompts.
type scriptedClient struct {
	response     string
	err          error
	systemPrompt string
	userPrompt   string
}

func (c *scriptedClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.systemPrompt = systemPrompt
	c.userPrompt = userPrompt
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func testInput() Input {
	due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	return Input{
		MessageText: "move the report deadline to friday",
		Context: []types.ContextSnippet{
			{Content: "I'll finish the report this week", Similarity: 0.82},
		},
		RecentTasks: []types.Task{
			{ID: "t-1", Content: "finish the report", Priority: types.PriorityHigh,
				Status: types.StatusPending, DueDate: &due},
		},
		Candidates: []types.ScoredTask{
			{Task: types.Task{ID: "t-1", Content: "finish the report",
				Priority: types.PriorityHigh, Status: types.StatusPending, DueDate: &due},
				Score:   0.82,
				Reasons: []string{"shared keywords: report", "contains modification cue"}},
		},
		CurrentDate: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestClassify_ParsesDecision(t *testing.T) {
	client := &scriptedClient{response: `{
		"task": "finish the report",
		"action": "update",
		"matched_task_id": "t-1",
		"update_fields": ["due_date"],
		"due_date": "2026-09-04",
		"confidence": 0.85
	}`}

	decision, err := NewLLMClassifier(client).Classify(context.Background(), testInput())
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, types.ActionUpdate, decision.Action)
	assert.Equal(t, "t-1", decision.MatchedTaskID)
	assert.Equal(t, []string{"due_date"}, decision.UpdateFields)
}

func TestClassify_MalformedIsNoActionNotError(t *testing.T) {
	client := &scriptedClient{response: "no task here, sorry"}

	decision, err := NewLLMClassifier(client).Classify(context.Background(), testInput())
	require.NoError(t, err)
	assert.Nil(t, decision)
}

func TestClassify_ProviderErrorPropagates(t *testing.T) {
	client := &scriptedClient{err: errors.New("rate limited")}

	decision, err := NewLLMClassifier(client).Classify(context.Background(), testInput())
	require.Error(t, err)
	assert.Nil(t, decision)
}

func TestClassify_PromptCarriesAllSections(t *testing.T) {
	client := &scriptedClient{response: `{"task": null}`}
	_, err := NewLLMClassifier(client).Classify(context.Background(), testInput())
	require.NoError(t, err)

	assert.Contains(t, client.systemPrompt, "TODAY'S DATE: 2026-09-01")
	assert.Contains(t, client.systemPrompt, "RESPONSE FORMAT")

	for _, section := range []string{
		"CURRENT MESSAGE",
		"CONVERSATION CONTEXT",
		"ALL RECENT TASKS",
		"MOST RELEVANT TASKS FOR POTENTIAL UPDATES",
	} {
		assert.Contains(t, client.userPrompt, section)
	}
	assert.Contains(t, client.userPrompt, "move the report deadline to friday")
	assert.Contains(t, client.userPrompt, "t-1")
	assert.Contains(t, client.userPrompt, "Similarity: 82.0%")
	assert.Contains(t, client.userPrompt, "shared keywords: report")
}

func TestClassify_EmptyContextSections(t *testing.T) {
	client := &scriptedClient{response: `{"task": null}`}
	input := Input{
		MessageText: "hi",
		CurrentDate: time.Now(),
	}
	_, err := NewLLMClassifier(client).Classify(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, strings.Contains(client.userPrompt, "No similar context available."))
	assert.True(t, strings.Contains(client.userPrompt, "No recent tasks found."))
	assert.True(t, strings.Contains(client.userPrompt, "No relevant tasks found for potential updates."))
}
