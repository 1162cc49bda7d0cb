package classify

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"taskpulse/internal/logging"
	"taskpulse/internal/types"
)

// ParseDecision extracts a task decision from raw model output. Models
// wrap JSON in markdown fences or chat filler, so the parser locates the
// outermost object before reading fields. Anything unparsable, and any
// create with an empty task, comes back nil.
func ParseDecision(response string) *types.Decision {
	raw := extractJSON(response)
	if raw == "" {
		logging.ClassifyDebug("No JSON object found in response")
		return nil
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		logging.ClassifyDebug("Response JSON is not an object")
		return nil
	}

	task := strings.TrimSpace(parsed.Get("task").String())
	action, ok := normalizeAction(parsed.Get("action").String())
	if !ok {
		// Out-of-schema actions ("none", "no_action", ...) mean the
		// model declined; they never mutate anything.
		logging.ClassifyDebug("Unrecognized action %q, treating as no action", parsed.Get("action").String())
		return nil
	}

	// An empty or literal-null task never creates anything.
	if action == types.ActionCreate && (task == "" || strings.EqualFold(task, "null")) {
		return nil
	}

	decision := &types.Decision{
		Task:          task,
		Priority:      normalizePriority(parsed.Get("priority").String()),
		Confidence:    clamp01(parsed.Get("confidence").Float()),
		Description:   strings.TrimSpace(parsed.Get("description").String()),
		Action:        action,
		MatchedTaskID: strings.TrimSpace(parsed.Get("matched_task_id").String()),
	}

	if due := parsed.Get("due_date"); due.Exists() && due.Type == gjson.String {
		if t, err := time.Parse("2006-01-02", due.String()); err == nil {
			decision.DueDate = &t
		} else {
			logging.ClassifyDebug("Ignoring unparsable due_date %q", due.String())
		}
	}

	for _, field := range parsed.Get("update_fields").Array() {
		if name, ok := knownField(field.String()); ok {
			decision.UpdateFields = append(decision.UpdateFields, name)
		}
	}

	return decision
}

// extractJSON strips markdown fences and slices out the outermost
// {...} block.
func extractJSON(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return ""
	}
	return cleaned[start : end+1]
}

// normalizeAction maps the model's action string onto the four known
// actions. A missing action with a task present means create; anything
// else out of schema is not an action at all.
func normalizeAction(s string) (types.Action, bool) {
	switch types.Action(strings.ToLower(strings.TrimSpace(s))) {
	case "", types.ActionCreate:
		return types.ActionCreate, true
	case types.ActionUpdate:
		return types.ActionUpdate, true
	case types.ActionComplete:
		return types.ActionComplete, true
	case types.ActionCancel:
		return types.ActionCancel, true
	default:
		return "", false
	}
}

func normalizePriority(s string) types.Priority {
	switch types.Priority(strings.ToLower(strings.TrimSpace(s))) {
	case types.PriorityLow:
		return types.PriorityLow
	case types.PriorityHigh:
		return types.PriorityHigh
	case types.PriorityUrgent:
		return types.PriorityUrgent
	default:
		return types.PriorityMedium
	}
}

func knownField(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case types.FieldContent:
		return types.FieldContent, true
	case types.FieldPriority:
		return types.FieldPriority, true
	case types.FieldDueDate:
		return types.FieldDueDate, true
	case types.FieldDescription:
		return types.FieldDescription, true
	default:
		return "", false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
