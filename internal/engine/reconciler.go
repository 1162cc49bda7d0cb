package engine

import (
	"context"
	"fmt"

	"taskpulse/internal/logging"
	"taskpulse/internal/store"
	"taskpulse/internal/types"
)

// FallbackConfig controls auto-matching when the classifier asks to
// update, complete, or cancel without a usable matched_task_id.
type FallbackConfig struct {
	// Enabled allows falling back to the top-scored candidate.
	Enabled bool `yaml:"enabled"`
	// MinScore is the minimum candidate score eligible for fallback.
	MinScore float64 `yaml:"min_score"`
}

// Reconciler applies classifier decisions to the task store. Each apply
// is a single guarded row operation, so re-running a decision is safe.
type Reconciler struct {
	store    *store.Store
	fallback FallbackConfig
}

// NewReconciler creates a reconciler with the given fallback policy.
func NewReconciler(st *store.Store, fallback FallbackConfig) *Reconciler {
	return &Reconciler{store: st, fallback: fallback}
}

// Apply executes a decision against the store. The candidate list is the
// scorer's output for this message, used only for fallback matching.
func (r *Reconciler) Apply(ctx context.Context, msg types.Message, d *types.Decision, candidates []types.ScoredTask) error {
	switch d.Action {
	case types.ActionUpdate:
		return r.applyUpdate(ctx, msg, d, candidates)
	case types.ActionComplete:
		return r.applyTerminal(ctx, d, candidates, r.store.CompleteTask, "complete")
	case types.ActionCancel:
		return r.applyTerminal(ctx, d, candidates, r.store.CancelTask, "cancel")
	default:
		return r.applyCreate(ctx, msg, d)
	}
}

// resolveTarget picks the task a mutating decision acts on. A supplied
// matched id is honored whenever the task exists: the classifier sees
// every recent task, not just the scored candidates, so a valid id may
// name a task the scorer did not retain. The fallback policy only runs
// when no usable id was supplied, and every substitution is logged at
// warn so silent mismatches are visible.
func (r *Reconciler) resolveTarget(ctx context.Context, d *types.Decision, candidates []types.ScoredTask, verb string) string {
	if d.MatchedTaskID != "" {
		if _, err := r.store.GetTask(ctx, d.MatchedTaskID); err == nil {
			return d.MatchedTaskID
		}
		logging.ReconcileWarn("Matched task id %q does not exist, trying fallback for %s", d.MatchedTaskID, verb)
	}

	if !r.fallback.Enabled || len(candidates) == 0 {
		return ""
	}
	top := candidates[0]
	if top.Score < r.fallback.MinScore {
		return ""
	}
	logging.ReconcileWarn("Fallback-matching %s to top candidate %s (score %.2f)", verb, top.Task.ID, top.Score)
	return top.Task.ID
}

func (r *Reconciler) applyCreate(ctx context.Context, msg types.Message, d *types.Decision) error {
	if d.Task == "" {
		logging.Reconcile("Suppressing create with empty task content (message %s)", msg.ID)
		return nil
	}

	task, err := r.store.InsertTask(ctx, types.Task{
		Content:     d.Task,
		Description: d.Description,
		Priority:    d.Priority,
		Confidence:  d.Confidence,
		DueDate:     d.DueDate,
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		ReceiverID:  msg.ReceiverID,
	})
	if err != nil {
		return err
	}

	logging.Reconcile("Created task %s from message %s", task.ID, msg.ID)
	return nil
}

func (r *Reconciler) applyUpdate(ctx context.Context, msg types.Message, d *types.Decision, candidates []types.ScoredTask) error {
	target := r.resolveTarget(ctx, d, candidates, "update")
	if target == "" {
		// An update with nothing to update becomes a create, so the
		// intent in the message is not lost.
		logging.Reconcile("Update decision has no target, creating instead (message %s)", msg.ID)
		return r.applyCreate(ctx, msg, d)
	}

	patch := store.TaskPatch{}
	if d.Updates(types.FieldContent) && d.Task != "" {
		patch.Content = &d.Task
	}
	if d.Updates(types.FieldDescription) && d.Description != "" {
		patch.Description = &d.Description
	}
	if d.Updates(types.FieldPriority) {
		patch.Priority = &d.Priority
	}
	if d.Updates(types.FieldDueDate) {
		patch.DueDate = d.DueDate
		patch.DueDateSet = true
	}

	if patch.Empty() {
		logging.ReconcileWarn("Update decision for task %s names no patchable fields, skipping", target)
		return nil
	}

	if err := r.store.PatchTask(ctx, target, patch); err != nil {
		return fmt.Errorf("apply update: %w", err)
	}
	logging.Reconcile("Updated task %s (fields: %v) from message %s", target, d.UpdateFields, msg.ID)
	return nil
}

func (r *Reconciler) applyTerminal(ctx context.Context, d *types.Decision, candidates []types.ScoredTask, op func(context.Context, string) (bool, error), verb string) error {
	target := r.resolveTarget(ctx, d, candidates, verb)
	if target == "" {
		logging.Reconcile("No target task to %s, skipping", verb)
		return nil
	}

	applied, err := op(ctx, target)
	if err != nil {
		return fmt.Errorf("apply %s: %w", verb, err)
	}
	if !applied {
		logging.Reconcile("Task %s not pending, %s is a no-op", target, verb)
	}
	return nil
}
