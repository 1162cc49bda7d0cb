package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskpulse/internal/logging"
	"taskpulse/internal/types"
)

// InsertTask persists a new task and returns it with its assigned id.
func (s *Store) InsertTask(ctx context.Context, task types.Task) (types.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = types.StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, content, description, priority, confidence, status, due_date,
		                   message_id, sender_id, receiver_id, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Content, task.Description, string(task.Priority), task.Confidence,
		string(task.Status), nullTime(task.DueDate), task.MessageID, task.SenderID,
		task.ReceiverID, task.CreatedAt, task.UpdatedAt, nullTime(task.CompletedAt),
	)
	if err != nil {
		return types.Task{}, fmt.Errorf("insert task: %w", err)
	}

	logging.Store("Task %s created: %q priority=%s due=%v", task.ID, task.Content, task.Priority, task.DueDate)
	return task, nil
}

// TaskPatch names the fields an update decision may touch. Nil fields are
// left untouched; DueDateSet distinguishes "clear the due date" from
// "leave it alone". Status is never part of a patch.
type TaskPatch struct {
	Content     *string
	Description *string
	Priority    *types.Priority
	DueDate     *time.Time
	DueDateSet  bool
}

// Empty reports whether the patch touches nothing.
func (p TaskPatch) Empty() bool {
	return p.Content == nil && p.Description == nil && p.Priority == nil && !p.DueDateSet
}

// PatchTask updates only the named fields on a task. updated_at always
// advances with a patch.
func (s *Store) PatchTask(ctx context.Context, id string, patch TaskPatch) error {
	if patch.Empty() {
		return nil
	}

	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.DueDateSet {
		sets = append(sets, "due_date = ?")
		args = append(args, nullTime(patch.DueDate))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...,
	)
	if err != nil {
		return fmt.Errorf("patch task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("patch task %s: no such task", id)
	}

	logging.Store("Task %s patched (%d fields)", id, len(sets)-1)
	return nil
}

// CompleteTask marks a pending task completed and stamps completed_at.
// Returns false when the task is absent or already terminal; transitions
// out of completed/cancelled are not defined.
func (s *Store) CompleteTask(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(types.StatusCompleted), now, now, id, string(types.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("complete task %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("Task %s completed", id)
	}
	return n > 0, nil
}

// CancelTask marks a pending task cancelled. completed_at stays unset.
func (s *Store) CancelTask(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(types.StatusCancelled), time.Now().UTC(), id, string(types.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("cancel task %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("Task %s cancelled", id)
	}
	return n > 0, nil
}

// RecentTasks returns up to n most recent tasks in the conversation with
// status pending or completed, newest first.
func (s *Store) RecentTasks(ctx context.Context, key types.ConversationKey, n int) ([]types.Task, error) {
	if n <= 0 {
		n = 20
	}
	a, b := key.Participants()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, description, priority, confidence, status, due_date,
		       message_id, sender_id, receiver_id, created_at, updated_at, completed_at
		FROM tasks
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		  AND status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT ?`,
		a, b, b, a, string(types.StatusPending), string(types.StatusCompleted), n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent tasks query: %w", err)
	}
	defer rows.Close()

	var out []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// GetTask fetches a single task by id.
func (s *Store) GetTask(ctx context.Context, id string) (types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, description, priority, confidence, status, due_date,
		       message_id, sender_id, receiver_id, created_at, updated_at, completed_at
		FROM tasks WHERE id = ?`, id)

	return scanTask(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (types.Task, error) {
	var t types.Task
	var priority, status string
	var due, completed sql.NullTime
	err := row.Scan(&t.ID, &t.Content, &t.Description, &priority, &t.Confidence, &status,
		&due, &t.MessageID, &t.SenderID, &t.ReceiverID, &t.CreatedAt, &t.UpdatedAt, &completed)
	if err != nil {
		return types.Task{}, err
	}
	t.Priority = types.Priority(priority)
	t.Status = types.Status(status)
	if due.Valid {
		d := due.Time
		t.DueDate = &d
	}
	if completed.Valid {
		c := completed.Time
		t.CompletedAt = &c
	}
	return t, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
