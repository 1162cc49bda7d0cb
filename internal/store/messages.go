package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskpulse/internal/logging"
	"taskpulse/internal/types"
)

// InsertMessage persists a new message and pushes it to live subscribers.
// A zero ID or CreatedAt is filled in.
func (s *Store) InsertMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.State == "" {
		msg.State = types.StateUnprocessed
	}

	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, content, sender_id, receiver_id, created_at, embedding, processing_state)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)`,
		msg.ID, msg.Content, msg.SenderID, msg.ReceiverID, msg.CreatedAt,
		encodeVector(msg.Embedding), string(msg.State),
	)
	s.mu.Unlock()
	if err != nil {
		return types.Message{}, fmt.Errorf("insert message: %w", err)
	}

	logging.StoreDebug("Inserted message %s (%d bytes)", msg.ID, len(msg.Content))
	s.notify(msg)
	return msg, nil
}

// Backlog returns messages whose processing has not completed, ordered by
// creation time, limited to n. This drives the startup sweep.
func (s *Store) Backlog(ctx context.Context, n int) ([]types.Message, error) {
	if n <= 0 {
		n = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, sender_id, receiver_id, created_at, COALESCE(embedding, ''), processing_state
		FROM messages
		WHERE processing_state != ?
		ORDER BY created_at ASC
		LIMIT ?`,
		string(types.StateApplied), n,
	)
	if err != nil {
		return nil, fmt.Errorf("backlog query: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// SetMessageEmbedding writes a computed embedding back to a message and
// advances its processing state. Populated at most once; an existing
// embedding is never overwritten.
func (s *Store) SetMessageEmbedding(ctx context.Context, id string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET embedding = ?, processing_state = ?
		WHERE id = ? AND embedding IS NULL`,
		encodeVector(vec), string(types.StateEmbedded), id,
	)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logging.StoreDebug("Embedding for %s already present, not overwritten", id)
	}
	return nil
}

// MessageState reads the persisted processing state of a message.
func (s *Store) MessageState(ctx context.Context, id string) (types.ProcessingState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT processing_state FROM messages WHERE id = ?`, id,
	).Scan(&state)
	if err != nil {
		return "", fmt.Errorf("message state: %w", err)
	}
	return types.ProcessingState(state), nil
}

// SetMessageState advances a message's processing state.
func (s *Store) SetMessageState(ctx context.Context, id string, state types.ProcessingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET processing_state = ? WHERE id = ?`,
		string(state), id,
	)
	if err != nil {
		return fmt.Errorf("set processing state: %w", err)
	}
	return nil
}

// ConversationMessages returns up to n prior messages in the conversation
// that already carry an embedding, excluding the given message id,
// newest first.
func (s *Store) ConversationMessages(ctx context.Context, key types.ConversationKey, excludeID string, n int) ([]types.Message, error) {
	if n <= 0 {
		n = 100
	}
	a, b := key.Participants()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, sender_id, receiver_id, created_at, COALESCE(embedding, ''), processing_state
		FROM messages
		WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		  AND embedding IS NOT NULL
		  AND id != ?
		ORDER BY created_at DESC
		LIMIT ?`,
		a, b, b, a, excludeID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("conversation messages query: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]types.Message, error) {
	var out []types.Message
	for rows.Next() {
		var m types.Message
		var raw, state string
		if err := rows.Scan(&m.ID, &m.Content, &m.SenderID, &m.ReceiverID, &m.CreatedAt, &raw, &state); err != nil {
			return nil, err
		}
		m.State = types.ProcessingState(state)
		if raw != "" {
			vec, err := parseVector(raw)
			if err != nil {
				// A corrupt embedding degrades to "no semantic signal".
				logging.StoreDebug("Skipping malformed embedding on message %s: %v", m.ID, err)
			} else {
				m.Embedding = vec
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
