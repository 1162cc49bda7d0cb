// Package store implements the message feed and task store over SQLite.
// Both collaborators are single-row mutation surfaces: no cross-row
// transaction discipline is required by the pipeline.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"taskpulse/internal/types"
)

// Store holds messages and tasks in a SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	subMu       sync.Mutex
	subscribers []chan types.Message
}

// NewStore initializes the SQLite database at the given path.
// Use ":memory:" for tests.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrate creates the required tables.
func (s *Store) migrate() error {
	messagesTable := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		embedding TEXT,
		processing_state TEXT NOT NULL DEFAULT 'unprocessed'
	);
	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id);
	CREATE INDEX IF NOT EXISTS idx_messages_state ON messages(processing_state);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	`

	tasksTable := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		confidence REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		due_date DATETIME,
		message_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		completed_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_pair ON tasks(sender_id, receiver_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);
	`

	for _, stmt := range []string{messagesTable, tasksTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Subscribe returns a channel that receives every message inserted after
// the call. The channel is buffered; slow consumers drop notifications
// rather than block writers (the backlog sweep picks strays up later).
func (s *Store) Subscribe() <-chan types.Message {
	ch := make(chan types.Message, 64)
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Store) notify(msg types.Message) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Close closes the database and all subscriber channels.
func (s *Store) Close() error {
	s.subMu.Lock()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.subMu.Unlock()
	return s.db.Close()
}
