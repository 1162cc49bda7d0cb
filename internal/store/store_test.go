package store

import (
	"context"
	"testing"
	"time"

	"taskpulse/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertMessage_FillsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg, err := s.InsertMessage(ctx, types.Message{
		Content:    "can you review the doc",
		SenderID:   "alice",
		ReceiverID: "bob",
	})
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected generated id")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
	if msg.State != types.StateUnprocessed {
		t.Errorf("expected unprocessed state, got %s", msg.State)
	}
}

func TestBacklog_OrderAndFiltering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i, state := range []types.ProcessingState{
		types.StateApplied, types.StateUnprocessed, types.StateEmbedded, types.StateClassified,
	} {
		_, err := s.InsertMessage(ctx, types.Message{
			ID:         string(rune('a' + i)),
			Content:    "m",
			SenderID:   "alice",
			ReceiverID: "bob",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			State:      state,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	backlog, err := s.Backlog(ctx, 10)
	if err != nil {
		t.Fatalf("Backlog: %v", err)
	}
	if len(backlog) != 3 {
		t.Fatalf("expected 3 backlog messages, got %d", len(backlog))
	}
	// Oldest first, applied excluded.
	want := []string{"b", "c", "d"}
	for i, msg := range backlog {
		if msg.ID != want[i] {
			t.Errorf("backlog[%d] = %s, want %s", i, msg.ID, want[i])
		}
	}
}

func TestBacklog_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.InsertMessage(ctx, types.Message{
			Content: "m", SenderID: "a", ReceiverID: "b",
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatal(err)
		}
	}

	backlog, err := s.Backlog(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(backlog) != 2 {
		t.Errorf("expected limit 2, got %d", len(backlog))
	}
}

func TestSetMessageEmbedding_PopulatedAtMostOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg, err := s.InsertMessage(ctx, types.Message{
		Content: "m", SenderID: "a", ReceiverID: "b",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetMessageEmbedding(ctx, msg.ID, []float32{1, 2, 3}); err != nil {
		t.Fatalf("first SetMessageEmbedding: %v", err)
	}
	// Second write must be a no-op, not an overwrite.
	if err := s.SetMessageEmbedding(ctx, msg.ID, []float32{9, 9, 9}); err != nil {
		t.Fatalf("second SetMessageEmbedding: %v", err)
	}

	got, err := s.ConversationMessages(ctx, msg.Conversation(), "other", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 embedded message, got %d", len(got))
	}
	if len(got[0].Embedding) != 3 || got[0].Embedding[0] != 1 {
		t.Errorf("embedding was overwritten: %v", got[0].Embedding)
	}
	if got[0].State != types.StateEmbedded {
		t.Errorf("expected embedded state, got %s", got[0].State)
	}
}

func TestMessageState_TracksAdvancement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg, err := s.InsertMessage(ctx, types.Message{
		Content: "m", SenderID: "a", ReceiverID: "b",
	})
	if err != nil {
		t.Fatal(err)
	}

	state, err := s.MessageState(ctx, msg.ID)
	if err != nil {
		t.Fatalf("MessageState: %v", err)
	}
	if state != types.StateUnprocessed {
		t.Errorf("expected unprocessed, got %s", state)
	}

	if err := s.SetMessageState(ctx, msg.ID, types.StateApplied); err != nil {
		t.Fatal(err)
	}
	state, err = s.MessageState(ctx, msg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if state != types.StateApplied {
		t.Errorf("expected applied, got %s", state)
	}

	if _, err := s.MessageState(ctx, "no-such-message"); err == nil {
		t.Error("expected error for unknown message id")
	}
}

func TestConversationMessages_ScopeAndExclusion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insert := func(id, sender, receiver string, embedded bool) {
		t.Helper()
		var vec []float32
		if embedded {
			vec = []float32{1}
		}
		if _, err := s.InsertMessage(ctx, types.Message{
			ID: id, Content: "m", SenderID: sender, ReceiverID: receiver, Embedding: vec,
		}); err != nil {
			t.Fatal(err)
		}
	}

	insert("m1", "alice", "bob", true)
	insert("m2", "bob", "alice", true) // reverse direction, same conversation
	insert("m3", "alice", "carol", true)
	insert("m4", "alice", "bob", false) // no embedding
	insert("m5", "alice", "bob", true)  // the current message

	got, err := s.ConversationMessages(ctx, types.NewConversationKey("alice", "bob"), "m5", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	for _, m := range got {
		if m.ID == "m3" || m.ID == "m4" || m.ID == "m5" {
			t.Errorf("message %s should have been excluded", m.ID)
		}
	}
}

func TestSubscribe_ReceivesInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	feed := s.Subscribe()
	inserted, err := s.InsertMessage(ctx, types.Message{
		Content: "live one", SenderID: "a", ReceiverID: "b",
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-feed:
		if msg.ID != inserted.ID {
			t.Errorf("received %s, want %s", msg.ID, inserted.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no live notification received")
	}
}
