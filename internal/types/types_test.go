package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConversationKey_OrderInsensitive(t *testing.T) {
	assert.Equal(t, NewConversationKey("alice", "bob"), NewConversationKey("bob", "alice"))
	assert.Equal(t, ConversationKey("alice|bob"), NewConversationKey("bob", "alice"))
}

func TestConversationKey_Participants(t *testing.T) {
	a, b := NewConversationKey("bob", "alice").Participants()
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)
}

func TestMessage_Conversation(t *testing.T) {
	m := Message{SenderID: "zoe", ReceiverID: "ann"}
	assert.Equal(t, ConversationKey("ann|zoe"), m.Conversation())
}

func TestTask_Text(t *testing.T) {
	assert.Equal(t, "buy milk", Task{Content: "buy milk"}.Text())
	assert.Equal(t, "buy milk from the corner shop",
		Task{Content: "buy milk", Description: "from the corner shop"}.Text())
}

func TestDecision_Updates(t *testing.T) {
	d := &Decision{UpdateFields: []string{FieldDueDate}}
	assert.True(t, d.Updates(FieldDueDate))
	assert.False(t, d.Updates(FieldContent))
}

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority(PriorityUrgent))
	assert.False(t, ValidPriority(Priority("asap")))
}
