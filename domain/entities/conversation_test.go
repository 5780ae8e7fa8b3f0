package entities

import (
	"testing"
	"time"
)

func TestNewConversation(t *testing.T) {
	conv := NewConversation("ar-EG")

	if conv.ID == "" {
		t.Error("NewConversation() should assign an ID")
	}
	if conv.Language != "ar-EG" {
		t.Errorf("Language = %q, want %q", conv.Language, "ar-EG")
	}
	if !conv.Empty() {
		t.Error("new conversation should be empty")
	}
	if conv.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}
}

func TestConversationAddMessages(t *testing.T) {
	conv := NewConversation("ar-EG")
	before := conv.LastMessageAt

	time.Sleep(time.Millisecond)
	conv.AddUserMessage("ما هي الخوارزمية؟")
	conv.AddModelMessage("الخوارزمية هي مجموعة خطوات لحل مشكلة")

	if len(conv.Messages) != 2 {
		t.Fatalf("Messages length = %d, want 2", len(conv.Messages))
	}
	if conv.Messages[0].Role != MessageRoleUser {
		t.Errorf("first role = %q, want %q", conv.Messages[0].Role, MessageRoleUser)
	}
	if conv.Messages[1].Role != MessageRoleModel {
		t.Errorf("second role = %q, want %q", conv.Messages[1].Role, MessageRoleModel)
	}
	if !conv.LastMessageAt.After(before) {
		t.Error("LastMessageAt should advance when messages are added")
	}
	if conv.Empty() {
		t.Error("conversation with messages should not be empty")
	}
}

func TestConversationValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Conversation)
		wantErr bool
	}{
		{
			name:    "valid conversation",
			mutate:  func(c *Conversation) { c.AddUserMessage("hello") },
			wantErr: false,
		},
		{
			name:    "missing id",
			mutate:  func(c *Conversation) { c.ID = "" },
			wantErr: true,
		},
		{
			name: "invalid role",
			mutate: func(c *Conversation) {
				c.Messages = append(c.Messages, ConversationMessage{Role: "system"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConversation("ar-EG")
			tt.mutate(conv)
			err := conv.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
