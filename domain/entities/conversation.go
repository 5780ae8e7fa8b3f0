package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleModel MessageRole = "model"
)

// ConversationMessage is one turn of the transcript.
type ConversationMessage struct {
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`
	Role      MessageRole `json:"role" bson:"role"`
	Content   string      `json:"content" bson:"content"`
}

// Conversation is the transcript of one client session: the user's text
// turns and the model's transcribed responses. Audio is not persisted.
type Conversation struct {
	ID            string                `json:"id" bson:"_id"`
	StartedAt     time.Time             `json:"started_at" bson:"started_at"`
	LastMessageAt time.Time             `json:"last_message_at" bson:"last_message_at"`
	Messages      []ConversationMessage `json:"messages" bson:"messages"`
	Language      string                `json:"language" bson:"language"`
}

// NewConversation creates an empty conversation for a new session.
func NewConversation(language string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:            uuid.NewString(),
		StartedAt:     now,
		LastMessageAt: now,
		Messages:      make([]ConversationMessage, 0),
		Language:      language,
	}
}

// AddUserMessage appends a user text turn.
func (c *Conversation) AddUserMessage(content string) {
	c.addMessage(MessageRoleUser, content)
}

// AddModelMessage appends a model transcript part.
func (c *Conversation) AddModelMessage(content string) {
	c.addMessage(MessageRoleModel, content)
}

func (c *Conversation) addMessage(role MessageRole, content string) {
	now := time.Now()
	c.Messages = append(c.Messages, ConversationMessage{
		Timestamp: now,
		Role:      role,
		Content:   content,
	})
	c.LastMessageAt = now
}

// Empty reports whether the conversation has no messages yet.
func (c *Conversation) Empty() bool {
	return len(c.Messages) == 0
}

// Validate validates the conversation data.
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("conversation id is required")
	}
	for _, m := range c.Messages {
		if m.Role != MessageRoleUser && m.Role != MessageRoleModel {
			return errors.New("invalid message role")
		}
	}
	return nil
}
