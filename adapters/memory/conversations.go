// Package memory provides in-memory repository implementations used when no
// database is configured, and by tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sawti/sawti-server/domain/entities"
	"github.com/sawti/sawti-server/domain/repositories"
)

// ConversationRepository keeps conversations in a map. Values are copied on
// the way in and out so callers cannot mutate stored state.
type ConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]entities.Conversation
}

var _ repositories.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates an empty in-memory repository.
func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		conversations: make(map[string]entities.Conversation),
	}
}

// Save implements repositories.ConversationRepository.
func (r *ConversationRepository) Save(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if err := conversation.Validate(); err != nil {
		return err
	}

	stored := *conversation
	stored.Messages = make([]entities.ConversationMessage, len(conversation.Messages))
	copy(stored.Messages, conversation.Messages)

	r.mu.Lock()
	r.conversations[conversation.ID] = stored
	r.mu.Unlock()
	return nil
}

// Get implements repositories.ConversationRepository.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*entities.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation ID cannot be empty")
	}

	r.mu.RLock()
	stored, ok := r.conversations[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	out := stored
	out.Messages = make([]entities.ConversationMessage, len(stored.Messages))
	copy(out.Messages, stored.Messages)
	return &out, nil
}

// Len reports the number of stored conversations.
func (r *ConversationRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}
