package repositories

import (
	"context"

	"github.com/sawti/sawti-server/domain/entities"
)

// ConversationRepository persists session transcripts.
type ConversationRepository interface {
	// Save inserts the conversation on first call and updates it on
	// subsequent calls, keyed by its ID.
	Save(ctx context.Context, conversation *entities.Conversation) error

	// Get returns the conversation with the given ID, or nil when it
	// does not exist.
	Get(ctx context.Context, id string) (*entities.Conversation, error)
}
