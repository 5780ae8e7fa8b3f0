package memory

import (
	"context"
	"testing"

	"github.com/sawti/sawti-server/domain/entities"
)

func TestConversationRepositorySaveAndGet(t *testing.T) {
	repo := NewConversationRepository()
	ctx := context.Background()

	conv := entities.NewConversation("ar-EG")
	conv.AddUserMessage("سؤال")

	if err := repo.Save(ctx, conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned nil for saved conversation")
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "سؤال" {
		t.Errorf("messages = %v", got.Messages)
	}

	// Mutating the returned copy must not affect stored state.
	got.AddModelMessage("إجابة")
	again, _ := repo.Get(ctx, conv.ID)
	if len(again.Messages) != 1 {
		t.Errorf("stored conversation mutated through returned copy")
	}
}

func TestConversationRepositorySaveUpdatesExisting(t *testing.T) {
	repo := NewConversationRepository()
	ctx := context.Background()

	conv := entities.NewConversation("ar-EG")
	if err := repo.Save(ctx, conv); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	conv.AddUserMessage("متابعة")
	if err := repo.Save(ctx, conv); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	if repo.Len() != 1 {
		t.Errorf("Len() = %d, want 1", repo.Len())
	}
	got, _ := repo.Get(ctx, conv.ID)
	if len(got.Messages) != 1 {
		t.Errorf("updated conversation has %d messages, want 1", len(got.Messages))
	}
}

func TestConversationRepositoryGetMissing(t *testing.T) {
	repo := NewConversationRepository()

	got, err := repo.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Error("Get() for missing ID should return nil")
	}

	if _, err := repo.Get(context.Background(), ""); err == nil {
		t.Error("Get() with empty ID should error")
	}

	if err := repo.Save(context.Background(), nil); err == nil {
		t.Error("Save(nil) should error")
	}
}
