package feed

import (
	"context"

	"dmfeed/pkg/models"
	"dmfeed/pkg/store"
)

// Subscription is a live query handle. Close stops deliveries and may be
// called more than once.
type Subscription interface {
	Close()
}

// Source is the document store the feed reads from and writes to.
// Subscribe delivers pages newest first; ListBefore returns messages
// strictly older than the cursor, newest first.
type Source interface {
	Subscribe(convID string, limit int, onPage func([]models.Message), onErr func(error)) (Subscription, error)
	ListBefore(ctx context.Context, convID string, c store.Cursor, limit int) ([]models.Message, error)
	AddMessage(ctx context.Context, convID string, m models.Message) (models.Message, error)
	GetMessage(ctx context.Context, convID, msgID string) (models.Message, error)
	UpdateMessage(ctx context.Context, convID, msgID string, patch models.MessagePatch) (models.Message, error)
	EnsureConversation(ctx context.Context, convID string, participants []string) (models.Conversation, bool, error)
	MergeConversation(ctx context.Context, convID string, patch models.ConversationPatch) (models.Conversation, error)
}

// BlobRemover deletes uploaded images.
type BlobRemover interface {
	Delete(ref string) error
}

// StoreSource adapts a *store.Store to Source.
type StoreSource struct {
	Store *store.Store
}

func NewStoreSource(s *store.Store) *StoreSource {
	return &StoreSource{Store: s}
}

func (s *StoreSource) Subscribe(convID string, limit int, onPage func([]models.Message), onErr func(error)) (Subscription, error) {
	sub, err := s.Store.Subscribe(convID, limit, onPage, onErr)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *StoreSource) ListBefore(ctx context.Context, convID string, c store.Cursor, limit int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.ListBefore(convID, c, limit)
}

func (s *StoreSource) AddMessage(ctx context.Context, convID string, m models.Message) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	return s.Store.AddMessage(convID, m)
}

func (s *StoreSource) GetMessage(ctx context.Context, convID, msgID string) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	return s.Store.GetMessage(convID, msgID)
}

func (s *StoreSource) UpdateMessage(ctx context.Context, convID, msgID string, patch models.MessagePatch) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	return s.Store.UpdateMessage(convID, msgID, patch)
}

func (s *StoreSource) EnsureConversation(ctx context.Context, convID string, participants []string) (models.Conversation, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Conversation{}, false, err
	}
	return s.Store.EnsureConversation(convID, participants)
}

func (s *StoreSource) MergeConversation(ctx context.Context, convID string, patch models.ConversationPatch) (models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return models.Conversation{}, err
	}
	return s.Store.MergeConversation(convID, patch)
}
