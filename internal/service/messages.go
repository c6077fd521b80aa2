package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/store"
)

type Messages struct {
	api   API
	store *store.Store
}

func NewMessages(api API, st *store.Store) *Messages {
	return &Messages{api: api, store: st}
}

// Create posts body to room and merges the stored message.
func (m *Messages) Create(ctx context.Context, room domain.ID, body string) (domain.Message, error) {
	msg, err := m.api.CreateMessage(ctx, domain.CreateMessageRequest{RoomID: room, Body: body})
	if err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}
	next := m.store.Dispatch(store.ReceiveMessage(msg))
	return next.Messages[msg.ID], nil
}

func (m *Messages) Destroy(ctx context.Context, id domain.ID) error {
	if err := m.api.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	m.store.Dispatch(store.RemoveMessage(id))
	return nil
}
