package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/mentions"
	"github.com/weiawesome/chat-client/internal/store"
)

type Mentions struct {
	api   API
	store *store.Store
}

func NewMentions(api API, st *store.Store) *Mentions {
	return &Mentions{api: api, store: st}
}

// Fetch merges the current user's mentions with their messages and authors.
func (m *Mentions) Fetch(ctx context.Context) error {
	payload, err := m.api.ListMentions(ctx)
	if err != nil {
		return fmt.Errorf("fetch mentions: %w", err)
	}
	m.store.Dispatch(
		store.ReceiveMentions(payload.Mentions...),
		store.ReceiveMessages(payload.Messages...),
		store.ReceiveUsers(payload.Users...),
	)
	return nil
}

// MarkRead flips a mention to read once the server has acknowledged it. A
// failed call leaves the mention unread.
func (m *Mentions) MarkRead(ctx context.Context, id domain.ID) error {
	updated, err := m.api.ReadMention(ctx, id)
	if err != nil {
		return fmt.Errorf("read mention %s: %w", id, err)
	}

	events := []store.Event{store.ReadMention(id)}
	if updated != nil && updated.ID == id {
		events = append([]store.Event{store.ReceiveMention(*updated)}, events...)
	}
	m.store.Dispatch(events...)
	return nil
}

// Dismiss drops a mention from the local list without telling the server.
func (m *Mentions) Dismiss(id domain.ID) {
	m.store.Dispatch(store.RemoveMention(id))
}

// View aggregates the current mention list.
func (m *Mentions) View() mentions.View {
	return mentions.Aggregate(m.store.Snapshot())
}
