// Package service implements the user-facing chat operations: each call
// talks to the API and merges the outcome into the store in one dispatch.
package service

import (
	"context"
	"errors"

	"github.com/weiawesome/chat-client/internal/domain"
)

var ErrNoSession = errors.New("no current user")

// API is the subset of the chat API the services use.
type API interface {
	ListRooms(ctx context.Context) (domain.RoomsPayload, error)
	GetRoom(ctx context.Context, id domain.ID) (domain.RoomDetailPayload, error)
	CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.RoomPatch, error)
	DeleteRoom(ctx context.Context, id domain.ID) error
	CreateMessage(ctx context.Context, req domain.CreateMessageRequest) (domain.MessagePatch, error)
	DeleteMessage(ctx context.Context, id domain.ID) error
	ListMentions(ctx context.Context) (domain.MentionsPayload, error)
	ReadMention(ctx context.Context, id domain.ID) (*domain.MentionPatch, error)
}
