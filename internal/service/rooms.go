package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/store"
)

type Rooms struct {
	api   API
	store *store.Store
}

func NewRooms(api API, st *store.Store) *Rooms {
	return &Rooms{api: api, store: st}
}

// Fetch merges every room and the room owners.
func (r *Rooms) Fetch(ctx context.Context) error {
	payload, err := r.api.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("fetch rooms: %w", err)
	}
	r.store.Dispatch(
		store.ReceiveRooms(payload.Rooms...),
		store.ReceiveUsers(payload.Users...),
	)
	return nil
}

// FetchOne merges a room with its messages and their authors. Messages, room
// and users become visible together.
func (r *Rooms) FetchOne(ctx context.Context, id domain.ID) (domain.Room, error) {
	payload, err := r.api.GetRoom(ctx, id)
	if err != nil {
		return domain.Room{}, fmt.Errorf("fetch room %s: %w", id, err)
	}
	next := r.store.Dispatch(
		store.ReceiveMessages(payload.Messages...),
		store.ReceiveRoom(payload.Room),
		store.ReceiveUsers(payload.Users...),
	)
	return next.Rooms[payload.Room.ID], nil
}

// Create creates a room owned by the current user.
func (r *Rooms) Create(ctx context.Context, name string) (domain.Room, error) {
	owner := r.store.Snapshot().CurrentUserID
	if owner == 0 {
		return domain.Room{}, ErrNoSession
	}
	room, err := r.api.CreateRoom(ctx, domain.CreateRoomRequest{Name: name, OwnerID: owner})
	if err != nil {
		return domain.Room{}, fmt.Errorf("create room: %w", err)
	}
	next := r.store.Dispatch(store.ReceiveRoom(room))
	return next.Rooms[room.ID], nil
}

// Destroy deletes a room on the server, then evicts it and its messages.
func (r *Rooms) Destroy(ctx context.Context, id domain.ID) error {
	if err := r.api.DeleteRoom(ctx, id); err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	r.store.Dispatch(store.RemoveRoom(id))
	return nil
}

// SortedRooms returns the rooms of s in id order.
func SortedRooms(s *store.State) []domain.Room {
	rooms := make([]domain.Room, 0, len(s.Rooms))
	for _, room := range s.Rooms {
		rooms = append(rooms, room)
	}
	slices.SortFunc(rooms, func(a, b domain.Room) int { return cmp.Compare(a.ID, b.ID) })
	return rooms
}

// RoomMessages returns the messages of room in s, oldest first.
func RoomMessages(s *store.State, room domain.ID) []domain.Message {
	var out []domain.Message
	for _, m := range s.Messages {
		if m.RoomID == room {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b domain.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
