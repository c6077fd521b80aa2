package store

import (
	"maps"

	"github.com/weiawesome/chat-client/internal/domain"
)

// State is one immutable snapshot of the normalized entity collections.
// Reducers never write into a map reachable from a published State; they
// clone the collection they touch, so a snapshot stays valid forever.
type State struct {
	Users    map[domain.ID]domain.User
	Rooms    map[domain.ID]domain.Room
	Messages map[domain.ID]domain.Message
	Mentions map[domain.ID]domain.Mention

	// CurrentUserID is zero when nobody is logged in.
	CurrentUserID domain.ID
}

// Empty returns a State with no entities and no current user.
func Empty() *State {
	return &State{
		Users:    map[domain.ID]domain.User{},
		Rooms:    map[domain.ID]domain.Room{},
		Messages: map[domain.ID]domain.Message{},
		Mentions: map[domain.ID]domain.Mention{},
	}
}

// CurrentUser resolves CurrentUserID against the user collection.
func (s *State) CurrentUser() (domain.User, bool) {
	if s.CurrentUserID == 0 {
		return domain.User{}, false
	}
	u, ok := s.Users[s.CurrentUserID]
	return u, ok
}

type patch[T any] interface {
	Key() domain.ID
	Apply(base T) T
}

func clone[T any](m map[domain.ID]T) map[domain.ID]T {
	if m == nil {
		return map[domain.ID]T{}
	}
	return maps.Clone(m)
}

func merge[T any, P patch[T]](m map[domain.ID]T, patches []P) map[domain.ID]T {
	if len(patches) == 0 {
		return m
	}
	next := clone(m)
	for _, p := range patches {
		next[p.Key()] = p.Apply(next[p.Key()])
	}
	return next
}

func remove[T any](m map[domain.ID]T, ids ...domain.ID) map[domain.ID]T {
	next := clone(m)
	for _, id := range ids {
		delete(next, id)
	}
	return next
}
