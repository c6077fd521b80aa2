package store

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/weiawesome/chat-client/pkg/log"
)

// Store owns the current State. Dispatch serializes writers; readers take
// lock-free snapshots. Every event group passed to one Dispatch call becomes
// visible at once, so a reader never observes half of a logical action.
type Store struct {
	mu     sync.Mutex
	state  atomic.Pointer[State]
	logger zerolog.Logger
}

// New creates a store holding an empty State.
func New(logger zerolog.Logger) *Store {
	s := &Store{
		logger: logger.With().Str(log.FieldComponent, "store").Logger(),
	}
	s.state.Store(Empty())
	return s
}

// Dispatch applies events in order and publishes the resulting state.
func (s *Store) Dispatch(events ...Event) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Load()
	for _, e := range events {
		next = Reduce(next, e)
		s.logger.Debug().Str(log.FieldEvent, e.Name()).Msg("dispatch")
	}
	s.state.Store(next)
	return next
}

// Snapshot returns the latest published state.
func (s *Store) Snapshot() *State {
	return s.state.Load()
}
