package session

import (
	"context"

	"github.com/weiawesome/chat-client/internal/domain"
)

// Restore is the pending outcome of a startup restore.
type Restore struct {
	done chan struct{}
	user *domain.User
	err  error
}

func newRestore() *Restore {
	return &Restore{done: make(chan struct{})}
}

func (r *Restore) settle(user *domain.User, err error) {
	r.user, r.err = user, err
	close(r.done)
}

// Done is closed once the restore has settled.
func (r *Restore) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the restore settles or ctx ends. The user is nil when the
// server reported no session.
func (r *Restore) Wait(ctx context.Context) (*domain.User, error) {
	select {
	case <-r.done:
		return r.user, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
