package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/chat-client/internal/audit"
	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/gateway"
	"github.com/weiawesome/chat-client/internal/store"
	"github.com/weiawesome/chat-client/pkg/log"
)

// API is the subset of the chat API the session manager drives.
type API interface {
	CreateUser(ctx context.Context, profile domain.Profile) (domain.UserPatch, error)
	Login(ctx context.Context, creds domain.Credentials) (domain.UserPatch, error)
	Logout(ctx context.Context) error
	RestoreUser(ctx context.Context) (*domain.UserPatch, error)
}

// Snapshots persists the current user and exposes the last known token.
type Snapshots interface {
	LoadUser(ctx context.Context) (*domain.User, error)
	SaveUser(ctx context.Context, user domain.User) error
	ClearUser(ctx context.Context) error
	Token(ctx context.Context) (string, error)
}

// Manager owns the session state machine. It is the only writer of the
// current user, in the store and in the persisted snapshot.
type Manager struct {
	api       API
	store     *store.Store
	snapshots Snapshots
	logger    zerolog.Logger

	mu       sync.Mutex
	state    State
	gen      uint64 // bumped by every start and end
	restores singleflight.Group
}

// anyGen makes start and end apply regardless of intervening session changes.
const anyGen = ^uint64(0)

var errSuperseded = errors.New("session changed while the request was in flight")

func New(api API, st *store.Store, snapshots Snapshots, logger zerolog.Logger) *Manager {
	return &Manager{
		api:       api,
		store:     st,
		snapshots: snapshots,
		logger:    logger.With().Str(log.FieldComponent, "session").Logger(),
	}
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentUser returns the current user as held by the store.
func (m *Manager) CurrentUser() (domain.User, bool) {
	return m.store.Snapshot().CurrentUser()
}

// Bootstrap decides the initial state from the persisted snapshot and starts
// the startup restore.
//
// With both a user snapshot and a token on record the session becomes
// Authenticated at once and the restore runs in the background; the returned
// Restore settles when it finishes. Otherwise the session passes through
// Restoring and Bootstrap returns only after the restore has settled.
func (m *Manager) Bootstrap(ctx context.Context) (*Restore, error) {
	ctx = m.withLogger(ctx)
	l := log.Ctx(ctx)

	user, err := m.snapshots.LoadUser(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("discarding unreadable session snapshot")
		user = nil
	}
	token, err := m.snapshots.Token(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("discarding unreadable token")
		token = ""
	}

	r := newRestore()

	if user != nil && token != "" {
		m.mu.Lock()
		if !m.state.CanTransition(Authenticated) {
			m.mu.Unlock()
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, Authenticated)
		}
		m.store.Dispatch(store.ReceiveCurrentUser(user.Patch()))
		m.setLocked(ctx, Authenticated)
		m.mu.Unlock()

		l.Debug().Int64(log.FieldUserID, int64(user.ID)).Msg("optimistic session from snapshot")
		go func() {
			r.settle(m.RestoreSession(ctx))
		}()
		return r, nil
	}

	if err := m.transition(ctx, Restoring); err != nil {
		return nil, err
	}
	r.settle(m.RestoreSession(ctx))
	return r, r.err
}

// RestoreSession asks the server who owns the session and reconciles local
// state with the answer. Concurrent calls share one request.
func (m *Manager) RestoreSession(ctx context.Context) (*domain.User, error) {
	ctx = m.withLogger(ctx)
	v, err, _ := m.restores.Do("restore", func() (any, error) {
		return m.restore(ctx)
	})
	if err != nil {
		return nil, err
	}
	user, _ := v.(*domain.User)
	return user, nil
}

// restore applies the server's answer only if no login, signup, logout or
// forced end happened while the request was in flight; otherwise the answer
// is stale and the current session stands.
func (m *Manager) restore(ctx context.Context) (*domain.User, error) {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	patch, err := m.api.RestoreUser(ctx)
	if err != nil {
		m.mu.Lock()
		if m.state == Restoring && m.gen == gen {
			m.setLocked(ctx, Anonymous)
		}
		m.mu.Unlock()
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("session restore failed")
		return nil, fmt.Errorf("restore session: %w", err)
	}

	if patch == nil {
		if !m.end(ctx, gen, audit.ActionRestore, "no server session") {
			return m.superseded(ctx)
		}
		return nil, nil
	}

	user, err := m.start(ctx, *patch, gen, audit.ActionRestore, "session restored")
	if errors.Is(err, errSuperseded) {
		return m.superseded(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (m *Manager) superseded(ctx context.Context) (*domain.User, error) {
	l := log.Ctx(ctx)
	l.Debug().Msg("discarding stale restore response")
	if user, ok := m.CurrentUser(); ok {
		return &user, nil
	}
	return nil, nil
}

// Login authenticates with username and password. A rejection leaves the
// state unchanged and is returned as *FormError; a 401 also matches
// ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	ctx = m.withLogger(ctx)
	patch, err := m.api.Login(ctx, creds)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, 0, creds.Username, "login failed")
		return domain.User{}, formError(err, true)
	}
	return m.start(ctx, patch, anyGen, audit.ActionLogin, "user logged in")
}

// Signup creates an account and logs it in. Validation failures are returned
// as *FormError.
func (m *Manager) Signup(ctx context.Context, profile domain.Profile) (domain.User, error) {
	ctx = m.withLogger(ctx)
	patch, err := m.api.CreateUser(ctx, profile)
	if err != nil {
		return domain.User{}, formError(err, false)
	}
	return m.start(ctx, patch, anyGen, audit.ActionSignup, "user signed up")
}

// Logout ends the session on the server and locally. A 401 means the server
// had already forgotten the session and still ends it locally; any other
// failure leaves everything unchanged.
func (m *Manager) Logout(ctx context.Context) error {
	ctx = m.withLogger(ctx)
	if err := m.api.Logout(ctx); err != nil && !errors.Is(err, gateway.ErrUnauthorized) {
		return fmt.Errorf("logout: %w", err)
	}
	m.end(ctx, anyGen, audit.ActionLogout, "user logged out")
	return nil
}

// EndSession clears the current user and the persisted snapshot without
// calling the server.
func (m *Manager) EndSession(ctx context.Context) {
	m.end(m.withLogger(ctx), anyGen, audit.ActionEnd, "session ended")
}

// HandleUnauthorized is the hook for a 401 met outside login, logout and
// restore: the server no longer knows the session, so it ends locally.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	ctx = m.withLogger(ctx)
	if m.State() == Anonymous && m.store.Snapshot().CurrentUserID == 0 {
		return
	}
	l := log.Ctx(ctx)
	l.Warn().Msg("server rejected the session")
	m.end(ctx, anyGen, audit.ActionExpired, "session expired on the server")
}

// start makes patch the current user. Unless gen is anyGen, it does nothing
// and returns errSuperseded when the session changed since gen was read.
func (m *Manager) start(ctx context.Context, patch domain.UserPatch, gen uint64, action, msg string) (domain.User, error) {
	if patch.ID == 0 {
		return domain.User{}, fmt.Errorf("start session: %w", domain.ErrMissingID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != anyGen && gen != m.gen {
		return domain.User{}, errSuperseded
	}
	if !m.state.CanTransition(Authenticated) {
		return domain.User{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, Authenticated)
	}

	next := m.store.Dispatch(store.ReceiveCurrentUser(patch))
	user, _ := next.CurrentUser()
	if err := m.snapshots.SaveUser(ctx, user); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to persist session snapshot")
	}
	m.gen++
	m.setLocked(ctx, Authenticated)

	audit.Log(ctx, action, user.ID, msg)
	return user, nil
}

// end clears the current user. It reports false, having done nothing, when
// gen is stale.
func (m *Manager) end(ctx context.Context, gen uint64, action, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != anyGen && gen != m.gen {
		return false
	}

	if err := m.snapshots.ClearUser(ctx); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to clear session snapshot")
	}
	prev := m.store.Snapshot().CurrentUserID
	m.store.Dispatch(store.RemoveCurrentUser())
	m.gen++
	m.setLocked(ctx, Anonymous)

	audit.Log(ctx, action, prev, msg)
	return true
}

func (m *Manager) transition(ctx context.Context, next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	m.setLocked(ctx, next)
	return nil
}

// setLocked moves to next. Callers hold mu and have checked the transition.
func (m *Manager) setLocked(ctx context.Context, next State) {
	if m.state == next {
		return
	}
	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldSessionState, next.String()).
		Str("previous", m.state.String()).
		Msg("session transition")
	m.state = next
}

func (m *Manager) withLogger(ctx context.Context) context.Context {
	return log.WithLogger(ctx, log.CtxOr(ctx, m.logger))
}
