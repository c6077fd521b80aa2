package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/chat-client/internal/client"
	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/fakeapi"
	"github.com/weiawesome/chat-client/internal/gateway"
	"github.com/weiawesome/chat-client/internal/mirror"
	"github.com/weiawesome/chat-client/internal/store"
)

type harness struct {
	mirror  *mirror.Mirror
	store   *store.Store
	client  *client.Client
	manager *Manager
}

func newServer(t *testing.T) (*fakeapi.Server, string) {
	t.Helper()
	srv, err := fakeapi.New(fakeapi.Config{TokenSecret: "test", TokenTTL: time.Minute, BcryptCost: bcrypt.MinCost}, zerolog.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL + "/api/"
}

func newHarness(t *testing.T, baseURL string, m *mirror.Mirror) *harness {
	t.Helper()
	gw, err := gateway.New(context.Background(), gateway.Config{BaseURL: baseURL, Timeout: 5 * time.Second}, m, zerolog.Nop())
	require.NoError(t, err)

	st := store.New(zerolog.Nop())
	c := client.New(gw)
	mgr := New(c, st, m, zerolog.Nop())
	c.SetUnauthorizedHandler(mgr.HandleUnauthorized)

	return &harness{mirror: m, store: st, client: c, manager: mgr}
}

var garfield = domain.Credentials{Username: "garfield", Password: fakeapi.SeedPassword}

func TestBootstrap_BlockingWithoutSnapshot(t *testing.T) {
	_, url := newServer(t)
	h := newHarness(t, url, mirror.New(mirror.NewMemoryBackend()))

	r, err := h.manager.Bootstrap(context.Background())
	require.NoError(t, err)

	select {
	case <-r.Done():
	default:
		t.Fatal("blocking bootstrap returned before the restore settled")
	}
	user, err := r.Wait(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Equal(t, Anonymous, h.manager.State())
}

func TestLogin_Garfield(t *testing.T) {
	ctx := context.Background()
	_, url := newServer(t)
	h := newHarness(t, url, mirror.New(mirror.NewMemoryBackend()))
	_, err := h.manager.Bootstrap(ctx)
	require.NoError(t, err)

	user, err := h.manager.Login(ctx, garfield)
	require.NoError(t, err)
	assert.Equal(t, "garfield", user.Username)

	s := h.store.Snapshot()
	assert.Equal(t, user.ID, s.CurrentUserID)
	assert.Equal(t, domain.User{ID: user.ID, Username: "garfield"}, s.Users[user.ID])
	assert.Equal(t, Authenticated, h.manager.State())

	snapshot, err := h.mirror.LoadUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, user, *snapshot)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	_, url := newServer(t)
	h := newHarness(t, url, mirror.New(mirror.NewMemoryBackend()))
	_, err := h.manager.Bootstrap(ctx)
	require.NoError(t, err)

	_, err = h.manager.Login(ctx, domain.Credentials{Username: "garfield", Password: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Equal(t, []string{InvalidCredentialsMessage}, gateway.Messages(err))

	assert.Equal(t, Anonymous, h.manager.State())
	assert.Zero(t, h.store.Snapshot().CurrentUserID)
}

func TestSignup_ValidationMessages(t *testing.T) {
	ctx := context.Background()
	_, url := newServer(t)
	h := newHarness(t, url, mirror.New(mirror.NewMemoryBackend()))
	_, err := h.manager.Bootstrap(ctx)
	require.NoError(t, err)

	_, err = h.manager.Signup(ctx, domain.Profile{Username: "", Password: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrValidation)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	var formErr *FormError
	require.True(t, errors.As(err, &formErr))
	assert.Equal(t, []string{
		"Username can't be blank",
		"Password is too short (minimum is 6 characters)",
	}, formErr.Details)
	assert.Equal(t, Anonymous, h.manager.State())

	user, err := h.manager.Signup(ctx, domain.Profile{Username: "odie", Password: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "odie", user.Username)
	assert.Equal(t, Authenticated, h.manager.State())
}

func TestLogout_AfterServerReseed(t *testing.T) {
	ctx := context.Background()
	srv, url := newServer(t)
	h := newHarness(t, url, mirror.New(mirror.NewMemoryBackend()))
	_, err := h.manager.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = h.manager.Login(ctx, garfield)
	require.NoError(t, err)

	require.NoError(t, srv.Reseed())

	require.NoError(t, h.manager.Logout(ctx))
	assert.Equal(t, Anonymous, h.manager.State())
	assert.Zero(t, h.store.Snapshot().CurrentUserID)

	snapshot, err := h.mirror.LoadUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestBootstrap_OptimisticRestoreConfirms(t *testing.T) {
	ctx := context.Background()
	_, url := newServer(t)
	m := mirror.New(mirror.NewMemoryBackend())

	first := newHarness(t, url, m)
	_, err := first.manager.Bootstrap(ctx)
	require.NoError(t, err)
	user, err := first.manager.Login(ctx, garfield)
	require.NoError(t, err)

	// A restarted process over the same mirror.
	second := newHarness(t, url, m)
	r, err := second.manager.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, Authenticated, second.manager.State())
	assert.Equal(t, user.ID, second.store.Snapshot().CurrentUserID)

	restored, err := r.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, user.ID, restored.ID)
	assert.Equal(t, Authenticated, second.manager.State())
}

func TestBootstrap_OptimisticRestoreRejectsStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	srv, err := fakeapi.New(fakeapi.Config{TokenSecret: "test", TokenTTL: time.Minute, BcryptCost: bcrypt.MinCost}, zerolog.Nop())
	require.NoError(t, err)

	// Holds restore_user open so the optimistic state can be observed.
	var hold atomic.Bool
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hold.Load() && r.URL.Path == "/api/users/restore_user" {
			<-release
		}
		srv.Handler().ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	url := ts.URL + "/api/"
	m := mirror.New(mirror.NewMemoryBackend())

	first := newHarness(t, url, m)
	_, err = first.manager.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = first.manager.Login(ctx, garfield)
	require.NoError(t, err)

	require.NoError(t, srv.Reseed())

	hold.Store(true)
	second := newHarness(t, url, m)
	r, err := second.manager.Bootstrap(ctx)
	require.NoError(t, err)
	assert.Equal(t, Authenticated, second.manager.State(), "first paint is optimistic")
	assert.NotZero(t, second.store.Snapshot().CurrentUserID)
	close(release)

	restored, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, restored)
	assert.Equal(t, Anonymous, second.manager.State())
	assert.Zero(t, second.store.Snapshot().CurrentUserID)

	snapshot, err := m.LoadUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestHandleUnauthorized_EndsSessionOnStray401(t *testing.T) {
	ctx := context.Background()
	srv, url := newServer(t)
	h := newHarness(t, url, mirror.New(mirror.NewMemoryBackend()))
	_, err := h.manager.Bootstrap(ctx)
	require.NoError(t, err)
	_, err = h.manager.Login(ctx, garfield)
	require.NoError(t, err)

	require.NoError(t, srv.Reseed())

	_, err = h.client.ListMentions(ctx)
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)
	assert.Equal(t, Anonymous, h.manager.State())
	assert.Zero(t, h.store.Snapshot().CurrentUserID)
}

type stubAPI struct {
	restore    *domain.UserPatch
	restoreErr error
	logoutErr  error

	// When set, RestoreUser signals entered and blocks until gate closes.
	entered chan struct{}
	gate    chan struct{}
}

func (s *stubAPI) CreateUser(context.Context, domain.Profile) (domain.UserPatch, error) {
	return domain.UserPatch{}, errors.New("not implemented")
}

func (s *stubAPI) Login(_ context.Context, creds domain.Credentials) (domain.UserPatch, error) {
	if creds.Password == "" {
		return domain.UserPatch{}, &gateway.HTTPError{Status: http.StatusUnauthorized}
	}
	return domain.User{ID: 7, Username: creds.Username}.Patch(), nil
}

func (s *stubAPI) Logout(context.Context) error { return s.logoutErr }

func (s *stubAPI) RestoreUser(context.Context) (*domain.UserPatch, error) {
	if s.gate != nil {
		close(s.entered)
		<-s.gate
	}
	return s.restore, s.restoreErr
}

// seededManager returns a manager whose mirror holds garfield's snapshot and
// a token, so Bootstrap takes the optimistic path.
func seededManager(t *testing.T, api *stubAPI) (*Manager, *mirror.Mirror, *store.Store) {
	t.Helper()
	ctx := context.Background()
	m := mirror.New(mirror.NewMemoryBackend())
	require.NoError(t, m.SaveUser(ctx, domain.User{ID: 1, Username: "garfield"}))
	require.NoError(t, m.SetToken(ctx, "token"))
	st := store.New(zerolog.Nop())
	return New(api, st, m, zerolog.Nop()), m, st
}

func TestBootstrap_LateRestoreDoesNotUndoLogout(t *testing.T) {
	ctx := context.Background()
	garfield := domain.User{ID: 1, Username: "garfield"}.Patch()
	api := &stubAPI{restore: &garfield, entered: make(chan struct{}), gate: make(chan struct{})}
	mgr, m, st := seededManager(t, api)

	r, err := mgr.Bootstrap(ctx)
	require.NoError(t, err)
	<-api.entered
	require.Equal(t, Authenticated, mgr.State())

	require.NoError(t, mgr.Logout(ctx))
	close(api.gate)

	user, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	assert.Equal(t, Anonymous, mgr.State())
	assert.Zero(t, st.Snapshot().CurrentUserID)
	snapshot, err := m.LoadUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestBootstrap_LateEmptyRestoreDoesNotUndoLogin(t *testing.T) {
	ctx := context.Background()
	api := &stubAPI{entered: make(chan struct{}), gate: make(chan struct{})}
	mgr, m, st := seededManager(t, api)

	r, err := mgr.Bootstrap(ctx)
	require.NoError(t, err)
	<-api.entered

	jon, err := mgr.Login(ctx, domain.Credentials{Username: "jon", Password: "x"})
	require.NoError(t, err)
	close(api.gate)

	user, err := r.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, jon.ID, user.ID)

	assert.Equal(t, Authenticated, mgr.State())
	assert.Equal(t, jon.ID, st.Snapshot().CurrentUserID)
	snapshot, err := m.LoadUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "jon", snapshot.Username)
}

func TestBootstrap_UndisturbedRestoreStillApplies(t *testing.T) {
	ctx := context.Background()
	api := &stubAPI{}
	mgr, m, st := seededManager(t, api)

	r, err := mgr.Bootstrap(ctx)
	require.NoError(t, err)
	user, err := r.Wait(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	assert.Equal(t, Anonymous, mgr.State())
	assert.Zero(t, st.Snapshot().CurrentUserID)
	snapshot, err := m.LoadUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestLogout_OtherFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	api := &stubAPI{logoutErr: &gateway.HTTPError{Status: http.StatusInternalServerError}}
	m := mirror.New(mirror.NewMemoryBackend())
	mgr := New(api, store.New(zerolog.Nop()), m, zerolog.Nop())

	_, err := mgr.Login(ctx, domain.Credentials{Username: "jon", Password: "x"})
	require.NoError(t, err)

	err = mgr.Logout(ctx)
	require.Error(t, err)
	assert.Equal(t, Authenticated, mgr.State())
	user, ok := mgr.CurrentUser()
	assert.True(t, ok)
	assert.Equal(t, "jon", user.Username)

	snapshot, _ := m.LoadUser(ctx)
	assert.NotNil(t, snapshot)
}

func TestLogin_EmptyUnauthorizedBody(t *testing.T) {
	mgr := New(&stubAPI{}, store.New(zerolog.Nop()), mirror.New(mirror.NewMemoryBackend()), zerolog.Nop())

	_, err := mgr.Login(context.Background(), domain.Credentials{Username: "jon"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, []string{InvalidCredentialsMessage}, gateway.Messages(err))
}

func TestBootstrap_RestoreFailureSettlesAnonymous(t *testing.T) {
	api := &stubAPI{restoreErr: &gateway.TransportError{Method: "GET", Path: "users/restore_user", Err: errors.New("connection refused")}}
	mgr := New(api, store.New(zerolog.Nop()), mirror.New(mirror.NewMemoryBackend()), zerolog.Nop())

	r, err := mgr.Bootstrap(context.Background())
	assert.ErrorIs(t, err, gateway.ErrTransport)
	require.NotNil(t, r)
	assert.Equal(t, Anonymous, mgr.State())
}

func TestBootstrap_CorruptSnapshotIsTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	backend := mirror.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, mirror.KeyCurrentUser, []byte("{broken")))
	require.NoError(t, backend.Set(ctx, mirror.KeyToken, []byte("token")))

	api := &stubAPI{restore: func() *domain.UserPatch { p := domain.User{ID: 3, Username: "odie"}.Patch(); return &p }()}
	mgr := New(api, store.New(zerolog.Nop()), mirror.New(backend), zerolog.Nop())

	r, err := mgr.Bootstrap(ctx)
	require.NoError(t, err)
	user, err := r.Wait(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, domain.ID(3), user.ID)
	assert.Equal(t, Authenticated, mgr.State())
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Anonymous, Restoring, true},
		{Anonymous, Authenticated, true},
		{Restoring, Authenticated, true},
		{Restoring, Anonymous, true},
		{Restoring, Restoring, false},
		{Authenticated, Anonymous, true},
		{Authenticated, Restoring, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
