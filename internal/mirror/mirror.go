package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/weiawesome/chat-client/internal/domain"
)

// Well-known keys, shared by every backend.
const (
	KeyCurrentUser = "currentUser"
	KeyToken       = "X-CSRF-Token"
	KeyCookies     = "sessionCookies"
)

var ErrNotFound = errors.New("mirror: key not found")

// Backend is a small synchronous key/value store.
type Backend interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete succeeds when key is already absent.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Mirror persists the last-known current user, the anti-forgery token and the
// session cookies across process restarts. It sits outside the entity store
// and is read at startup only.
type Mirror struct {
	backend Backend
}

func New(backend Backend) *Mirror {
	return &Mirror{backend: backend}
}

// LoadUser returns the persisted user snapshot, or nil when there is none.
func (m *Mirror) LoadUser(ctx context.Context) (*domain.User, error) {
	data, err := m.backend.Get(ctx, KeyCurrentUser)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load user snapshot: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to decode user snapshot: %w", err)
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (m *Mirror) SaveUser(ctx context.Context, user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user snapshot: %w", err)
	}
	if err := m.backend.Set(ctx, KeyCurrentUser, data); err != nil {
		return fmt.Errorf("failed to save user snapshot: %w", err)
	}
	return nil
}

func (m *Mirror) ClearUser(ctx context.Context) error {
	if err := m.backend.Delete(ctx, KeyCurrentUser); err != nil {
		return fmt.Errorf("failed to clear user snapshot: %w", err)
	}
	return nil
}

// Token returns the last observed anti-forgery token, or "" when none was seen.
func (m *Mirror) Token(ctx context.Context) (string, error) {
	data, err := m.backend.Get(ctx, KeyToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return string(data), nil
}

func (m *Mirror) SetToken(ctx context.Context, token string) error {
	if err := m.backend.Set(ctx, KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Cookies returns the persisted session cookies.
func (m *Mirror) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	data, err := m.backend.Get(ctx, KeyCookies)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}

	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to decode cookies: %w", err)
	}
	return cookies, nil
}

func (m *Mirror) SetCookies(ctx context.Context, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		if err := m.backend.Delete(ctx, KeyCookies); err != nil {
			return fmt.Errorf("failed to clear cookies: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := m.backend.Set(ctx, KeyCookies, data); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

func (m *Mirror) Close() error {
	return m.backend.Close()
}
