package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/gateway"
)

// Sender is the transport the client is built on.
type Sender interface {
	Send(ctx context.Context, path string, req gateway.Request) (json.RawMessage, error)
}

// Client exposes one typed method per chat API endpoint.
//
// Calls made on behalf of a believed-authenticated user (everything except
// signup, login, logout and restore) report a 401 to the unauthorized handler
// before returning the error.
type Client struct {
	sender Sender

	mu             sync.RWMutex
	onUnauthorized func(ctx context.Context)
}

func New(sender Sender) *Client {
	return &Client{sender: sender}
}

// SetUnauthorizedHandler installs fn as the stray-401 hook.
func (c *Client) SetUnauthorizedHandler(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) guard(ctx context.Context, err error) error {
	if err == nil || !errors.Is(err, gateway.ErrUnauthorized) {
		return err
	}
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
	return err
}

// CreateUser signs up a new account.
func (c *Client) CreateUser(ctx context.Context, profile domain.Profile) (domain.UserPatch, error) {
	raw, err := c.sender.Send(ctx, "users", gateway.Request{
		Method: http.MethodPost,
		Body:   map[string]any{"user": profile},
	})
	if err != nil {
		return domain.UserPatch{}, err
	}
	return requireUser(raw)
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.UserPatch, error) {
	raw, err := c.sender.Send(ctx, "users/login", gateway.Request{
		Method: http.MethodPost,
		Body:   map[string]any{"user": creds},
	})
	if err != nil {
		return domain.UserPatch{}, err
	}
	return requireUser(raw)
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := c.sender.Send(ctx, "users/logout", gateway.Request{Method: http.MethodDelete})
	return err
}

// RestoreUser asks the server who owns the current session. It returns nil
// when there is no session.
func (c *Client) RestoreUser(ctx context.Context) (*domain.UserPatch, error) {
	raw, err := c.sender.Send(ctx, "users/restore_user", gateway.Request{})
	if err != nil {
		return nil, err
	}
	env, err := decode[domain.UserEnvelope](raw)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

func (c *Client) ListRooms(ctx context.Context) (domain.RoomsPayload, error) {
	raw, err := c.sender.Send(ctx, "rooms", gateway.Request{})
	if err != nil {
		return domain.RoomsPayload{}, c.guard(ctx, err)
	}
	return decode[domain.RoomsPayload](raw)
}

func (c *Client) GetRoom(ctx context.Context, id domain.ID) (domain.RoomDetailPayload, error) {
	raw, err := c.sender.Send(ctx, "rooms/"+id.String(), gateway.Request{})
	if err != nil {
		return domain.RoomDetailPayload{}, c.guard(ctx, err)
	}
	payload, err := decode[domain.RoomDetailPayload](raw)
	if err != nil {
		return domain.RoomDetailPayload{}, err
	}
	if err := payload.Validate(); err != nil {
		return domain.RoomDetailPayload{}, err
	}
	return payload, nil
}

func (c *Client) CreateRoom(ctx context.Context, req domain.CreateRoomRequest) (domain.RoomPatch, error) {
	raw, err := c.sender.Send(ctx, "rooms", gateway.Request{
		Method: http.MethodPost,
		Body:   map[string]any{"room": req},
	})
	if err != nil {
		return domain.RoomPatch{}, c.guard(ctx, err)
	}
	room, err := decode[domain.RoomPatch](raw)
	if err != nil {
		return domain.RoomPatch{}, err
	}
	if room.ID == 0 {
		return domain.RoomPatch{}, fmt.Errorf("created room: %w", domain.ErrMissingID)
	}
	return room, nil
}

func (c *Client) DeleteRoom(ctx context.Context, id domain.ID) error {
	_, err := c.sender.Send(ctx, "rooms/"+id.String(), gateway.Request{Method: http.MethodDelete})
	return c.guard(ctx, err)
}

func (c *Client) CreateMessage(ctx context.Context, req domain.CreateMessageRequest) (domain.MessagePatch, error) {
	raw, err := c.sender.Send(ctx, "messages", gateway.Request{
		Method: http.MethodPost,
		Body:   map[string]any{"message": req},
	})
	if err != nil {
		return domain.MessagePatch{}, c.guard(ctx, err)
	}
	msg, err := decode[domain.MessagePatch](raw)
	if err != nil {
		return domain.MessagePatch{}, err
	}
	if msg.ID == 0 {
		return domain.MessagePatch{}, fmt.Errorf("created message: %w", domain.ErrMissingID)
	}
	return msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, id domain.ID) error {
	_, err := c.sender.Send(ctx, "messages/"+id.String(), gateway.Request{Method: http.MethodDelete})
	return c.guard(ctx, err)
}

func (c *Client) ListMentions(ctx context.Context) (domain.MentionsPayload, error) {
	raw, err := c.sender.Send(ctx, "mentions", gateway.Request{})
	if err != nil {
		return domain.MentionsPayload{}, c.guard(ctx, err)
	}
	return decode[domain.MentionsPayload](raw)
}

// ReadMention marks a mention read. The server may answer with the updated
// mention or with an empty body; the latter yields nil.
func (c *Client) ReadMention(ctx context.Context, id domain.ID) (*domain.MentionPatch, error) {
	raw, err := c.sender.Send(ctx, "mentions/"+id.String()+"/read", gateway.Request{Method: http.MethodPatch})
	if err != nil {
		return nil, c.guard(ctx, err)
	}
	mention, err := decode[domain.MentionPatch](raw)
	if err != nil {
		return nil, err
	}
	if mention.ID == 0 {
		return nil, nil
	}
	return &mention, nil
}

func requireUser(raw json.RawMessage) (domain.UserPatch, error) {
	env, err := decode[domain.UserEnvelope](raw)
	if err != nil {
		return domain.UserPatch{}, err
	}
	if env.User == nil {
		return domain.UserPatch{}, fmt.Errorf("%w: response carried no user", domain.ErrMalformedPayload)
	}
	return *env.User, nil
}

// decode parses raw into T. An empty or null body yields the zero T.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		if errors.Is(err, domain.ErrMalformedPayload) || errors.Is(err, domain.ErrMissingID) || errors.Is(err, domain.ErrKeyMismatch) {
			return v, err
		}
		return v, fmt.Errorf("%w: %w", domain.ErrMalformedPayload, err)
	}
	return v, nil
}
