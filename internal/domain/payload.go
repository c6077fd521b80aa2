package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Profile is the signup request body.
type Profile struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateRoomRequest is the room creation body.
type CreateRoomRequest struct {
	Name    string `json:"name"`
	OwnerID ID     `json:"ownerId"`
}

// CreateMessageRequest is the message creation body.
type CreateMessageRequest struct {
	RoomID ID     `json:"roomId"`
	Body   string `json:"body"`
}

// UserEnvelope is returned by signup, login and restore_user. User is nil when
// the server has no session for the caller. A bare user record (no "user"
// wrapper) is accepted too.
type UserEnvelope struct {
	User *UserPatch `json:"user"`
}

func (e *UserEnvelope) UnmarshalJSON(data []byte) error {
	e.User = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	raw, ok := fields["user"]
	if !ok {
		if _, bare := fields["id"]; !bare {
			return nil
		}
		raw = data
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}

	var user UserPatch
	if err := json.Unmarshal(raw, &user); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if user.ID == 0 {
		return ErrMissingID
	}
	e.User = &user
	return nil
}

// RoomsPayload is the GET rooms response.
type RoomsPayload struct {
	Rooms Batch[RoomPatch] `json:"rooms"`
	Users Batch[UserPatch] `json:"users"`
}

// RoomDetailPayload is the GET rooms/:id response.
type RoomDetailPayload struct {
	Room     RoomPatch           `json:"room"`
	Messages Batch[MessagePatch] `json:"messages"`
	Users    Batch[UserPatch]    `json:"users"`
}

func (p RoomDetailPayload) Validate() error {
	if p.Room.ID == 0 {
		return fmt.Errorf("room detail: %w", ErrMissingID)
	}
	return nil
}

// MentionsPayload is the GET mentions response.
type MentionsPayload struct {
	Mentions Batch[MentionPatch] `json:"mentions"`
	Messages Batch[MessagePatch] `json:"messages"`
	Users    Batch[UserPatch]    `json:"users"`
}
