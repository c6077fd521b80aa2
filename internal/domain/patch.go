package domain

import "time"

// Patches are the wire form of entity records. Pointer fields distinguish a
// field that was absent from the payload (nil) from one set to its zero value,
// so that merging a partial payload preserves what the store already holds.

// UserPatch is a possibly partial User payload.
type UserPatch struct {
	ID       ID      `json:"id"`
	Username *string `json:"username,omitempty"`
}

func (p UserPatch) Key() ID                 { return p.ID }
func (p UserPatch) WithKey(id ID) UserPatch { p.ID = id; return p }

// Apply merges the present fields over base.
func (p UserPatch) Apply(base User) User {
	base.ID = p.ID
	if p.Username != nil {
		base.Username = *p.Username
	}
	return base
}

// RoomPatch is a possibly partial Room payload.
type RoomPatch struct {
	ID      ID      `json:"id"`
	Name    *string `json:"name,omitempty"`
	OwnerID *ID     `json:"ownerId,omitempty"`
}

func (p RoomPatch) Key() ID                 { return p.ID }
func (p RoomPatch) WithKey(id ID) RoomPatch { p.ID = id; return p }

func (p RoomPatch) Apply(base Room) Room {
	base.ID = p.ID
	if p.Name != nil {
		base.Name = *p.Name
	}
	if p.OwnerID != nil {
		base.OwnerID = *p.OwnerID
	}
	return base
}

// MessagePatch is a possibly partial Message payload.
type MessagePatch struct {
	ID        ID         `json:"id"`
	RoomID    *ID        `json:"roomId,omitempty"`
	AuthorID  *ID        `json:"authorId,omitempty"`
	Body      *string    `json:"body,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

func (p MessagePatch) Key() ID                    { return p.ID }
func (p MessagePatch) WithKey(id ID) MessagePatch { p.ID = id; return p }

func (p MessagePatch) Apply(base Message) Message {
	base.ID = p.ID
	if p.RoomID != nil {
		base.RoomID = *p.RoomID
	}
	if p.AuthorID != nil {
		base.AuthorID = *p.AuthorID
	}
	if p.Body != nil {
		base.Body = *p.Body
	}
	if p.CreatedAt != nil {
		base.CreatedAt = *p.CreatedAt
	}
	return base
}

// MentionPatch is a possibly partial Mention payload.
type MentionPatch struct {
	ID        ID    `json:"id"`
	UserID    *ID   `json:"userId,omitempty"`
	MessageID *ID   `json:"messageId,omitempty"`
	Read      *bool `json:"read,omitempty"`
}

func (p MentionPatch) Key() ID                    { return p.ID }
func (p MentionPatch) WithKey(id ID) MentionPatch { p.ID = id; return p }

func (p MentionPatch) Apply(base Mention) Mention {
	base.ID = p.ID
	if p.UserID != nil {
		base.UserID = *p.UserID
	}
	if p.MessageID != nil {
		base.MessageID = *p.MessageID
	}
	if p.Read != nil {
		base.Read = *p.Read
	}
	return base
}
