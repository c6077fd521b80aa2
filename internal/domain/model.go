package domain

import (
	"strconv"
	"time"
)

// ID identifies an entity within its kind.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// User is a chat account. Credential material never reaches the client.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

// Room is a named chat room owned by a user.
type Room struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	OwnerID ID     `json:"ownerId"`
}

// Message is an immutable post in a room.
type Message struct {
	ID        ID        `json:"id"`
	RoomID    ID        `json:"roomId"`
	AuthorID  ID        `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// Mention links a message to a user it references.
// At most one mention exists per (UserID, MessageID) pair.
type Mention struct {
	ID        ID   `json:"id"`
	UserID    ID   `json:"userId"`
	MessageID ID   `json:"messageId"`
	Read      bool `json:"read"`
}

// Patch converts a full record into a patch carrying every field.
func (u User) Patch() UserPatch {
	username := u.Username
	return UserPatch{ID: u.ID, Username: &username}
}

// Patch converts a full record into a patch carrying every field.
func (r Room) Patch() RoomPatch {
	name, owner := r.Name, r.OwnerID
	return RoomPatch{ID: r.ID, Name: &name, OwnerID: &owner}
}

// Patch converts a full record into a patch carrying every field.
func (m Message) Patch() MessagePatch {
	room, author, body, created := m.RoomID, m.AuthorID, m.Body, m.CreatedAt
	return MessagePatch{ID: m.ID, RoomID: &room, AuthorID: &author, Body: &body, CreatedAt: &created}
}

// Patch converts a full record into a patch carrying every field.
func (m Mention) Patch() MentionPatch {
	user, message, read := m.UserID, m.MessageID, m.Read
	return MentionPatch{ID: m.ID, UserID: &user, MessageID: &message, Read: &read}
}
