package store

import (
	"github.com/weiawesome/chat-client/internal/domain"
)

// Event names, as they appear in dispatch logs.
const (
	EventReceiveUser        = "RECEIVE_USER"
	EventReceiveUsers       = "RECEIVE_USERS"
	EventReceiveCurrentUser = "RECEIVE_CURRENT_USER"
	EventRemoveCurrentUser  = "REMOVE_CURRENT_USER"
	EventReceiveRoom        = "RECEIVE_ROOM"
	EventReceiveRooms       = "RECEIVE_ROOMS"
	EventRemoveRoom         = "REMOVE_ROOM"
	EventReceiveMessage     = "RECEIVE_MESSAGE"
	EventReceiveMessages    = "RECEIVE_MESSAGES"
	EventRemoveMessage      = "REMOVE_MESSAGE"
	EventReceiveMention     = "RECEIVE_MENTION"
	EventReceiveMentions    = "RECEIVE_MENTIONS"
	EventRemoveMention      = "REMOVE_MENTION"
	EventReadMention        = "READ_MENTION"
)

// Event is a typed update applied by Reduce.
type Event interface {
	Name() string
	reduce(next *State)
}

// Reduce returns the state produced by applying e to s. s is not modified.
func Reduce(s *State, e Event) *State {
	next := *s
	e.reduce(&next)
	return &next
}

type receiveUsers struct {
	name  string
	users []domain.UserPatch
}

func (e receiveUsers) Name() string { return e.name }
func (e receiveUsers) reduce(next *State) {
	next.Users = merge(next.Users, e.users)
}

// ReceiveUser merges one user record.
func ReceiveUser(u domain.UserPatch) Event {
	return receiveUsers{name: EventReceiveUser, users: []domain.UserPatch{u}}
}

// ReceiveUsers merges a batch of user records.
func ReceiveUsers(users ...domain.UserPatch) Event {
	return receiveUsers{name: EventReceiveUsers, users: users}
}

type receiveCurrentUser struct{ user domain.UserPatch }

func (e receiveCurrentUser) Name() string { return EventReceiveCurrentUser }
func (e receiveCurrentUser) reduce(next *State) {
	next.Users = merge(next.Users, []domain.UserPatch{e.user})
	next.CurrentUserID = e.user.ID
}

// ReceiveCurrentUser merges u and makes it the current user.
func ReceiveCurrentUser(u domain.UserPatch) Event {
	return receiveCurrentUser{user: u}
}

type removeCurrentUser struct{}

func (removeCurrentUser) Name() string { return EventRemoveCurrentUser }
func (removeCurrentUser) reduce(next *State) {
	if next.CurrentUserID == 0 {
		return
	}
	next.Users = remove(next.Users, next.CurrentUserID)
	next.CurrentUserID = 0
}

// RemoveCurrentUser clears the current user slot and evicts that user's record.
func RemoveCurrentUser() Event {
	return removeCurrentUser{}
}

type receiveRooms struct {
	name  string
	rooms []domain.RoomPatch
}

func (e receiveRooms) Name() string { return e.name }
func (e receiveRooms) reduce(next *State) {
	next.Rooms = merge(next.Rooms, e.rooms)
}

// ReceiveRoom merges one room record.
func ReceiveRoom(r domain.RoomPatch) Event {
	return receiveRooms{name: EventReceiveRoom, rooms: []domain.RoomPatch{r}}
}

// ReceiveRooms merges a batch of room records.
func ReceiveRooms(rooms ...domain.RoomPatch) Event {
	return receiveRooms{name: EventReceiveRooms, rooms: rooms}
}

type removeRoom struct{ id domain.ID }

func (e removeRoom) Name() string { return EventRemoveRoom }
func (e removeRoom) reduce(next *State) {
	if _, ok := next.Rooms[e.id]; ok {
		next.Rooms = remove(next.Rooms, e.id)
	}

	// The server cascades room deletion to its messages; mirror that here.
	// Mentions of those messages stay in the store and drop out of the
	// mention view because their message no longer resolves.
	var orphaned []domain.ID
	for id, m := range next.Messages {
		if m.RoomID == e.id {
			orphaned = append(orphaned, id)
		}
	}
	if len(orphaned) > 0 {
		next.Messages = remove(next.Messages, orphaned...)
	}
}

// RemoveRoom evicts a room together with its messages.
func RemoveRoom(id domain.ID) Event {
	return removeRoom{id: id}
}

type receiveMessages struct {
	name     string
	messages []domain.MessagePatch
}

func (e receiveMessages) Name() string { return e.name }
func (e receiveMessages) reduce(next *State) {
	next.Messages = merge(next.Messages, e.messages)
}

// ReceiveMessage merges one message record.
func ReceiveMessage(m domain.MessagePatch) Event {
	return receiveMessages{name: EventReceiveMessage, messages: []domain.MessagePatch{m}}
}

// ReceiveMessages merges a batch of message records.
func ReceiveMessages(messages ...domain.MessagePatch) Event {
	return receiveMessages{name: EventReceiveMessages, messages: messages}
}

type removeMessage struct{ id domain.ID }

func (e removeMessage) Name() string { return EventRemoveMessage }
func (e removeMessage) reduce(next *State) {
	if _, ok := next.Messages[e.id]; ok {
		next.Messages = remove(next.Messages, e.id)
	}
}

// RemoveMessage evicts one message.
func RemoveMessage(id domain.ID) Event {
	return removeMessage{id: id}
}

type receiveMentions struct {
	name     string
	mentions []domain.MentionPatch
}

func (e receiveMentions) Name() string { return e.name }
func (e receiveMentions) reduce(next *State) {
	if len(e.mentions) == 0 {
		return
	}
	merged := merge(next.Mentions, e.mentions)

	// One mention per (user, message): an incoming record replaces any other
	// id already holding the same pair.
	type pair struct{ user, message domain.ID }
	owner := make(map[pair]domain.ID, len(e.mentions))
	for _, p := range e.mentions {
		m := merged[p.ID]
		if m.UserID != 0 && m.MessageID != 0 {
			owner[pair{m.UserID, m.MessageID}] = m.ID
		}
	}
	for id, m := range merged {
		if winner, ok := owner[pair{m.UserID, m.MessageID}]; ok && winner != id {
			delete(merged, id)
		}
	}
	next.Mentions = merged
}

// ReceiveMention merges one mention record.
func ReceiveMention(m domain.MentionPatch) Event {
	return receiveMentions{name: EventReceiveMention, mentions: []domain.MentionPatch{m}}
}

// ReceiveMentions merges a batch of mention records.
func ReceiveMentions(mentions ...domain.MentionPatch) Event {
	return receiveMentions{name: EventReceiveMentions, mentions: mentions}
}

type removeMention struct{ id domain.ID }

func (e removeMention) Name() string { return EventRemoveMention }
func (e removeMention) reduce(next *State) {
	if _, ok := next.Mentions[e.id]; ok {
		next.Mentions = remove(next.Mentions, e.id)
	}
}

// RemoveMention evicts one mention from the mention list.
func RemoveMention(id domain.ID) Event {
	return removeMention{id: id}
}

type readMention struct{ id domain.ID }

func (e readMention) Name() string { return EventReadMention }
func (e readMention) reduce(next *State) {
	m, ok := next.Mentions[e.id]
	if !ok || m.Read {
		return
	}
	m.Read = true
	next.Mentions = clone(next.Mentions)
	next.Mentions[e.id] = m
}

// ReadMention flips a mention to read. Absent or already read mentions are left alone.
func ReadMention(id domain.ID) Event {
	return readMention{id: id}
}
