package mentions

import (
	"cmp"
	"slices"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/store"
)

// MessageView is a message with its author's username resolved.
// Author is empty when the author is not in the store.
type MessageView struct {
	domain.Message
	Author string `json:"author"`
}

// Annotated is a mention denormalized for display. Room is the zero Room when
// the message's room is not in the store.
type Annotated struct {
	domain.Mention
	Message MessageView `json:"message"`
	Room    domain.Room `json:"room"`
}

// View is the current user's notification list.
type View struct {
	Mentions  []Annotated `json:"mentions"`
	NumUnread int         `json:"numUnread"`
}

// Aggregate derives the mention view from s. It is recomputed on every call.
//
// Only mentions of the current user whose message resolves are included.
// Unread mentions come first; within each group the newest message comes
// first, with equal timestamps ordered by descending mention id.
func Aggregate(s *store.State) View {
	view := View{Mentions: []Annotated{}}
	if s.CurrentUserID == 0 {
		return view
	}

	for _, mention := range s.Mentions {
		if mention.UserID != s.CurrentUserID {
			continue
		}
		message, ok := s.Messages[mention.MessageID]
		if !ok {
			continue
		}

		if !mention.Read {
			view.NumUnread++
		}
		view.Mentions = append(view.Mentions, Annotated{
			Mention: mention,
			Message: MessageView{
				Message: message,
				Author:  s.Users[message.AuthorID].Username,
			},
			Room: s.Rooms[message.RoomID],
		})
	}

	slices.SortFunc(view.Mentions, compare)
	return view
}

func compare(a, b Annotated) int {
	if a.Read != b.Read {
		if a.Read {
			return 1
		}
		return -1
	}
	if c := b.Message.CreatedAt.Compare(a.Message.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}
