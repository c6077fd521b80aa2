package mentions

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/chat-client/internal/domain"
	"github.com/weiawesome/chat-client/internal/store"
)

const me domain.ID = 1

func seeded(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(zerolog.Nop())
	s.Dispatch(
		store.ReceiveCurrentUser(domain.User{ID: me, Username: "garfield"}.Patch()),
		store.ReceiveUser(domain.User{ID: 2, Username: "sennacy"}.Patch()),
		store.ReceiveRoom(domain.Room{ID: 1, Name: "Garfield's First Room", OwnerID: me}.Patch()),
	)
	return s
}

func message(id domain.ID, at time.Time) domain.MessagePatch {
	return domain.Message{ID: id, RoomID: 1, AuthorID: 2, Body: "hi @garfield", CreatedAt: at}.Patch()
}

func ids(v View) []domain.ID {
	out := make([]domain.ID, 0, len(v.Mentions))
	for _, m := range v.Mentions {
		out = append(out, m.ID)
	}
	return out
}

func TestAggregate_Ordering(t *testing.T) {
	base := time.Date(2022, 10, 27, 18, 0, 0, 0, time.UTC)
	t1, t2, t3 := base, base.Add(time.Minute), base.Add(2*time.Minute)

	const a, b, c domain.ID = 10, 20, 30
	orders := [][]domain.ID{{a, b, c}, {c, b, a}, {b, c, a}}

	for _, order := range orders {
		s := seeded(t)
		s.Dispatch(store.ReceiveMessages(message(1, t1), message(2, t2), message(3, t3)))

		mentions := map[domain.ID]domain.Mention{
			a: {ID: a, UserID: me, MessageID: 1, Read: false},
			b: {ID: b, UserID: me, MessageID: 2, Read: true},
			c: {ID: c, UserID: me, MessageID: 3, Read: false},
		}
		for _, id := range order {
			s.Dispatch(store.ReceiveMention(mentions[id].Patch()))
		}

		view := Aggregate(s.Snapshot())
		assert.Equal(t, []domain.ID{c, a, b}, ids(view), "input order %v", order)
		assert.Equal(t, 2, view.NumUnread)
	}
}

func TestAggregate_TieBreakOnMentionID(t *testing.T) {
	at := time.Date(2022, 10, 27, 18, 0, 0, 0, time.UTC)
	s := seeded(t)
	s.Dispatch(
		store.ReceiveMessages(message(1, at), message(2, at)),
		store.ReceiveMentions(
			domain.Mention{ID: 5, UserID: me, MessageID: 1}.Patch(),
			domain.Mention{ID: 6, UserID: me, MessageID: 2}.Patch(),
		),
	)

	assert.Equal(t, []domain.ID{6, 5}, ids(Aggregate(s.Snapshot())))
}

func TestAggregate_ExcludesUnresolvedAndForeignMentions(t *testing.T) {
	at := time.Now()
	s := seeded(t)
	s.Dispatch(store.ReceiveMentions(
		domain.Mention{ID: 1, UserID: me, MessageID: 100}.Patch(),
		domain.Mention{ID: 2, UserID: 2, MessageID: 101}.Patch(),
	))
	s.Dispatch(store.ReceiveMessage(message(101, at)))

	view := Aggregate(s.Snapshot())
	assert.Empty(t, view.Mentions)
	assert.Zero(t, view.NumUnread)

	// Resolves once the message arrives.
	s.Dispatch(store.ReceiveMessage(message(100, at)))
	view = Aggregate(s.Snapshot())
	assert.Equal(t, []domain.ID{1}, ids(view))
	assert.Equal(t, 1, view.NumUnread)

	// Re-aggregation is idempotent.
	assert.Equal(t, view, Aggregate(s.Snapshot()))
}

func TestAggregate_Denormalizes(t *testing.T) {
	at := time.Now()
	s := seeded(t)
	s.Dispatch(
		store.ReceiveMessages(
			message(1, at),
			domain.Message{ID: 2, RoomID: 99, AuthorID: 77, CreatedAt: at.Add(-time.Hour)}.Patch(),
		),
		store.ReceiveMentions(
			domain.Mention{ID: 1, UserID: me, MessageID: 1}.Patch(),
			domain.Mention{ID: 2, UserID: me, MessageID: 2}.Patch(),
		),
	)

	view := Aggregate(s.Snapshot())
	require.Len(t, view.Mentions, 2)

	assert.Equal(t, "sennacy", view.Mentions[0].Message.Author)
	assert.Equal(t, "Garfield's First Room", view.Mentions[0].Room.Name)

	// Unknown author and evicted room fall back to empty values.
	assert.Empty(t, view.Mentions[1].Message.Author)
	assert.Equal(t, domain.Room{}, view.Mentions[1].Room)
}

func TestAggregate_NumUnreadReachesZero(t *testing.T) {
	at := time.Now()
	s := seeded(t)
	s.Dispatch(
		store.ReceiveMessages(message(1, at), message(2, at), message(3, at)),
		store.ReceiveMentions(
			domain.Mention{ID: 1, UserID: me, MessageID: 1}.Patch(),
			domain.Mention{ID: 2, UserID: me, MessageID: 2}.Patch(),
			domain.Mention{ID: 3, UserID: me, MessageID: 3}.Patch(),
		),
	)

	want := 3
	assert.Equal(t, want, Aggregate(s.Snapshot()).NumUnread)
	for _, id := range []domain.ID{2, 1, 3} {
		s.Dispatch(store.ReadMention(id))
		want--
		assert.Equal(t, want, Aggregate(s.Snapshot()).NumUnread)
	}
}

func TestAggregate_NoCurrentUser(t *testing.T) {
	s := store.New(zerolog.Nop())
	s.Dispatch(
		store.ReceiveMessage(message(1, time.Now())),
		store.ReceiveMention(domain.Mention{ID: 1, UserID: me, MessageID: 1}.Patch()),
	)

	view := Aggregate(s.Snapshot())
	assert.Empty(t, view.Mentions)
}

func TestAggregate_DeletedRoomExcludesMentions(t *testing.T) {
	s := seeded(t)
	s.Dispatch(
		store.ReceiveMessage(message(1, time.Now())),
		store.ReceiveMention(domain.Mention{ID: 1, UserID: me, MessageID: 1}.Patch()),
	)
	require.Len(t, Aggregate(s.Snapshot()).Mentions, 1)

	s.Dispatch(store.RemoveRoom(1))
	assert.Empty(t, Aggregate(s.Snapshot()).Mentions)
	assert.Contains(t, s.Snapshot().Mentions, domain.ID(1))
}
