package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/chatline/internal/domain"
)

func testDB(t *testing.T) (*UserRepo, *MessageRepo) {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	return NewUserRepo(db), NewMessageRepo(db)
}

func testUser(t *testing.T, users *UserRepo, email, name string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(email, name, "x")
	require.NoError(t, err)
	require.NoError(t, users.Create(u))
	return u
}

func TestConversationOrderedOldestFirst(t *testing.T) {
	users, msgs := testDB(t)
	a := testUser(t, users, "a@x.io", "A")
	b := testUser(t, users, "b@x.io", "B")

	first := domain.NewMessage(a.ID, b.ID, "first", "", "")
	first.CreatedAt = time.Now().Add(-2 * time.Minute)
	second := domain.NewMessage(b.ID, a.ID, "second", "", "")
	second.CreatedAt = time.Now().Add(-1 * time.Minute)
	require.NoError(t, msgs.Create(first))
	require.NoError(t, msgs.Create(second))

	got, err := msgs.Conversation(a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func TestConversationExcludesThirdParties(t *testing.T) {
	users, msgs := testDB(t)
	a := testUser(t, users, "a@x.io", "A")
	b := testUser(t, users, "b@x.io", "B")
	c := testUser(t, users, "c@x.io", "C")

	require.NoError(t, msgs.Create(domain.NewMessage(a.ID, b.ID, "for b", "", "")))
	require.NoError(t, msgs.Create(domain.NewMessage(a.ID, c.ID, "for c", "", "")))

	got, err := msgs.Conversation(a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "for b", got[0].Text)
}

func TestMarkReadReportsChangedRows(t *testing.T) {
	users, msgs := testDB(t)
	s := testUser(t, users, "s@x.io", "S")
	r := testUser(t, users, "r@x.io", "R")

	require.NoError(t, msgs.Create(domain.NewMessage(s.ID, r.ID, "one", "", "")))
	require.NoError(t, msgs.Create(domain.NewMessage(s.ID, r.ID, "two", "", "")))

	changed, err := msgs.MarkRead(s.ID, r.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	// Everything already read: zero changed, so no read receipt should fire.
	changed, err = msgs.MarkRead(s.ID, r.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, changed)
}

func TestMarkReadOnlyTouchesOneDirection(t *testing.T) {
	users, msgs := testDB(t)
	s := testUser(t, users, "s@x.io", "S")
	r := testUser(t, users, "r@x.io", "R")

	require.NoError(t, msgs.Create(domain.NewMessage(s.ID, r.ID, "to r", "", "")))
	require.NoError(t, msgs.Create(domain.NewMessage(r.ID, s.ID, "to s", "", "")))

	changed, err := msgs.MarkRead(s.ID, r.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	conv, err := msgs.Conversation(s.ID, r.ID)
	require.NoError(t, err)
	for _, m := range conv {
		if m.SenderID == r.ID {
			assert.False(t, m.IsRead, "the reverse direction stays unread")
		}
	}
}

func TestSidebarOrderingAndUnread(t *testing.T) {
	users, msgs := testDB(t)
	me := testUser(t, users, "me@x.io", "Me")
	old := testUser(t, users, "old@x.io", "Old")
	recent := testUser(t, users, "recent@x.io", "Recent")
	silent := testUser(t, users, "silent@x.io", "Silent")

	stale := domain.NewMessage(old.ID, me.ID, "long ago", "", "")
	stale.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, msgs.Create(stale))

	fresh := domain.NewMessage(recent.ID, me.ID, "just now", "", "")
	fresh.CreatedAt = time.Now().Add(-time.Minute)
	require.NoError(t, msgs.Create(fresh))
	fresh2 := domain.NewMessage(recent.ID, me.ID, "and again", "", "")
	require.NoError(t, msgs.Create(fresh2))

	others, err := users.ListOthers(me.ID)
	require.NoError(t, err)
	entries, err := msgs.Sidebar(others, me.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, recent.ID, entries[0].User.ID)
	assert.EqualValues(t, 2, entries[0].UnreadCount)
	assert.Equal(t, old.ID, entries[1].User.ID)
	assert.EqualValues(t, 1, entries[1].UnreadCount)
	assert.Equal(t, silent.ID, entries[2].User.ID, "users with no conversation sort last")
	assert.Nil(t, entries[2].LastMessage)
}
