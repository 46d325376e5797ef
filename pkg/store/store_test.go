package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dmfeed/pkg/models"
	"dmfeed/pkg/store/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conv = "alice_bob"

func openTestStore(t *testing.T, now func() time.Time) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store"), Options{Now: now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fixedClock always returns the same instant so ordering relies on the
// store's monotonic timestamp assignment.
func fixedClock() time.Time {
	return time.Unix(1700000000, 0)
}

func addN(t *testing.T, s *Store, n int) []models.Message {
	t.Helper()
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		m, err := s.AddMessage(conv, models.Message{Text: "m", SenderID: "alice"})
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestAddMessageAssignsIDAndIncreasingTimestamps(t *testing.T) {
	s := openTestStore(t, fixedClock)
	msgs := addN(t, s, 3)
	for i, m := range msgs {
		assert.NotEmpty(t, m.ID)
		if i > 0 {
			assert.Greater(t, m.Timestamp, msgs[i-1].Timestamp)
		}
	}
	got, err := s.GetMessage(conv, msgs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, msgs[1], got)
}

func TestAddMessageRejectsBadInput(t *testing.T) {
	s := openTestStore(t, nil)
	_, err := s.AddMessage("", models.Message{SenderID: "alice"})
	assert.Error(t, err)
	_, err = s.AddMessage(conv, models.Message{})
	assert.ErrorIs(t, err, keys.ErrEmptyID)
}

func TestGetMessageNotFound(t *testing.T) {
	s := openTestStore(t, nil)
	_, err := s.GetMessage(conv, "missing")
	assert.True(t, IsNotFound(err))
}

func TestListNewestAndBefore(t *testing.T) {
	s := openTestStore(t, fixedClock)
	msgs := addN(t, s, 7)

	page, err := s.ListNewest(conv, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, msgs[6].ID, page[0].ID)
	assert.Equal(t, msgs[4].ID, page[2].ID)

	older, err := s.ListBefore(conv, CursorOf(page[2]), 3)
	require.NoError(t, err)
	require.Len(t, older, 3)
	assert.Equal(t, msgs[3].ID, older[0].ID)
	assert.Equal(t, msgs[1].ID, older[2].ID)

	last, err := s.ListBefore(conv, CursorOf(older[2]), 3)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, msgs[0].ID, last[0].ID)

	none, err := s.ListBefore(conv, CursorOf(last[0]), 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListNewestIsolatedPerConversation(t *testing.T) {
	s := openTestStore(t, nil)
	addN(t, s, 2)
	_, err := s.AddMessage("alice_carol", models.Message{Text: "x", SenderID: "carol"})
	require.NoError(t, err)

	page, err := s.ListNewest(conv, 10)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestUpdateMessageMergesFields(t *testing.T) {
	s := openTestStore(t, nil)
	m, err := s.AddMessage(conv, models.Message{Text: "hello", ImageURL: "blob://x", SenderID: "alice"})
	require.NoError(t, err)

	text := "hello!"
	edited := true
	got, err := s.UpdateMessage(conv, m.ID, models.MessagePatch{Text: &text, Edited: &edited})
	require.NoError(t, err)
	assert.Equal(t, "hello!", got.Text)
	assert.True(t, got.Edited)
	assert.Equal(t, "blob://x", got.ImageURL)
	assert.Equal(t, m.Timestamp, got.Timestamp)

	page, err := s.ListNewest(conv, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, got, page[0])
}

func TestMergeConversationKeepsUnrelatedFields(t *testing.T) {
	s := openTestStore(t, nil)
	c, created, err := s.EnsureConversation(conv, []string{"bob", "alice"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"alice", "bob"}, c.Participants)
	assert.Equal(t, "", c.LastMessage)

	_, created, err = s.EnsureConversation(conv, []string{"alice", "bob"})
	require.NoError(t, err)
	assert.False(t, created)

	hi := "hi"
	merged, err := s.MergeConversation(conv, models.ConversationPatch{LastMessage: &hi, Touch: true})
	require.NoError(t, err)
	assert.Equal(t, "hi", merged.LastMessage)
	assert.Equal(t, []string{"alice", "bob"}, merged.Participants)
	assert.Equal(t, c.CreatedAt, merged.CreatedAt)
	assert.Greater(t, merged.UpdatedAt, c.UpdatedAt)
}

func TestListConversationsOrderedByUpdate(t *testing.T) {
	s := openTestStore(t, fixedClock)
	for _, peer := range []string{"bob", "carol", "dave"} {
		cid, err := keys.ConversationID("alice", peer)
		require.NoError(t, err)
		_, _, err = s.EnsureConversation(cid, keys.Participants("alice", peer))
		require.NoError(t, err)
	}
	// bump the oldest so it becomes the most recent
	bump := "again"
	_, err := s.MergeConversation(conv, models.ConversationPatch{LastMessage: &bump, Touch: true})
	require.NoError(t, err)

	first, lastKey, more, err := s.ListConversations("alice", "", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, more)
	assert.Equal(t, conv, first[0].ID)
	assert.Equal(t, "alice_dave", first[1].ID)

	rest, _, more, err := s.ListConversations("alice", lastKey, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.False(t, more)
	assert.Equal(t, "alice_carol", rest[0].ID)

	bobs, _, _, err := s.ListConversations("bob", "", 10)
	require.NoError(t, err)
	assert.Len(t, bobs, 1)
}

func TestTokens(t *testing.T) {
	s := openTestStore(t, nil)
	_, err := s.GetToken("bob")
	assert.True(t, IsNotFound(err))

	_, err = s.PutToken("bob", "  ")
	assert.Error(t, err)

	_, err = s.PutToken("bob", "tok-1")
	require.NoError(t, err)
	_, err = s.PutToken("bob", "tok-2")
	require.NoError(t, err)
	tok, err := s.GetToken("bob")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.Token)
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	s := openTestStore(t, nil)
	addN(t, s, 2)

	pages := make(chan []models.Message, 16)
	sub, err := s.Subscribe(conv, 3, func(p []models.Message) { pages <- p }, nil)
	require.NoError(t, err)
	defer sub.Close()

	initial := recvPage(t, pages)
	assert.Len(t, initial, 2)

	m, err := s.AddMessage(conv, models.Message{Text: "live", SenderID: "bob"})
	require.NoError(t, err)

	var latest []models.Message
	require.Eventually(t, func() bool {
		select {
		case latest = <-pages:
		default:
		}
		return len(latest) == 3 && latest[0].ID == m.ID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubscriptionCloseStopsDeliveries(t *testing.T) {
	s := openTestStore(t, nil)
	pages := make(chan []models.Message, 16)
	sub, err := s.Subscribe(conv, 3, func(p []models.Message) { pages <- p }, nil)
	require.NoError(t, err)
	recvPage(t, pages)

	sub.Close()
	sub.Close()
	addN(t, s, 1)
	select {
	case p := <-pages:
		t.Fatalf("unexpected delivery after close: %v", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnMessageCreatedRunsTriggers(t *testing.T) {
	s := openTestStore(t, nil)
	var mu sync.Mutex
	var seen []string
	s.OnMessageCreated(func(convID string, m models.Message) {
		mu.Lock()
		seen = append(seen, convID+"/"+m.Text)
		mu.Unlock()
	})
	s.OnMessageCreated(func(string, models.Message) { panic("boom") })

	_, err := s.AddMessage(conv, models.Message{Text: "hey", SenderID: "alice"})
	require.NoError(t, err)
	s.WaitTriggers()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{conv + "/hey"}, seen)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "store"), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.False(t, s.Ready())
	_, err = s.ListNewest(conv, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Subscribe(conv, 1, func([]models.Message) {}, nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func recvPage(t *testing.T, ch <-chan []models.Message) []models.Message {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for page")
		return nil
	}
}
