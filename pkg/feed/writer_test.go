package feed

import (
	"context"
	"testing"

	"dmfeed/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterWorksWithoutAFeed(t *testing.T) {
	src := newFakeSource()
	w, err := NewWriter(src, "bob", WithEditWindow(-1))
	require.NoError(t, err)
	assert.Equal(t, "bob", w.Identity())

	m, err := w.Send(context.Background(), "alice", Content{Text: "yo"})
	require.NoError(t, err)
	assert.Equal(t, "bob", m.SenderID)
	assert.Equal(t, "yo", src.convs["alice_bob"].LastMessage)
	assert.Equal(t, []string{"alice", "bob"}, src.convs["alice_bob"].Participants)
	assert.Empty(t, src.subs)

	// negative edit window never closes
	m.Timestamp = 1
	src.msgs[m.ID] = m
	got, err := w.Edit(context.Background(), "alice", m.ID, "yo!")
	require.NoError(t, err)
	assert.Equal(t, "yo!", got.Text)
}

func TestWriterRejectsSelfConversation(t *testing.T) {
	w, err := NewWriter(newFakeSource(), "bob")
	require.NoError(t, err)
	_, err = w.Send(context.Background(), "bob", Content{Text: "me"})
	assert.Error(t, err)
}

func TestWriterDeleteOtherConversation(t *testing.T) {
	src := newFakeSource()
	src.msgs["m1"] = models.Message{ID: "m1", SenderID: "alice"}
	w, err := NewWriter(src, "carol")
	require.NoError(t, err)
	_, err = w.Delete(context.Background(), "alice", "m1")
	assert.ErrorIs(t, err, ErrNotSender)
}
