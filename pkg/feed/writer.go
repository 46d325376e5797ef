package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dmfeed/pkg/blob"
	"dmfeed/pkg/logger"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store/keys"
)

// Writer applies the message write rules for one identity without holding
// a live window. Feeds use one for the open conversation; request handlers
// use one per caller.
type Writer struct {
	source     Source
	identity   string
	blobs      BlobRemover
	editWindow time.Duration
	now        func() time.Time
	report     func(op string, err error)
}

// NewWriter returns a writer acting as identity. Only the write related
// options (edit window, blobs, clock, reporter) have an effect.
func NewWriter(source Source, identity string, opts ...Option) (*Writer, error) {
	f, err := New(source, identity, nil, opts...)
	if err != nil {
		return nil, err
	}
	return f.writer(), nil
}

func (f *Feed) writer() *Writer {
	return &Writer{
		source:     f.source,
		identity:   f.identity,
		blobs:      f.blobs,
		editWindow: f.opts.EditWindow,
		now:        f.now,
		report:     f.report,
	}
}

// Identity returns the user the writer acts as.
func (w *Writer) Identity() string { return w.identity }

// Send appends a message from the writer's identity to its conversation
// with peerID and refreshes the conversation preview. A failed preview
// update is reported; the message itself was stored.
func (w *Writer) Send(ctx context.Context, peerID string, c Content) (models.Message, error) {
	text := strings.TrimSpace(c.Text)
	ref := strings.TrimSpace(c.ImageRef)
	if text == "" && ref == "" {
		return models.Message{}, ErrEmptyMessage
	}
	convID, err := keys.ConversationID(w.identity, peerID)
	if err != nil {
		return models.Message{}, err
	}

	m, err := w.source.AddMessage(ctx, convID, models.Message{
		Text:     text,
		ImageURL: ref,
		SenderID: w.identity,
	})
	if err != nil {
		w.report("send", err)
		return models.Message{}, fmt.Errorf("send: %w", err)
	}

	preview := m.Preview()
	if _, err := w.source.MergeConversation(ctx, convID, models.ConversationPatch{
		Participants: keys.Participants(w.identity, peerID),
		LastMessage:  &preview,
		Touch:        true,
	}); err != nil {
		w.report("update_conversation", err)
	}
	logger.Debug("message_sent", "conversation", convID, "id", m.ID)
	return m, nil
}

// Edit replaces the text of one of the identity's own messages while the
// edit window is open.
func (w *Writer) Edit(ctx context.Context, peerID, msgID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}
	convID, m, err := w.own(ctx, peerID, msgID)
	if err != nil {
		return models.Message{}, err
	}
	if m.Deleted {
		return models.Message{}, ErrMessageDeleted
	}
	if w.editWindow > 0 && w.now().UnixNano()-m.Timestamp > int64(w.editWindow) {
		return models.Message{}, ErrEditWindowClosed
	}
	edited := true
	out, err := w.source.UpdateMessage(ctx, convID, msgID, models.MessagePatch{Text: &text, Edited: &edited})
	if err != nil {
		w.report("edit", err)
		return models.Message{}, fmt.Errorf("edit: %w", err)
	}
	return out, nil
}

// Delete soft-deletes one of the identity's own messages. The image
// reference is cleared and the blob removed; a failed blob removal is
// reported and left for the sweeper.
func (w *Writer) Delete(ctx context.Context, peerID, msgID string) (models.Message, error) {
	convID, m, err := w.own(ctx, peerID, msgID)
	if err != nil {
		return models.Message{}, err
	}
	deleted := true
	empty := ""
	out, err := w.source.UpdateMessage(ctx, convID, msgID, models.MessagePatch{Deleted: &deleted, ImageURL: &empty})
	if err != nil {
		w.report("delete", err)
		return models.Message{}, fmt.Errorf("delete: %w", err)
	}
	if m.ImageURL != "" && w.blobs != nil && blob.IsRef(m.ImageURL) {
		if err := w.blobs.Delete(m.ImageURL); err != nil && !errors.Is(err, blob.ErrNotFound) {
			w.report("delete_blob", err)
		}
	}
	return out, nil
}

// own loads msgID and checks the identity sent it.
func (w *Writer) own(ctx context.Context, peerID, msgID string) (string, models.Message, error) {
	convID, err := keys.ConversationID(w.identity, peerID)
	if err != nil {
		return "", models.Message{}, err
	}
	m, err := w.source.GetMessage(ctx, convID, msgID)
	if err != nil {
		return "", models.Message{}, err
	}
	if m.SenderID != w.identity {
		return "", models.Message{}, ErrNotSender
	}
	return convID, m, nil
}
