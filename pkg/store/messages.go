package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store/keys"

	"github.com/cockroachdb/pebble"
)

// Cursor marks a position in a conversation's message order. Messages are
// ordered by (Timestamp, ID).
type Cursor struct {
	TS int64
	ID string
}

// CursorOf returns the cursor positioned at m.
func CursorOf(m models.Message) Cursor {
	return Cursor{TS: m.Timestamp, ID: m.ID}
}

// AddMessage creates a message document in convID. The store assigns the
// id and the server timestamp; the stored document is returned.
func (s *Store) AddMessage(convID string, m models.Message) (models.Message, error) {
	if err := keys.ValidateConversationID(convID); err != nil {
		return models.Message{}, err
	}
	if err := keys.ValidateUserID(m.SenderID); err != nil {
		return models.Message{}, fmt.Errorf("sender: %w", err)
	}

	s.mu.Lock()
	m.ID = keys.GenMessageID()
	m.Timestamp = s.nextTS()
	mk := keys.GenMessageKey(convID, m.Timestamp, m.ID)
	data, err := json.Marshal(m)
	if err != nil {
		s.mu.Unlock()
		return models.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	batch := s.db.NewBatch()
	_ = batch.Set([]byte(mk), data, nil)
	_ = batch.Set([]byte(keys.GenMessageIDIndex(convID, m.ID)), []byte(mk), nil)
	err = s.apply(batch)
	batch.Close()
	s.mu.Unlock()
	if err != nil {
		return models.Message{}, err
	}

	metrics.StoreWrites.WithLabelValues("add_message").Inc()
	logger.Debug("message_created", "conversation", convID, "id", m.ID, "ts", m.Timestamp)
	s.hub.notify(convID)
	s.fireCreated(convID, m)
	return m, nil
}

// messageKey resolves the ordering key of msgID through the id index.
func (s *Store) messageKey(convID, msgID string) (string, error) {
	if err := keys.ValidateMessageID(msgID); err != nil {
		return "", err
	}
	mk, err := s.get(keys.GenMessageIDIndex(convID, msgID))
	if err != nil {
		return "", err
	}
	return string(mk), nil
}

// GetMessage reads one message by id.
func (s *Store) GetMessage(convID, msgID string) (models.Message, error) {
	mk, err := s.messageKey(convID, msgID)
	if err != nil {
		return models.Message{}, err
	}
	data, err := s.get(mk)
	if err != nil {
		return models.Message{}, err
	}
	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return models.Message{}, fmt.Errorf("decode message %s: %w", msgID, err)
	}
	return m, nil
}

// UpdateMessage field-merges patch into the stored message and returns the
// result. Id, sender and timestamp are immutable.
func (s *Store) UpdateMessage(convID, msgID string, patch models.MessagePatch) (models.Message, error) {
	s.mu.Lock()
	mk, err := s.messageKey(convID, msgID)
	if err != nil {
		s.mu.Unlock()
		return models.Message{}, err
	}
	data, err := s.get(mk)
	if err != nil {
		s.mu.Unlock()
		return models.Message{}, err
	}
	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil {
		s.mu.Unlock()
		return models.Message{}, fmt.Errorf("decode message %s: %w", msgID, err)
	}
	patch.Apply(&m)
	out, err := json.Marshal(m)
	if err != nil {
		s.mu.Unlock()
		return models.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	batch := s.db.NewBatch()
	_ = batch.Set([]byte(mk), out, nil)
	err = s.apply(batch)
	batch.Close()
	s.mu.Unlock()
	if err != nil {
		return models.Message{}, err
	}

	metrics.StoreWrites.WithLabelValues("update_message").Inc()
	logger.Debug("message_updated", "conversation", convID, "id", msgID)
	s.hub.notify(convID)
	return m, nil
}

// ListNewest returns up to limit of the newest messages, newest first.
func (s *Store) ListNewest(convID string, limit int) ([]models.Message, error) {
	return s.listDesc(convID, nil, limit)
}

// ListBefore returns up to limit messages strictly older than c, newest
// first.
func (s *Store) ListBefore(convID string, c Cursor, limit int) ([]models.Message, error) {
	seek := []byte(keys.GenMessageKey(convID, c.TS, c.ID))
	return s.listDesc(convID, seek, limit)
}

func (s *Store) listDesc(convID string, seekLT []byte, limit int) ([]models.Message, error) {
	if err := keys.ValidateConversationID(convID); err != nil {
		return nil, err
	}
	if !s.Ready() {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return []models.Message{}, nil
	}
	prefix := []byte(keys.GenMessagesPrefix(convID))
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keys.NextPrefix(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var valid bool
	if seekLT == nil {
		valid = iter.Last()
	} else {
		valid = iter.SeekLT(seekLT)
	}
	out := make([]models.Message, 0, limit)
	for ; valid && len(out) < limit; valid = iter.Prev() {
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("message_decode_failed", "key", string(iter.Key()), "error", err)
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// ForEachMessage calls fn with every stored message across all
// conversations. Used by maintenance jobs.
func (s *Store) ForEachMessage(fn func(convID string, m models.Message) error) error {
	if !s.Ready() {
		return ErrClosed
	}
	lower := []byte("c:")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: keys.NextPrefix(lower),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		k := string(iter.Key())
		if !strings.Contains(k, ":m:") {
			continue
		}
		parts, err := keys.ParseMessageKey(k)
		if err != nil {
			logger.Warn("message_key_skipped", "key", k, "error", err)
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("message_decode_skipped", "key", k, "error", err)
			continue
		}
		if err := fn(parts.ConversationID, m); err != nil {
			return err
		}
	}
	return iter.Error()
}
