package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store/keys"

	"github.com/cockroachdb/pebble"
)

// GetConversation reads the metadata record of convID.
func (s *Store) GetConversation(convID string) (models.Conversation, error) {
	if err := keys.ValidateConversationID(convID); err != nil {
		return models.Conversation{}, err
	}
	data, err := s.get(keys.GenConversationKey(convID))
	if err != nil {
		return models.Conversation{}, err
	}
	var c models.Conversation
	if err := json.Unmarshal(data, &c); err != nil {
		return models.Conversation{}, fmt.Errorf("decode conversation %s: %w", convID, err)
	}
	return c, nil
}

// MergeConversation upserts the metadata record of convID with field-merge
// semantics: fields absent from patch keep their stored value. The record is
// created when missing.
func (s *Store) MergeConversation(convID string, patch models.ConversationPatch) (models.Conversation, error) {
	if err := keys.ValidateConversationID(convID); err != nil {
		return models.Conversation{}, err
	}
	for _, p := range patch.Participants {
		if err := keys.ValidateUserID(p); err != nil {
			return models.Conversation{}, fmt.Errorf("participant: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, _, err := s.mergeLocked(convID, patch, false)
	return c, err
}

// EnsureConversation creates the metadata record of convID with the given
// participants and an empty preview when it does not exist yet. created
// reports whether a record was written.
func (s *Store) EnsureConversation(convID string, participants []string) (c models.Conversation, created bool, err error) {
	if err := keys.ValidateConversationID(convID); err != nil {
		return models.Conversation{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	empty := ""
	return s.mergeLocked(convID, models.ConversationPatch{
		Participants: participants,
		LastMessage:  &empty,
		Touch:        true,
	}, true)
}

func (s *Store) mergeLocked(convID string, patch models.ConversationPatch, onlyCreate bool) (models.Conversation, bool, error) {
	ck := keys.GenConversationKey(convID)
	var c models.Conversation
	created := false
	data, err := s.get(ck)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &c); err != nil {
			return models.Conversation{}, false, fmt.Errorf("decode conversation %s: %w", convID, err)
		}
		if onlyCreate {
			return c, false, nil
		}
	case IsNotFound(err):
		created = true
		c = models.Conversation{ID: convID, Participants: []string{}}
	default:
		return models.Conversation{}, false, err
	}
	prev := c

	if patch.Participants != nil {
		ps := append([]string(nil), patch.Participants...)
		sort.Strings(ps)
		c.Participants = ps
	}
	if patch.LastMessage != nil {
		c.LastMessage = *patch.LastMessage
	}
	if created {
		c.CreatedAt = s.nextTS()
		c.UpdatedAt = c.CreatedAt
	} else if patch.Touch {
		c.UpdatedAt = s.nextTS()
	}

	out, err := json.Marshal(c)
	if err != nil {
		return models.Conversation{}, false, fmt.Errorf("marshal conversation: %w", err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	_ = batch.Set([]byte(ck), out, nil)
	if !created {
		for _, p := range prev.Participants {
			_ = batch.Delete([]byte(keys.GenUserConversationLU(p, prev.UpdatedAt, convID)), nil)
			if !c.Has(p) {
				_ = batch.Delete([]byte(keys.GenUserConversationRel(p, convID)), nil)
			}
		}
	}
	for _, p := range c.Participants {
		_ = batch.Set([]byte(keys.GenUserConversationRel(p, convID)), []byte(keys.PadTS(c.UpdatedAt)), nil)
		_ = batch.Set([]byte(keys.GenUserConversationLU(p, c.UpdatedAt, convID)), nil, nil)
	}
	if err := s.apply(batch); err != nil {
		return models.Conversation{}, false, err
	}

	metrics.StoreWrites.WithLabelValues("merge_conversation").Inc()
	logger.Debug("conversation_merged", "conversation", convID, "created", created)
	return c, created, nil
}

// ListConversations returns up to limit conversations of uid ordered by
// last update, most recent first. afterKey is the index key returned by a
// previous call; empty starts from the most recent.
func (s *Store) ListConversations(uid, afterKey string, limit int) (convs []models.Conversation, lastKey string, hasMore bool, err error) {
	if err := keys.ValidateUserID(uid); err != nil {
		return nil, "", false, err
	}
	if !s.Ready() {
		return nil, "", false, ErrClosed
	}
	prefix := []byte(keys.GenUserConversationsLUPrefix(uid))
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keys.NextPrefix(prefix),
	})
	if err != nil {
		return nil, "", false, err
	}
	defer iter.Close()

	var valid bool
	if afterKey == "" {
		valid = iter.Last()
	} else {
		valid = iter.SeekLT([]byte(afterKey))
	}
	convs = []models.Conversation{}
	for ; valid; valid = iter.Prev() {
		if len(convs) == limit {
			hasMore = true
			break
		}
		k := string(iter.Key())
		convID, _, perr := keys.ParseUserConversationLU(k)
		if perr != nil {
			logger.Warn("conversation_index_skipped", "key", k, "error", perr)
			continue
		}
		c, gerr := s.GetConversation(convID)
		if gerr != nil {
			if IsNotFound(gerr) {
				logger.Warn("conversation_index_dangling", "key", k)
				continue
			}
			return nil, "", false, gerr
		}
		convs = append(convs, c)
		lastKey = k
	}
	if err := iter.Error(); err != nil {
		return nil, "", false, err
	}
	return convs, lastKey, hasMore, nil
}
