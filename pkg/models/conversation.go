package models

// Conversation is the denormalized metadata record of a two-party chat.
// It backs conversation-list previews and is not authoritative history.
type Conversation struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	LastMessage  string   `json:"last_message"`
	// UpdatedAt and CreatedAt are unix ns.
	UpdatedAt int64 `json:"updated_at"`
	CreatedAt int64 `json:"created_at"`
}

// ConversationPatch is a field-merge upsert. Nil fields keep the stored
// value. UpdatedAt is stamped by the store when Touch is set.
type ConversationPatch struct {
	Participants []string `json:"participants,omitempty"`
	LastMessage  *string  `json:"last_message,omitempty"`
	Touch        bool     `json:"-"`
}

// Other returns the participant that is not uid, or "" when none exists.
func (c Conversation) Other(uid string) string {
	for _, p := range c.Participants {
		if p != uid {
			return p
		}
	}
	return ""
}

// Has reports whether uid participates in c.
func (c Conversation) Has(uid string) bool {
	for _, p := range c.Participants {
		if p == uid {
			return true
		}
	}
	return false
}
