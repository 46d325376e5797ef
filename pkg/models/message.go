package models

// Message is one document in a conversation's message collection.
type Message struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
	SenderID string `json:"sender_id"`
	// Deleted marks a soft-deleted message; it stays in place as a tombstone.
	Deleted bool `json:"deleted"`
	Edited  bool `json:"edited"`
	// Timestamp is assigned by the store on create (unix ns).
	Timestamp int64 `json:"timestamp"`
}

// MessagePatch is a field-merge update. Nil fields are left untouched.
type MessagePatch struct {
	Text     *string `json:"text,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
	Deleted  *bool   `json:"deleted,omitempty"`
	Edited   *bool   `json:"edited,omitempty"`
}

// Apply merges p into m.
func (p MessagePatch) Apply(m *Message) {
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.ImageURL != nil {
		m.ImageURL = *p.ImageURL
	}
	if p.Deleted != nil {
		m.Deleted = *p.Deleted
	}
	if p.Edited != nil {
		m.Edited = *p.Edited
	}
}

// Preview is the text shown in conversation lists for m.
func (m Message) Preview() string {
	if m.Deleted {
		return ""
	}
	if m.Text != "" {
		return m.Text
	}
	if m.ImageURL != "" {
		return "[image]"
	}
	return ""
}
