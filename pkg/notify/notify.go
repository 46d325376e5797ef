package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store"
)

const (
	Title       = "New message"
	DefaultBody = "You have a new message"
)

// Notification is the push payload sent to a device.
type Notification struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
	// Data carries routing hints for the client.
	Data map[string]string `json:"data,omitempty"`
}

// Sender delivers one notification. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Lookup is the part of the document store the trigger reads.
type Lookup interface {
	GetConversation(convID string) (models.Conversation, error)
	GetToken(uid string) (models.DeliveryToken, error)
}

// Journal records notifications that could not be sent.
type Journal interface {
	Record(convID string, m models.Message, err error) error
}

// Notifier turns message creations into best-effort push notifications.
// Each missing step (conversation, recipient, token) logs and stops;
// send failures are logged and dropped.
type Notifier struct {
	lookup  Lookup
	sender  Sender
	timeout time.Duration
	journal Journal
}

func New(lookup Lookup, sender Sender, timeout time.Duration) *Notifier {
	if sender == nil {
		sender = LogSender{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{lookup: lookup, sender: sender, timeout: timeout}
}

// SetJournal makes failed sends land in j as well as the log.
func (n *Notifier) SetJournal(j Journal) {
	n.journal = j
}

// Attach registers the notifier as a create trigger on s.
func (n *Notifier) Attach(s *store.Store) {
	s.OnMessageCreated(n.OnMessageCreated)
}

// OnMessageCreated is the trigger body. It never returns an error: nothing
// about notifications reaches the sender.
func (n *Notifier) OnMessageCreated(convID string, m models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()
	if err := n.Notify(ctx, convID, m); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		logger.Error("notify_send_failed", "conversation", convID, "id", m.ID, "error", err)
		if n.journal != nil {
			if jerr := n.journal.Record(convID, m, err); jerr != nil {
				logger.Error("notify_journal_failed", "error", jerr)
			}
		}
	}
}

// Notify runs the four lookup-and-send steps for m. Skipped steps return
// nil; only a failed send is an error.
func (n *Notifier) Notify(ctx context.Context, convID string, m models.Message) error {
	conv, err := n.lookup.GetConversation(convID)
	if err != nil {
		n.skip("conversation_missing", convID, m, err)
		return nil
	}
	recipient := conv.Other(m.SenderID)
	if recipient == "" {
		n.skip("recipient_missing", convID, m, nil)
		return nil
	}
	tok, err := n.lookup.GetToken(recipient)
	if err != nil || tok.Token == "" {
		n.skip("token_missing", convID, m, err)
		return nil
	}

	body := m.Text
	if m.Deleted || body == "" {
		body = DefaultBody
	}
	note := Notification{
		Token: tok.Token,
		Title: Title,
		Body:  body,
		Data: map[string]string{
			"conversation_id": convID,
			"sender_id":       m.SenderID,
			"message_id":      m.ID,
		},
	}
	if err := n.sender.Send(ctx, note); err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	logger.Info("notify_sent", "conversation", convID, "recipient", recipient, "id", m.ID)
	return nil
}

func (n *Notifier) skip(reason, convID string, m models.Message, err error) {
	metrics.Notifications.WithLabelValues("skipped").Inc()
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn("notify_skipped", "reason", reason, "conversation", convID, "id", m.ID, "error", err)
		return
	}
	logger.Debug("notify_skipped", "reason", reason, "conversation", convID, "id", m.ID)
}
