package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"dmfeed/pkg/models"
	"dmfeed/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type fakeLookup struct {
	convs  map[string]models.Conversation
	tokens map[string]models.DeliveryToken
}

func (l fakeLookup) GetConversation(convID string) (models.Conversation, error) {
	c, ok := l.convs[convID]
	if !ok {
		return models.Conversation{}, store.ErrNotFound
	}
	return c, nil
}

func (l fakeLookup) GetToken(uid string) (models.DeliveryToken, error) {
	t, ok := l.tokens[uid]
	if !ok {
		return models.DeliveryToken{}, store.ErrNotFound
	}
	return t, nil
}

type captureSender struct {
	sent []Notification
	err  error
}

func (c *captureSender) Send(_ context.Context, n Notification) error {
	c.sent = append(c.sent, n)
	return c.err
}

func lookupFixture() fakeLookup {
	return fakeLookup{
		convs: map[string]models.Conversation{
			"alice_bob": {ID: "alice_bob", Participants: []string{"alice", "bob"}},
		},
		tokens: map[string]models.DeliveryToken{
			"bob": {UserID: "bob", Token: "bob-device"},
		},
	}
}

func TestNotifyPicksOtherParticipant(t *testing.T) {
	sender := &captureSender{}
	n := New(lookupFixture(), sender, time.Second)

	err := n.Notify(context.Background(), "alice_bob", models.Message{ID: "m1", Text: "hi", SenderID: "alice"})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "bob-device", sender.sent[0].Token)
	assert.Equal(t, Title, sender.sent[0].Title)
	assert.Equal(t, "hi", sender.sent[0].Body)
	assert.Equal(t, "alice_bob", sender.sent[0].Data["conversation_id"])
}

func TestNotifyImageOnlyUsesDefaultBody(t *testing.T) {
	sender := &captureSender{}
	n := New(lookupFixture(), sender, time.Second)
	require.NoError(t, n.Notify(context.Background(), "alice_bob", models.Message{ID: "m1", ImageURL: "blob://x", SenderID: "alice"}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, DefaultBody, sender.sent[0].Body)
}

func TestNotifySkipsMissingSteps(t *testing.T) {
	sender := &captureSender{}
	n := New(lookupFixture(), sender, time.Second)
	ctx := context.Background()

	// no conversation record
	require.NoError(t, n.Notify(ctx, "alice_carol", models.Message{ID: "m1", Text: "x", SenderID: "alice"}))
	// recipient has no token
	require.NoError(t, n.Notify(ctx, "alice_bob", models.Message{ID: "m2", Text: "x", SenderID: "bob"}))
	assert.Empty(t, sender.sent)
}

func TestNotifySendFailureIsSwallowedByTrigger(t *testing.T) {
	sender := &captureSender{err: errors.New("gateway down")}
	n := New(lookupFixture(), sender, time.Second)

	err := n.Notify(context.Background(), "alice_bob", models.Message{ID: "m1", Text: "hi", SenderID: "alice"})
	assert.ErrorContains(t, err, "gateway down")

	assert.NotPanics(t, func() {
		n.OnMessageCreated("alice_bob", models.Message{ID: "m1", Text: "hi", SenderID: "alice"})
	})
	assert.Len(t, sender.sent, 2)
}

type memJournal struct {
	convs []string
	errs  []error
}

func (j *memJournal) Record(convID string, _ models.Message, err error) error {
	j.convs = append(j.convs, convID)
	j.errs = append(j.errs, err)
	return nil
}

func TestFailedSendIsJournaled(t *testing.T) {
	j := &memJournal{}
	n := New(lookupFixture(), &captureSender{err: errors.New("gateway down")}, time.Second)
	n.SetJournal(j)

	n.OnMessageCreated("alice_bob", models.Message{ID: "m1", Text: "hi", SenderID: "alice"})
	require.Len(t, j.errs, 1)
	assert.Equal(t, []string{"alice_bob"}, j.convs)
	assert.ErrorContains(t, j.errs[0], "gateway down")

	// skipped steps are not failures
	n.OnMessageCreated("missing", models.Message{ID: "m2", Text: "hi", SenderID: "alice"})
	assert.Len(t, j.errs, 1)
}

func serveGateway(t *testing.T, handler fasthttp.RequestHandler) *WebhookSender {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })

	w := NewWebhookSender("http://gateway.local/push", time.Second)
	w.client.Dial = func(addr string) (net.Conn, error) { return ln.Dial() }
	return w
}

func TestWebhookSenderPostsJSON(t *testing.T) {
	got := make(chan Notification, 1)
	w := serveGateway(t, func(ctx *fasthttp.RequestCtx) {
		var n Notification
		if err := json.Unmarshal(ctx.PostBody(), &n); err != nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			return
		}
		got <- n
		ctx.SetStatusCode(fasthttp.StatusAccepted)
	})

	err := w.Send(context.Background(), Notification{Token: "t", Title: Title, Body: "hi"})
	require.NoError(t, err)
	n := <-got
	assert.Equal(t, "t", n.Token)
	assert.Equal(t, "hi", n.Body)
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	w := serveGateway(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})
	err := w.Send(context.Background(), Notification{Token: "t"})
	assert.ErrorContains(t, err, "503")
}

func TestNotifierAttachedToStore(t *testing.T) {
	s, err := store.Open(t.TempDir(), store.Options{})
	require.NoError(t, err)
	defer s.Close()

	_, _, err = s.EnsureConversation("alice_bob", []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = s.PutToken("bob", "bob-device")
	require.NoError(t, err)

	sender := &captureSender{}
	New(s, sender, time.Second).Attach(s)

	_, err = s.AddMessage("alice_bob", models.Message{Text: "ping", SenderID: "alice"})
	require.NoError(t, err)
	s.WaitTriggers()

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ping", sender.sent[0].Body)
	assert.Equal(t, "bob-device", sender.sent[0].Token)
}
