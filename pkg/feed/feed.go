package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store"
	"dmfeed/pkg/store/keys"
)

// Content is what a user sends: trimmed text, an uploaded image reference,
// or both.
type Content struct {
	Text     string
	ImageRef string
}

// Feed is a live, ascending, duplicate-free window over one conversation's
// messages. The newest page is kept current by a subscription; older pages
// are fetched on demand with LoadOlder.
//
// A Feed is bound to one identity for its whole life and shows at most one
// conversation at a time; Open switches conversations.
type Feed struct {
	source   Source
	identity string
	vp       Viewport
	gate     *ReadyGate
	opts     Options
	reporter Reporter
	blobs    BlobRemover
	now      func() time.Time

	// viewMu orders view updates: measuring, merging and rendering of one
	// delivery or fetch complete before the next begins.
	viewMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	convID  string
	peerID  string
	sub     Subscription
	window  []models.Message
	cursor  *store.Cursor
	hasMore bool
	loading bool
	// loaded is set once the first page of the open conversation arrived.
	loaded bool
	draft  string
}

// New returns a feed acting as identity. vp may be nil for a headless feed
// that is always considered pinned to the bottom.
func New(source Source, identity string, vp Viewport, opts ...Option) (*Feed, error) {
	if source == nil {
		return nil, errors.New("feed: nil source")
	}
	if identity == "" {
		return nil, ErrNoIdentity
	}
	if err := keys.ValidateUserID(identity); err != nil {
		return nil, fmt.Errorf("feed identity: %w", err)
	}
	if vp == nil {
		vp = NewMemoryViewport(1, 0, nil)
	}
	f := &Feed{
		source:   source,
		identity: identity,
		vp:       vp,
		gate:     &ReadyGate{},
		opts:     Options{}.withDefaults(),
		reporter: logReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Identity returns the user the feed acts as.
func (f *Feed) Identity() string { return f.identity }

// Gate returns the gate the view uses to signal pending image loads.
func (f *Feed) Gate() *ReadyGate { return f.gate }

// Options returns the effective tuning options.
func (f *Feed) Options() Options { return f.opts }

// Open shows the conversation with peerID. Any previous subscription is
// closed and the window cleared before the new subscription starts, so no
// delivery from the old conversation reaches the new window.
func (f *Feed) Open(ctx context.Context, peerID string) error {
	convID, err := keys.ConversationID(f.identity, peerID)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.sub != nil {
		f.sub.Close()
		f.sub = nil
	}
	f.gen++
	gen := f.gen
	f.convID = convID
	f.peerID = peerID
	f.window = nil
	f.cursor = nil
	f.hasMore = false
	f.loading = false
	f.loaded = false
	f.mu.Unlock()
	f.gate.Reset()

	participants := keys.Participants(f.identity, peerID)
	if _, created, err := f.source.EnsureConversation(ctx, convID, participants); err != nil {
		f.report("ensure_conversation", err)
	} else if created {
		logger.Info("conversation_created", "conversation", convID)
	}

	sub, err := f.source.Subscribe(convID, f.opts.PageSize,
		func(page []models.Message) { f.deliver(gen, page) },
		func(err error) { f.subscriptionFailed(gen, err) },
	)
	if err != nil {
		f.report("subscribe", err)
		return fmt.Errorf("subscribe %s: %w", convID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		// a newer Open or a Close won the race
		sub.Close()
		return nil
	}
	f.sub = sub
	logger.Debug("feed_opened", "conversation", convID, "identity", f.identity)
	return nil
}

// Close tears down the live subscription. Deliveries still in flight are
// discarded. The window keeps its last state.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.loading = false
	if f.sub != nil {
		f.sub.Close()
		f.sub = nil
	}
}

func (f *Feed) deliver(gen uint64, page []models.Message) {
	f.viewMu.Lock()
	defer f.viewMu.Unlock()

	nearBottom := distanceFromBottom(f.vp) < f.opts.BottomThreshold

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		logger.Debug("feed_stale_delivery_dropped", "gen", gen)
		return
	}
	asc := Ascending(page)
	f.window = Merge(f.window, asc)
	if len(asc) > 0 {
		c := store.CursorOf(asc[0])
		f.cursor = &c
	}
	f.hasMore = len(page) == f.opts.PageSize
	autoScroll := !f.loaded || nearBottom
	f.loaded = true
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	metrics.FeedMerges.WithLabelValues("live").Inc()
	f.vp.Render(snapshot)
	if autoScroll {
		f.gate.WhenReady(func() { scrollToBottom(f.vp) })
	}
}

func (f *Feed) subscriptionFailed(gen uint64, err error) {
	f.mu.Lock()
	stale := gen != f.gen
	f.mu.Unlock()
	if stale {
		return
	}
	f.report("subscription", err)
}

// LoadOlder fetches the page of messages just older than the cursor and
// merges it into the window, keeping the message under the viewport in
// place. It is a no-op while a fetch is in flight, when no cursor exists,
// or when the top of history has been reached. The fetch is bounded by
// the LoadTimeout option; on failure the window is unchanged and a later
// call may retry.
func (f *Feed) LoadOlder(ctx context.Context) error {
	f.mu.Lock()
	if !f.hasMore || f.cursor == nil || f.loading {
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	gen := f.gen
	convID := f.convID
	cur := *f.cursor
	f.mu.Unlock()

	f.viewMu.Lock()
	prevHeight := f.vp.ScrollHeight()
	prevTop := f.vp.ScrollTop()
	f.viewMu.Unlock()

	start := time.Now()
	page, err := f.fetchOlder(ctx, convID, cur)
	metrics.FeedLoadOlderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		f.mu.Lock()
		if gen == f.gen {
			f.loading = false
		}
		f.mu.Unlock()
		f.report("load_older", err)
		return err
	}

	f.viewMu.Lock()
	defer f.viewMu.Unlock()
	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return nil
	}
	f.loading = false
	if len(page) == 0 {
		f.hasMore = false
		f.mu.Unlock()
		return nil
	}
	asc := Ascending(page)
	f.window = Merge(f.window, asc)
	c := store.CursorOf(asc[0])
	f.cursor = &c
	f.hasMore = len(page) == f.opts.PageSize
	snapshot := f.snapshotLocked()
	f.mu.Unlock()

	metrics.FeedMerges.WithLabelValues("older").Inc()
	f.vp.Render(snapshot)
	f.gate.WhenReady(func() {
		f.vp.SetScrollTop(f.vp.ScrollHeight() - prevHeight + prevTop)
	})
	return nil
}

type fetchResult struct {
	page []models.Message
	err  error
}

// fetchOlder runs the one-shot query under the load timeout. A source that
// ignores ctx cannot hold the in-flight flag past the timeout.
func (f *Feed) fetchOlder(ctx context.Context, convID string, cur store.Cursor) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.LoadTimeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		page, err := f.source.ListBefore(ctx, convID, cur, f.opts.PageSize)
		done <- fetchResult{page: page, err: err}
	}()
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrLoadTimeout, f.opts.LoadTimeout)
		}
		return r.page, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrLoadTimeout, f.opts.LoadTimeout)
		}
		return nil, ctx.Err()
	}
}

// OnScroll is the scroll handler: near the top of the view it fetches older
// history, subject to LoadOlder's in-flight guard.
func (f *Feed) OnScroll(ctx context.Context) error {
	if f.vp.ScrollTop() >= f.opts.TopThreshold {
		return nil
	}
	return f.LoadOlder(ctx)
}

// Send appends a message from the feed's identity to the open conversation
// and refreshes the conversation preview. The window is not touched; the
// live subscription picks the message up.
func (f *Feed) Send(ctx context.Context, c Content) (models.Message, error) {
	_, peerID, err := f.current()
	if err != nil {
		return models.Message{}, err
	}
	return f.writer().Send(ctx, peerID, c)
}

// SetDraft replaces the input buffer.
func (f *Feed) SetDraft(text string) {
	f.mu.Lock()
	f.draft = text
	f.mu.Unlock()
}

// Draft returns the input buffer.
func (f *Feed) Draft() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// SendDraft sends the input buffer as text and clears it on success.
func (f *Feed) SendDraft(ctx context.Context) (models.Message, error) {
	draft := f.Draft()
	m, err := f.Send(ctx, Content{Text: draft})
	if err != nil {
		return m, err
	}
	f.mu.Lock()
	if f.draft == draft {
		f.draft = ""
	}
	f.mu.Unlock()
	return m, nil
}

// Edit replaces the text of one of the identity's own messages in the open
// conversation while the edit window is open.
func (f *Feed) Edit(ctx context.Context, msgID, text string) (models.Message, error) {
	_, peerID, err := f.current()
	if err != nil {
		return models.Message{}, err
	}
	return f.writer().Edit(ctx, peerID, msgID, text)
}

// Delete soft-deletes one of the identity's own messages in the open
// conversation.
func (f *Feed) Delete(ctx context.Context, msgID string) (models.Message, error) {
	_, peerID, err := f.current()
	if err != nil {
		return models.Message{}, err
	}
	return f.writer().Delete(ctx, peerID, msgID)
}

// Window returns a copy of the current window, oldest first.
func (f *Feed) Window() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// HasMore reports whether older history may exist.
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Loading reports whether an older-page fetch is in flight.
func (f *Feed) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// ConversationID returns the open conversation, or "" before Open.
func (f *Feed) ConversationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.convID
}

// Cursor returns the backward-pagination cursor, if any.
func (f *Feed) Cursor() (store.Cursor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor == nil {
		return store.Cursor{}, false
	}
	return *f.cursor, true
}

func (f *Feed) current() (convID, peerID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convID == "" {
		return "", "", ErrNotOpen
	}
	return f.convID, f.peerID, nil
}

func (f *Feed) snapshotLocked() []models.Message {
	out := make([]models.Message, len(f.window))
	copy(out, f.window)
	return out
}
