package store

import (
	"sync"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store/keys"
)

// Subscription is a live query over the newest messages of one
// conversation. Each change to the conversation re-runs the query and
// delivers the full page snapshot, newest first.
type Subscription struct {
	store  *Store
	convID string
	limit  int
	onPage func([]models.Message)
	onErr  func(error)

	// events coalesces change notifications; one pending is enough since
	// every delivery is a full snapshot.
	events chan struct{}
	done   chan struct{}
	once   sync.Once
}

type hub struct {
	store *Store
	mu    sync.Mutex
	subs  map[string]map[*Subscription]struct{}

	// running tracks delivery goroutines so the database outlives them.
	running sync.WaitGroup
}

func newHub(s *Store) *hub {
	return &hub{store: s, subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe starts a live query for the newest limit messages of convID.
// onPage receives every snapshot on the subscription's goroutine, in order;
// onErr receives query failures. The first snapshot is delivered right away.
func (s *Store) Subscribe(convID string, limit int, onPage func([]models.Message), onErr func(error)) (*Subscription, error) {
	if err := keys.ValidateConversationID(convID); err != nil {
		return nil, err
	}
	if !s.Ready() {
		return nil, ErrClosed
	}
	if onErr == nil {
		onErr = func(err error) {
			logger.Error("subscription_query_failed", "conversation", convID, "error", err)
		}
	}
	sub := &Subscription{
		store:  s,
		convID: convID,
		limit:  limit,
		onPage: onPage,
		onErr:  onErr,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.hub.add(sub)
	sub.events <- struct{}{}
	s.hub.running.Add(1)
	go sub.run()
	logger.Debug("subscription_started", "conversation", convID, "limit", limit)
	return sub, nil
}

// Close stops deliveries. It does not wait for a delivery already running.
// Safe to call more than once.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		close(sub.done)
		sub.store.hub.remove(sub)
		logger.Debug("subscription_closed", "conversation", sub.convID)
	})
}

// ConversationID returns the conversation the subscription watches.
func (sub *Subscription) ConversationID() string {
	return sub.convID
}

func (sub *Subscription) closed() bool {
	select {
	case <-sub.done:
		return true
	default:
		return false
	}
}

func (sub *Subscription) run() {
	defer sub.store.hub.running.Done()
	for {
		select {
		case <-sub.done:
			return
		case <-sub.events:
		}
		page, err := sub.store.ListNewest(sub.convID, sub.limit)
		if sub.closed() {
			return
		}
		if err != nil {
			sub.onErr(err)
			continue
		}
		metrics.SubscriptionDeliveries.Inc()
		sub.onPage(page)
	}
}

func (sub *Subscription) kick() {
	select {
	case sub.events <- struct{}{}:
	default:
	}
}

func (h *hub) add(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.convID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sub.convID] = set
	}
	set[sub] = struct{}{}
	metrics.ActiveSubscriptions.Inc()
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.convID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.convID)
	}
	metrics.ActiveSubscriptions.Dec()
}

// notify wakes every subscription of convID.
func (h *hub) notify(convID string) {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs[convID]))
	for sub := range h.subs[convID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()
	for _, sub := range subs {
		sub.kick()
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*Subscription
	for _, set := range h.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.mu.Unlock()
	for _, sub := range all {
		sub.Close()
	}
	h.running.Wait()
}
