package api

import (
	"sync"
	"time"

	"dmfeed/pkg/blob"
	"dmfeed/pkg/feed"
	"dmfeed/pkg/store"
)

// DefaultHeartbeat is how often an idle stream writes a keep-alive comment.
const DefaultHeartbeat = 15 * time.Second

// API serves the message backend over HTTP. Reads go straight to the store;
// writes go through a feed.Writer so the HTTP surface enforces the same
// sender and edit-window rules as an interactive feed.
type API struct {
	store     *store.Store
	blobs     *blob.Store
	source    *feed.StoreSource
	feedOpts  feed.Options
	version   string
	heartbeat time.Duration

	// done ends open streams so server shutdown is not held by them.
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
	streams sync.WaitGroup
}

// Options configures an API.
type Options struct {
	Feed      feed.Options
	Version   string
	Heartbeat time.Duration
}

func New(s *store.Store, b *blob.Store, opts Options) *API {
	hb := opts.Heartbeat
	if hb <= 0 {
		hb = DefaultHeartbeat
	}
	return &API{
		store:     s,
		blobs:     b,
		source:    feed.NewStoreSource(s),
		feedOpts:  opts.Feed,
		version:   opts.Version,
		heartbeat: hb,
		done:      make(chan struct{}),
	}
}

// Close ends every open stream and waits for their handlers to return.
func (a *API) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.done)
	}
	a.mu.Unlock()
	a.streams.Wait()
}

// track registers a stream unless the API is closing.
func (a *API) track() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.streams.Add(1)
	return true
}

func (a *API) writer(identity string) (*feed.Writer, error) {
	opts := []feed.Option{feed.WithOptions(a.feedOpts)}
	if a.blobs != nil {
		opts = append(opts, feed.WithBlobs(a.blobs))
	}
	return feed.NewWriter(a.source, identity, opts...)
}
