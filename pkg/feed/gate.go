package feed

import "sync"

// ReadyGate defers layout-dependent actions until every pending
// asynchronous sub-resource (an image decode, say) has settled. The view
// calls Add when it starts loading one and Done when it finishes or fails.
type ReadyGate struct {
	mu      sync.Mutex
	pending int
	queue   []func()
}

// Add registers n pending sub-resources.
func (g *ReadyGate) Add(n int) {
	if n <= 0 {
		return
	}
	g.mu.Lock()
	g.pending += n
	g.mu.Unlock()
}

// Done settles one pending sub-resource. When the count reaches zero the
// queued actions run in the order they were queued.
func (g *ReadyGate) Done() {
	g.mu.Lock()
	if g.pending == 0 {
		g.mu.Unlock()
		return
	}
	g.pending--
	var run []func()
	if g.pending == 0 {
		run = g.queue
		g.queue = nil
	}
	g.mu.Unlock()
	for _, fn := range run {
		fn()
	}
}

// WhenReady runs fn now if nothing is pending, otherwise once the pending
// count drops to zero.
func (g *ReadyGate) WhenReady(fn func()) {
	g.mu.Lock()
	if g.pending > 0 {
		g.queue = append(g.queue, fn)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	fn()
}

// Pending returns the number of unsettled sub-resources.
func (g *ReadyGate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Reset drops pending work and queued actions.
func (g *ReadyGate) Reset() {
	g.mu.Lock()
	g.pending = 0
	g.queue = nil
	g.mu.Unlock()
}
