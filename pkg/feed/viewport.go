package feed

import (
	"sync"

	"dmfeed/pkg/models"
)

// Viewport is the scrollable view the feed renders into. Render is called
// with the full window after every change and must update ScrollHeight
// before returning; content that settles later (images) is tracked through
// the feed's ReadyGate. Viewport methods must not call back into the Feed.
type Viewport interface {
	Render(window []models.Message)
	ScrollTop() float64
	ScrollHeight() float64
	ClientHeight() float64
	SetScrollTop(top float64)
}

// distanceFromBottom is how far the viewport is scrolled away from the
// newest content.
func distanceFromBottom(v Viewport) float64 {
	return v.ScrollHeight() - v.ScrollTop() - v.ClientHeight()
}

func scrollToBottom(v Viewport) {
	v.SetScrollTop(v.ScrollHeight())
}

// MemoryViewport lays messages out as fixed-height rows. Prepending rows
// leaves ScrollTop unchanged, the way a browser scroll container behaves.
type MemoryViewport struct {
	mu        sync.Mutex
	rowHeight float64
	client    float64
	height    float64
	top       float64
	rendered  []models.Message
	onRender  func([]models.Message)
}

// NewMemoryViewport returns a viewport clientHeight tall whose rows are
// rowHeight tall. onRender, when set, observes every render.
func NewMemoryViewport(rowHeight, clientHeight float64, onRender func([]models.Message)) *MemoryViewport {
	return &MemoryViewport{rowHeight: rowHeight, client: clientHeight, onRender: onRender}
}

func (v *MemoryViewport) Render(window []models.Message) {
	v.mu.Lock()
	v.rendered = window
	v.height = float64(len(window)) * v.rowHeight
	v.top = v.clamp(v.top)
	fn := v.onRender
	v.mu.Unlock()
	if fn != nil {
		fn(window)
	}
}

func (v *MemoryViewport) ScrollTop() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.top
}

func (v *MemoryViewport) ScrollHeight() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.height
}

func (v *MemoryViewport) ClientHeight() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.client
}

func (v *MemoryViewport) SetScrollTop(top float64) {
	v.mu.Lock()
	v.top = v.clamp(top)
	v.mu.Unlock()
}

// Rendered returns the window passed to the last Render.
func (v *MemoryViewport) Rendered() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rendered
}

func (v *MemoryViewport) clamp(top float64) float64 {
	maxTop := v.height - v.client
	if top > maxTop {
		top = maxTop
	}
	if top < 0 {
		top = 0
	}
	return top
}
