package feed

import "time"

const (
	DefaultPageSize        = 30
	DefaultBottomThreshold = 150
	DefaultTopThreshold    = 60
	DefaultLoadTimeout     = 15 * time.Second
	DefaultEditWindow      = 15 * time.Minute
)

// Options tunes a Feed. Zero fields take the defaults above.
type Options struct {
	// PageSize bounds both the live page and every older page.
	PageSize int
	// BottomThreshold is the distance from the bottom, in viewport units,
	// within which a live update keeps the view pinned to the newest item.
	BottomThreshold float64
	// TopThreshold is the distance from the top within which OnScroll
	// fetches older history.
	TopThreshold float64
	// LoadTimeout bounds a single older-page fetch.
	LoadTimeout time.Duration
	// EditWindow is how long after sending a message its sender may edit
	// it. Negative disables the limit.
	EditWindow time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.BottomThreshold <= 0 {
		o.BottomThreshold = DefaultBottomThreshold
	}
	if o.TopThreshold <= 0 {
		o.TopThreshold = DefaultTopThreshold
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.EditWindow == 0 {
		o.EditWindow = DefaultEditWindow
	}
	return o
}

type Option func(*Feed)

// WithOptions replaces the tuning options.
func WithOptions(o Options) Option {
	return func(f *Feed) { f.opts = o.withDefaults() }
}

func WithPageSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.opts.PageSize = n
		}
	}
}

func WithLoadTimeout(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.opts.LoadTimeout = d
		}
	}
}

func WithEditWindow(d time.Duration) Option {
	return func(f *Feed) {
		if d != 0 {
			f.opts.EditWindow = d
		}
	}
}

// WithReporter routes handled failures to r instead of the log.
func WithReporter(r Reporter) Option {
	return func(f *Feed) {
		if r != nil {
			f.reporter = r
		}
	}
}

// WithBlobs lets Delete remove the image a message referenced.
func WithBlobs(b BlobRemover) Option {
	return func(f *Feed) { f.blobs = b }
}

// WithClock overrides the clock used for edit-window checks.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) {
		if now != nil {
			f.now = now
		}
	}
}
