package app

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"

	"dmfeed/internal/sweep"
	"dmfeed/pkg/api"
	"dmfeed/pkg/blob"
	"dmfeed/pkg/config"
	"dmfeed/pkg/feed"
	"dmfeed/pkg/logger"
	"dmfeed/pkg/notify"
	"dmfeed/pkg/state"
	"dmfeed/pkg/store"
)

// App groups server state and components.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string
	paths     state.Paths

	store    *store.Store
	blobs    *blob.Store
	notifier *notify.Notifier
	journal  *state.FailedOpWriter
	sweeper  *sweep.Sweeper
	api      *api.API

	sweepCancel context.CancelFunc
	srv         *fasthttp.Server
	lnMu        sync.Mutex
	ln          net.Listener
	state       string
	startedAt   time.Time
}

// New opens the stores and wires the components. It does not start the
// sweeper or the http server; call Run for that.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if eff.Config == nil {
		return nil, fmt.Errorf("effective config is nil")
	}
	// open store (caller ensures directories exist)
	paths := state.PathsVar
	if paths.Store == "" {
		return nil, fmt.Errorf("state paths not initialized")
	}
	cfg := eff.Config

	if cfg.Store.DisablePebbleWAL {
		logger.LogConfigSummary("config_durability_summary", []string{
			"pebble_wal: disabled",
			"loss_window: unsynced writes since last flush",
			fmt.Sprintf("blob_max_size: %s", humanize.IBytes(uint64(cfg.Blobs.MaxSize.Int64()))),
		})
	}

	s, err := store.Open(paths.Store, store.Options{DisableWAL: cfg.Store.DisablePebbleWAL})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", paths.Store, err)
	}
	b, err := blob.Open(paths.Blobs, cfg.Blobs.MaxSize.Int64())
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to open blob store at %s: %w", paths.Blobs, err)
	}

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		paths:     paths,
		store:     s,
		blobs:     b,
		state:     "initialized",
	}

	if cfg.Notify.Enabled {
		var sender notify.Sender = notify.LogSender{}
		if cfg.Notify.GatewayURL != "" {
			sender = notify.NewWebhookSender(cfg.Notify.GatewayURL, cfg.Notify.Timeout.Duration())
		}
		a.journal = state.NewFailedOpWriter(paths.Logs)
		a.notifier = notify.New(s, sender, cfg.Notify.Timeout.Duration())
		a.notifier.SetJournal(a.journal)
		a.notifier.Attach(s)
	}

	a.sweeper = sweep.New(cfg.Sweep, s, b, paths.State)
	a.api = api.New(s, b, api.Options{
		Feed:    feedOptions(cfg.Feed),
		Version: a.versionString(),
	})
	return a, nil
}

// Run starts the sweeper and the http server and blocks until ctx is
// cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()
	a.startedAt = time.Now()

	cancel, err := a.sweeper.Start(ctx)
	if err != nil {
		return err
	}
	a.sweepCancel = cancel

	errCh, err := a.startHTTP(ctx)
	if err != nil {
		return err
	}
	a.state = "running"

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// ListenAddr returns the bound http address once Run has started serving.
func (a *App) ListenAddr() net.Addr {
	a.lnMu.Lock()
	defer a.lnMu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Sweeper exposes the blob sweeper for on-demand runs.
func (a *App) Sweeper() *sweep.Sweeper { return a.sweeper }

func (a *App) versionString() string {
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	if a.commit != "" && a.commit != "none" {
		ver += " (" + a.commit + ")"
	}
	if a.buildDate != "" && a.buildDate != "unknown" {
		ver += " @ " + a.buildDate
	}
	return ver
}

// feedOptions maps the feed config section onto the feed tuning options.
func feedOptions(c config.FeedConfig) feed.Options {
	return feed.Options{
		PageSize:        c.PageSize,
		BottomThreshold: c.BottomThreshold,
		TopThreshold:    c.TopThreshold,
		LoadTimeout:     c.LoadTimeout.Duration(),
		EditWindow:      c.EditWindow.Duration(),
	}
}
