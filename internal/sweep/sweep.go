package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"dmfeed/pkg/blob"
	"dmfeed/pkg/config"
	"dmfeed/pkg/logger"
	"dmfeed/pkg/store"
)

// DefaultMinAge protects uploads that a message has not referenced yet.
const DefaultMinAge = time.Hour

var ErrRunning = errors.New("sweep already running")

// Sweeper deletes blobs that no message references: images of messages
// whose blob removal failed at delete time, and uploads that were never
// sent.
type Sweeper struct {
	cfg      config.SweepConfig
	store    *store.Store
	blobs    *blob.Store
	leaseDir string
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

func New(cfg config.SweepConfig, s *store.Store, b *blob.Store, leaseDir string) *Sweeper {
	if cfg.MinAge <= 0 {
		cfg.MinAge = config.Duration(DefaultMinAge)
	}
	return &Sweeper{cfg: cfg, store: s, blobs: b, leaseDir: leaseDir, now: time.Now}
}

// Start runs the sweeper on its cron schedule until ctx is done or the
// returned cancel is called. A disabled sweeper returns a no-op cancel.
func (sw *Sweeper) Start(ctx context.Context) (context.CancelFunc, error) {
	if !sw.cfg.Enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}
	if !gronx.IsValid(sw.cfg.Cron) {
		return nil, errors.New("sweep: invalid cron expression " + sw.cfg.Cron)
	}
	ctx2, cancel := context.WithCancel(ctx)
	logger.Info("sweep_enabled", "cron", sw.cfg.Cron, "min_age", sw.cfg.MinAge.String(), "dry_run", sw.cfg.DryRun)
	go sw.scheduleLoop(ctx2)
	return cancel, nil
}

func (sw *Sweeper) scheduleLoop(ctx context.Context) {
	for {
		now := sw.now()
		next, err := gronx.NextTickAfter(sw.cfg.Cron, now, false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", sw.cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := next.Sub(now)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			sw.runJob(ctx)
		case <-ctx.Done():
			logger.Info("sweep_stopped")
			return
		}
	}
}

func (sw *Sweeper) runJob(ctx context.Context) {
	if _, err := sw.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunning) {
		logger.Error("sweep_run_error", "error", err)
	}
}

// RunOnce performs one sweep now. Overlapping runs return ErrRunning.
func (sw *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return Result{}, ErrRunning
	}
	sw.running = true
	sw.mu.Unlock()

	defer func() {
		sw.mu.Lock()
		sw.running = false
		sw.mu.Unlock()
	}()

	return sw.runOnce(ctx)
}
