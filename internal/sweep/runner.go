package sweep

import (
	"context"
	"fmt"
	"time"

	"dmfeed/pkg/blob"
	"dmfeed/pkg/logger"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store/keys"
)

// Result summarizes one sweep.
type Result struct {
	RunID      string
	Scanned    int
	Referenced int
	TooYoung   int
	Deleted    int
	Failed     int
	DryRun     bool
}

// runOnce acquires the lease, collects every blob reference held by a
// message and deletes the unreferenced blobs older than MinAge.
func (sw *Sweeper) runOnce(ctx context.Context) (Result, error) {
	res := Result{RunID: keys.GenMessageID(), DryRun: sw.cfg.DryRun}

	if sw.leaseDir != "" {
		lock := NewFileLease(sw.leaseDir, sw.now)
		acq, err := lock.Acquire(res.RunID, 10*time.Minute)
		if err != nil {
			return res, fmt.Errorf("lease acquire failed: %w", err)
		}
		if !acq {
			logger.Info("sweep_lease_not_acquired")
			return res, ErrRunning
		}
		defer func() {
			if err := lock.Release(res.RunID); err != nil {
				logger.Error("sweep_lease_release_error", "error", err)
			}
		}()
	}

	logger.Info("sweep_run_start", "run_id", res.RunID, "dry_run", res.DryRun)

	referenced := make(map[string]struct{})
	err := sw.store.ForEachMessage(func(convID string, m models.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.ImageURL != "" && blob.IsRef(m.ImageURL) {
			referenced[m.ImageURL] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan messages: %w", err)
	}

	metas, err := sw.blobs.List()
	if err != nil {
		return res, fmt.Errorf("list blobs: %w", err)
	}
	cutoff := sw.now().Add(-sw.cfg.MinAge.Duration()).UnixNano()
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		ref := meta.Ref()
		if _, ok := referenced[ref]; ok {
			res.Referenced++
			continue
		}
		if meta.CreatedAt > cutoff {
			res.TooYoung++
			continue
		}
		if res.DryRun {
			logger.Info("sweep_item", "run_id", res.RunID, "ref", ref, "status", "dry_run")
			res.Deleted++
			continue
		}
		if err := sw.blobs.Delete(ref); err != nil {
			res.Failed++
			logger.Error("sweep_delete_failed", "run_id", res.RunID, "ref", ref, "error", err)
			continue
		}
		res.Deleted++
		logger.Info("sweep_item", "run_id", res.RunID, "ref", ref, "owner", meta.Owner, "status", "deleted")
	}

	logger.Info("sweep_run_complete", "run_id", res.RunID, "scanned", res.Scanned, "deleted", res.Deleted, "failed", res.Failed)
	return res, nil
}
