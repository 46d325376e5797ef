package sweep

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dmfeed/pkg/logger"
)

// fileLease keeps two processes sharing a database from sweeping at once.
type fileLease struct {
	path string
	now  func() time.Time
}

type leaseFile struct {
	Owner   string `json:"owner"`
	Expires string `json:"expires"`
}

func NewFileLease(dir string, now func() time.Time) *fileLease {
	if now == nil {
		now = time.Now
	}
	return &fileLease{path: filepath.Join(dir, "sweep.lock"), now: now}
}

func (l *fileLease) Acquire(owner string, ttl time.Duration) (bool, error) {
	now := l.now()
	lf := leaseFile{Owner: owner, Expires: now.Add(ttl).Format(time.RFC3339)}
	b, _ := json.Marshal(lf)
	tmp := l.path + "." + owner + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		logger.Error("lease_tmp_write_failed", "path", tmp, "error", err)
		return false, err
	}
	defer os.Remove(tmp)

	// create lock atomically if not exists
	if err := os.Link(tmp, l.path); err == nil {
		logger.Debug("lease_acquired", "path", l.path, "owner", owner)
		return true, nil
	}

	// if exists, read and check expiry
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false, err
	}
	var existing leaseFile
	if err := json.Unmarshal(data, &existing); err != nil {
		return false, err
	}
	expT, _ := time.Parse(time.RFC3339, existing.Expires)
	if expT.Before(now) {
		if err := os.Rename(tmp, l.path); err != nil {
			logger.Error("lease_replace_failed", "error", err)
			return false, err
		}
		logger.Info("lease_acquired_replaced", "path", l.path, "owner", owner, "previous", existing.Owner)
		return true, nil
	}
	logger.Info("lease_currently_held", "path", l.path, "owner", existing.Owner)
	return false, nil
}

func (l *fileLease) Release(owner string) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	var existing leaseFile
	if err := json.Unmarshal(data, &existing); err != nil {
		return err
	}
	if existing.Owner != owner {
		logger.Error("lease_release_not_owner", "owner", owner)
		return fmt.Errorf("not owner")
	}
	if err := os.Remove(l.path); err != nil {
		logger.Error("lease_release_remove_failed", "error", err)
		return err
	}
	logger.Debug("lease_released", "path", l.path, "owner", owner)
	return nil
}
