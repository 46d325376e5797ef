package sweep

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"dmfeed/pkg/blob"
	"dmfeed/pkg/config"
	"dmfeed/pkg/models"
	"dmfeed/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *store.Store
	blobs *blob.Store
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "store"), store.Options{})
	require.NoError(t, err)
	b, err := blob.Open(filepath.Join(dir, "blobs"), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = b.Close()
	})
	return &fixture{store: s, blobs: b, dir: dir}
}

func (f *fixture) upload(t *testing.T) string {
	t.Helper()
	m, err := f.blobs.Put("alice", "image/png", []byte("png"))
	require.NoError(t, err)
	return m.Ref()
}

func TestSweepDeletesOnlyOrphans(t *testing.T) {
	f := newFixture(t)
	kept := f.upload(t)
	orphan := f.upload(t)
	_, err := f.store.AddMessage("alice_bob", models.Message{ImageURL: kept, SenderID: "alice"})
	require.NoError(t, err)

	sw := New(config.SweepConfig{MinAge: config.Duration(time.Minute)}, f.store, f.blobs, f.dir)
	sw.now = func() time.Time { return time.Now().Add(time.Hour) }

	res, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Referenced)
	assert.Equal(t, 1, res.Deleted)

	_, err = f.blobs.Stat(kept)
	assert.NoError(t, err)
	_, err = f.blobs.Stat(orphan)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestSweepSparesFreshUploads(t *testing.T) {
	f := newFixture(t)
	fresh := f.upload(t)

	sw := New(config.SweepConfig{}, f.store, f.blobs, "")
	res, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TooYoung)
	assert.Equal(t, 0, res.Deleted)
	_, err = f.blobs.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweepDryRunKeepsBlobs(t *testing.T) {
	f := newFixture(t)
	orphan := f.upload(t)

	sw := New(config.SweepConfig{DryRun: true}, f.store, f.blobs, f.dir)
	sw.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	res, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Deleted)
	_, err = f.blobs.Stat(orphan)
	assert.NoError(t, err)
}

func TestSweepRespectsHeldLease(t *testing.T) {
	f := newFixture(t)
	other := NewFileLease(f.dir, nil)
	ok, err := other.Acquire("other", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	sw := New(config.SweepConfig{}, f.store, f.blobs, f.dir)
	_, err = sw.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunning)

	require.NoError(t, other.Release("other"))
	_, err = sw.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestExpiredLeaseIsReplaced(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)
	l := NewFileLease(dir, func() time.Time { return now })
	ok, err := l.Acquire("a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Error(t, l.Release("a"))
	assert.NoError(t, l.Release("b"))
}

func TestStartDisabledAndInvalidCron(t *testing.T) {
	f := newFixture(t)
	cancel, err := New(config.SweepConfig{}, f.store, f.blobs, "").Start(context.Background())
	require.NoError(t, err)
	cancel()

	_, err = New(config.SweepConfig{Enabled: true, Cron: "not a cron"}, f.store, f.blobs, "").Start(context.Background())
	assert.Error(t, err)

	cancel, err = New(config.SweepConfig{Enabled: true, Cron: "*/5 * * * *"}, f.store, f.blobs, "").Start(context.Background())
	require.NoError(t, err)
	cancel()
}
