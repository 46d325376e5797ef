package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/models"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("store closed")

// MessageTrigger runs after a message document has been created.
type MessageTrigger func(convID string, m models.Message)

// Store is the pebble-backed document store: conversations, their message
// collections, per-user indexes and delivery tokens.
type Store struct {
	db          *pebble.DB
	path        string
	walDisabled bool

	// mu serialises writes so timestamp assignment and read-modify-write
	// merges are atomic with respect to each other.
	mu     sync.Mutex
	lastTS int64
	now    func() time.Time

	hub *hub

	trigMu   sync.RWMutex
	triggers []MessageTrigger
	trigWG   sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

type Options struct {
	// DisableWAL turns off pebble's write-ahead log.
	DisableWAL bool
	// Now overrides the clock used for server timestamps.
	Now func() time.Time
}

// Open opens or creates the store at path.
func Open(path string, opts Options) (*Store, error) {
	popts := &pebble.Options{
		DisableWAL: opts.DisableWAL,
	}
	if opts.DisableWAL {
		logger.Warn("durability_disabled", "durability", "no WAL enabled", "path", path)
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Store{
		db:          db,
		path:        path,
		walDisabled: opts.DisableWAL,
		now:         now,
		closed:      make(chan struct{}),
	}
	s.hub = newHub(s)
	logger.Info("store_opened", "path", path)
	return s, nil
}

// Close tears down live subscriptions, waits for running triggers and
// closes the database. Safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.hub.closeAll()
		s.trigWG.Wait()
		err = s.db.Close()
		if err != nil {
			logger.Error("pebble_close_failed", "path", s.path, "error", err)
		}
	})
	return err
}

// Path returns the on-disk location of the store.
func (s *Store) Path() string {
	return s.path
}

// Ready reports whether the store is open.
func (s *Store) Ready() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// IsNotFound reports whether err means a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pebble.ErrNotFound)
}

func (s *Store) writeOpt() *pebble.WriteOptions {
	if s.walDisabled {
		return pebble.NoSync
	}
	return pebble.Sync
}

// get returns a copy of the value stored at key.
func (s *Store) get(key string) ([]byte, error) {
	if !s.Ready() {
		return nil, ErrClosed
	}
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			logger.Debug("get_key_missing", "key", key)
			return nil, ErrNotFound
		}
		logger.Error("get_key_failed", "key", key, "error", err)
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (s *Store) apply(batch *pebble.Batch) error {
	if !s.Ready() {
		return ErrClosed
	}
	if err := s.db.Apply(batch, s.writeOpt()); err != nil {
		logger.Error("pebble_apply_batch_failed", "error", err)
		return err
	}
	return nil
}

// nextTS returns a server timestamp strictly greater than any previously
// assigned one. Callers must hold s.mu.
func (s *Store) nextTS() int64 {
	ts := s.now().UnixNano()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

// ListKeys lists all keys with prefix; all keys when prefix is empty.
func (s *Store) ListKeys(prefix string) ([]string, error) {
	if !s.Ready() {
		return nil, ErrClosed
	}
	opts := &pebble.IterOptions{}
	if prefix != "" {
		opts.LowerBound = []byte(prefix)
	}
	iter, err := s.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	pfx := []byte(prefix)
	var out []string
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}

// GetKey returns the raw value at key.
func (s *Store) GetKey(key string) (string, error) {
	v, err := s.get(key)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return string(v), nil
}
