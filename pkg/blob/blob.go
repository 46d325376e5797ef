package blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/metrics"

	"github.com/cockroachdb/pebble"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// RefScheme prefixes every blob reference stored in a message.
const RefScheme = "blob://"

var (
	ErrNotFound   = errors.New("blob not found")
	ErrTooLarge   = errors.New("blob too large")
	ErrEmpty      = errors.New("blob is empty")
	ErrInvalidRef = errors.New("invalid blob reference")
)

const (
	metaPrefix = "meta:"
	dataPrefix = "data:"
)

// Meta describes a stored blob.
type Meta struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   int64  `json:"created_at"`
}

// Ref returns the reference under which m is addressed.
func (m Meta) Ref() string {
	return RefScheme + m.ID
}

// Store keeps uploaded images in their own pebble instance.
type Store struct {
	db      *pebble.DB
	path    string
	maxSize int64
}

// Open opens or creates the blob store at path. maxSize <= 0 disables the
// size limit.
func Open(path string, maxSize int64) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("blob_store_open_failed", "path", path, "error", err)
		return nil, err
	}
	logger.Info("blob_store_opened", "path", path, "max_size", humanize.IBytes(uint64(max(maxSize, 0))))
	return &Store{db: db, path: path, maxSize: maxSize}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// IsRef reports whether v is a blob reference.
func IsRef(v string) bool {
	return strings.HasPrefix(v, RefScheme)
}

// ParseRef extracts the blob id from ref.
func ParseRef(ref string) (string, error) {
	if !IsRef(ref) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	id := strings.TrimPrefix(ref, RefScheme)
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return id, nil
}

// Put stores data and returns its metadata; Meta.Ref() is the reference to
// put in a message.
func (s *Store) Put(owner, contentType string, data []byte) (Meta, error) {
	if len(data) == 0 {
		return Meta{}, ErrEmpty
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return Meta{}, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(s.maxSize)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	m := Meta{
		ID:          uuid.NewString(),
		Owner:       owner,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UnixNano(),
	}
	mb, err := json.Marshal(m)
	if err != nil {
		return Meta{}, fmt.Errorf("marshal blob meta: %w", err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	_ = batch.Set([]byte(metaPrefix+m.ID), mb, nil)
	_ = batch.Set([]byte(dataPrefix+m.ID), data, nil)
	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		logger.Error("blob_put_failed", "id", m.ID, "error", err)
		return Meta{}, err
	}
	metrics.BlobBytes.WithLabelValues("put").Add(float64(m.Size))
	logger.Info("blob_stored", "id", m.ID, "owner", owner, "size", humanize.IBytes(uint64(m.Size)))
	return m, nil
}

// Stat returns the metadata of ref.
func (s *Store) Stat(ref string) (Meta, error) {
	id, err := ParseRef(ref)
	if err != nil {
		return Meta{}, err
	}
	return s.stat(id)
}

func (s *Store) stat(id string) (Meta, error) {
	v, closer, err := s.db.Get([]byte(metaPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Meta{}, ErrNotFound
		}
		return Meta{}, err
	}
	defer closer.Close()
	var m Meta
	if err := json.Unmarshal(v, &m); err != nil {
		return Meta{}, fmt.Errorf("decode blob meta %s: %w", id, err)
	}
	return m, nil
}

// Get returns the metadata and content of ref.
func (s *Store) Get(ref string) (Meta, []byte, error) {
	m, err := s.Stat(ref)
	if err != nil {
		return Meta{}, nil, err
	}
	v, closer, err := s.db.Get([]byte(dataPrefix + m.ID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Meta{}, nil, ErrNotFound
		}
		return Meta{}, nil, err
	}
	defer closer.Close()
	return m, append([]byte(nil), v...), nil
}

// Delete removes ref. Missing blobs return ErrNotFound.
func (s *Store) Delete(ref string) error {
	m, err := s.Stat(ref)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	_ = batch.Delete([]byte(metaPrefix+m.ID), nil)
	_ = batch.Delete([]byte(dataPrefix+m.ID), nil)
	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		logger.Error("blob_delete_failed", "id", m.ID, "error", err)
		return err
	}
	metrics.BlobBytes.WithLabelValues("delete").Add(float64(m.Size))
	logger.Info("blob_deleted", "id", m.ID)
	return nil
}

// List returns the metadata of every stored blob.
func (s *Store) List() ([]Meta, error) {
	lower := []byte(metaPrefix)
	upper := []byte(metaPrefix[:len(metaPrefix)-1] + ";")
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []Meta
	for iter.First(); iter.Valid(); iter.Next() {
		var m Meta
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("blob_meta_skipped", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}
