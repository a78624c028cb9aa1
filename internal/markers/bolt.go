package markers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"fwbot-go/internal/fwbot"
)

// BoltDB is a marker file with one bucket per marker kind.
type BoltDB struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the marker file at path.
func OpenBolt(path string) (*BoltDB, error) {
	if path == "" {
		return nil, errors.New("bolt path is required")
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating marker directory: %w", err)
		}
	}

	db, err := bolt.Open(cleaned, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt file: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, kind := range []string{fwbot.MarkerFirmware, fwbot.MarkerKernel} {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating marker buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// Store returns the store for one marker kind.
func (b *BoltDB) Store(kind string) *BoltStore {
	return &BoltStore{db: b.db, bucket: []byte(kind)}
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

// BoltStore is one bucket of a BoltDB.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

func (s *BoltStore) Get(ctx context.Context, model string) (string, error) {
	var version string
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s missing", s.bucket)
		}
		version = string(b.Get([]byte(model)))
		return nil
	})
	return version, err
}

func (s *BoltStore) Set(ctx context.Context, model, version string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s missing", s.bucket)
		}
		return b.Put([]byte(model), []byte(version))
	})
}

func (s *BoltStore) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("bucket %s missing", s.bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var (
	_ fwbot.MarkerStore  = (*BoltStore)(nil)
	_ fwbot.MarkerLister = (*BoltStore)(nil)
)
