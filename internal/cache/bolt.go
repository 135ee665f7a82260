package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltResponsesBucket = "responses"

// BoltStore persists cached responses in a BoltDB file so immutable
// payloads (diffs, historical stats) survive process restarts.
//
// Each value is stored as an 8-byte big-endian expiry in unix
// nanoseconds (0 = never) followed by the payload.
type BoltStore struct {
	db   *bolt.DB
	once sync.Once
	now  func() time.Time
}

// NewBoltStore opens (or creates) a BoltDB cache at the provided path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt cache path is required")
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(cleaned, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltResponsesBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		result  []byte
		expired bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket([]byte(boltResponsesBucket))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if len(raw) < 8 {
			return nil
		}
		if s.expired(raw) {
			expired = true
			return nil
		}
		result = append([]byte{}, raw[8:]...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if expired {
		_ = s.evict(ctx, key)
		return nil, false, nil
	}
	return result, result != nil, nil
}

func (s *BoltStore) expired(raw []byte) bool {
	exp := int64(binary.BigEndian.Uint64(raw[:8]))
	return exp != 0 && s.now().UnixNano() >= exp
}

// evict deletes key only if it is still expired inside the write
// transaction; a Set since the read keeps its fresh value.
func (s *BoltStore) evict(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket([]byte(boltResponsesBucket))
		if b == nil {
			return nil
		}
		raw := b.Get([]byte(key))
		if len(raw) < 8 || !s.expired(raw) {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = s.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(exp))
	copy(buf[8:], value)

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := tx.CreateBucketIfNotExists([]byte(boltResponsesBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), buf)
	})
}

func (s *BoltStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket([]byte(boltResponsesBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := tx.DeleteBucket([]byte(boltResponsesBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(boltResponsesBucket))
		return err
	})
}

// Close shuts down the Bolt DB.
func (s *BoltStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
