package engine

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/aether-kv/kvs/internal/kvserr"
	bolt "go.etcd.io/bbolt"
)

const boltFileName = "tree.db"

var boltBucket = []byte("kv")

// BoltStore adapts go.etcd.io/bbolt, an embedded tree-backed store, to
// the Engine interface: Set stores value bytes directly, Get
// UTF-8-decodes them back, Remove fails with kvserr.ErrKeyNotFound when
// the key is absent, Scan collects every key via a cursor, and
// SaveIndex is a no-op since bbolt persists on every committed
// transaction rather than through a separate snapshot step.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the tree-backed store rooted at dir.
func OpenBolt(dir string) (*BoltStore, error) {
	path := filepath.Join(dir, boltFileName)
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt store %s: %v", kvserr.ErrIo, path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create bolt bucket: %v", kvserr.ErrIo, err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Set(key, value string) error {
	if len(key) > maxKeySize {
		return fmt.Errorf("%w: key is %d bytes", kvserr.ErrInvalidKeySize, len(key))
	}
	if len(value) > maxValueSize {
		return fmt.Errorf("%w: value is %d bytes", kvserr.ErrInvalidValueSize, len(value))
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("%w: bolt set: %v", kvserr.ErrIo, err)
	}
	return nil
}

func (b *BoltStore) Get(key string) (string, bool, error) {
	var value string
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(key))
		if v != nil {
			found = true
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: bolt get: %v", kvserr.ErrIo, err)
	}
	return value, found, nil
}

func (b *BoltStore) Remove(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket.Get([]byte(key)) == nil {
			return kvserr.ErrKeyNotFound
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		if err == kvserr.ErrKeyNotFound {
			return err
		}
		return fmt.Errorf("%w: bolt remove: %v", kvserr.ErrIo, err)
	}
	return nil
}

func (b *BoltStore) Scan() []string {
	var keys []string
	b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys
}

// SaveIndex is a no-op: bbolt commits each transaction to its own
// on-disk B+tree as it happens, so there is no separate snapshot step.
func (b *BoltStore) SaveIndex() error {
	return nil
}

func (b *BoltStore) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("%w: close bolt store: %v", kvserr.ErrIo, err)
	}
	return nil
}
