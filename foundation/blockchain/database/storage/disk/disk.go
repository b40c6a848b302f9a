// Package disk implements the database.Storage interface on top of a bbolt
// file, using one bucket per store.
package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marabu/node/foundation/blockchain/database"
	bolt "go.etcd.io/bbolt"
)

// Disk owns the bbolt file shared by every bucket store.
type Disk struct {
	db   *bolt.DB
	once sync.Once
	err  error
}

// Open opens or creates the bbolt file and the named buckets.
func Open(path string, buckets ...string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Disk{db: db}, nil
}

// Close closes the bbolt file. It is safe to call more than once.
func (d *Disk) Close() error {
	d.once.Do(func() {
		d.err = d.db.Close()
	})
	return d.err
}

// Bucket returns a store over the named bucket.
func (d *Disk) Bucket(name string) *Bucket {
	return &Bucket{disk: d, name: []byte(name)}
}

// =============================================================================

// Bucket implements the database.Storage interface over one bbolt bucket.
type Bucket struct {
	disk *Disk
	name []byte
}

// Close closes the underlying file.
func (b *Bucket) Close() error {
	return b.disk.Close()
}

// Exists reports whether the key is stored.
func (b *Bucket) Exists(key string) (bool, error) {
	var exists bool
	err := b.disk.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(b.name).Get([]byte(key)) != nil
		return nil
	})
	return exists, err
}

// Get returns the value stored under key.
func (b *Bucket) Get(key string) ([]byte, error) {
	var value []byte
	err := b.disk.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.name).Get([]byte(key))
		if v == nil {
			return database.ErrNotFound
		}

		// Values are only valid for the life of the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	return value, err
}

// Put stores the value under key.
func (b *Bucket) Put(key string, value []byte) error {
	return b.disk.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Put([]byte(key), value)
	})
}

// Delete removes the key.
func (b *Bucket) Delete(key string) error {
	return b.disk.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.name).Delete([]byte(key))
	})
}
