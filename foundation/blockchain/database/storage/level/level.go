// Package level implements the database.Storage interface on top of a
// LevelDB directory. Stores share the directory and are separated by a key
// prefix.
package level

import (
	"errors"
	"fmt"
	"sync"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/syndtr/goleveldb/leveldb"
)

// Level owns the LevelDB handle shared by every prefixed store.
type Level struct {
	db   *leveldb.DB
	once sync.Once
	err  error
}

// Open opens or creates the LevelDB database at path.
func Open(path string) (*Level, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &Level{db: db}, nil
}

// Close closes the database. It is safe to call more than once.
func (l *Level) Close() error {
	l.once.Do(func() {
		l.err = l.db.Close()
	})
	return l.err
}

// Prefix returns a store whose keys are namespaced by the prefix.
func (l *Level) Prefix(prefix string) *Store {
	return &Store{level: l, prefix: prefix + ":"}
}

// =============================================================================

// Store implements the database.Storage interface over a key prefix.
type Store struct {
	level  *Level
	prefix string
}

func (s *Store) key(k string) []byte {
	return []byte(s.prefix + k)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.level.Close()
}

// Exists reports whether the key is stored.
func (s *Store) Exists(key string) (bool, error) {
	return s.level.db.Has(s.key(key), nil)
}

// Get returns the value stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	v, err := s.level.db.Get(s.key(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, database.ErrNotFound
	}
	return v, err
}

// Put stores the value under key.
func (s *Store) Put(key string, value []byte) error {
	return s.level.db.Put(s.key(key), value, nil)
}

// Delete removes the key.
func (s *Store) Delete(key string) error {
	return s.level.db.Delete(s.key(key), nil)
}
