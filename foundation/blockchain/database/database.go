// Package database handles all the lower level support for maintaining the
// content addressed object store and the per block UTXO records.
package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/marabu/node/foundation/blockchain/canonical"
)

// ErrNotFound is returned by a Storage when a key does not exist.
var ErrNotFound = errors.New("not found")

// Storage interface represents the behavior required to be implemented by any
// package providing key/value persistence for the database.
type Storage interface {
	Exists(key string) (bool, error)
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// =============================================================================

// Database manages the objects and UTXO records of the node. The genesis
// block is always present.
type Database struct {
	mu        sync.Mutex
	genesisID string
	objects   Storage
	utxos     Storage
}

// New constructs a database over the two stores and makes sure the genesis
// block and its empty UTXO record exist.
func New(objects Storage, utxos Storage, genesis Block) (*Database, error) {
	db := Database{
		genesisID: genesis.ID(),
		objects:   objects,
		utxos:     utxos,
	}

	if _, err := db.PutObject(genesis); err != nil {
		return nil, fmt.Errorf("storing genesis: %w", err)
	}

	exists, err := utxos.Exists(db.genesisID)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := db.PutBlockState(db.genesisID, BlockState{Height: 0, UTXOs: []Outpoint{}}); err != nil {
			return nil, fmt.Errorf("storing genesis state: %w", err)
		}
	}

	return &db, nil
}

// Close closes both stores.
func (db *Database) Close() error {
	errObj := db.objects.Close()
	errUTXO := db.utxos.Close()
	return errors.Join(errObj, errUTXO)
}

// GenesisID returns the id of the root block.
func (db *Database) GenesisID() string {
	return db.genesisID
}

// HasObject reports whether the object is stored.
func (db *Database) HasObject(id string) (bool, error) {
	return db.objects.Exists(id)
}

// GetObject retrieves a stored object.
func (db *Database) GetObject(id string) (Object, error) {
	data, err := db.objects.Get(id)
	if err != nil {
		return nil, err
	}

	return ParseObject(data)
}

// GetRaw retrieves the canonical bytes of a stored object.
func (db *Database) GetRaw(id string) ([]byte, error) {
	return db.objects.Get(id)
}

// PutObject stores the object under its id. Storing a known id is a no-op
// and reports created as false.
func (db *Database) PutObject(obj Object) (created bool, err error) {
	data, err := Encode(obj)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", obj.Kind(), err)
	}

	id := canonical.HashBytes(data)

	db.mu.Lock()
	defer db.mu.Unlock()

	exists, err := db.objects.Exists(id)
	if err != nil {
		return false, err
	}

	if exists {
		return false, nil
	}

	if err := db.objects.Put(id, data); err != nil {
		return false, err
	}

	return true, nil
}

// GetBlockState retrieves the UTXO record of a validated block.
func (db *Database) GetBlockState(blockID string) (BlockState, error) {
	data, err := db.utxos.Get(blockID)
	if err != nil {
		return BlockState{}, err
	}

	var bs BlockState
	if err := json.Unmarshal(data, &bs); err != nil {
		return BlockState{}, fmt.Errorf("decoding state %s: %w", blockID, err)
	}

	return bs, nil
}

// PutBlockState writes the UTXO record of a validated block.
func (db *Database) PutBlockState(blockID string, bs BlockState) error {
	if bs.UTXOs == nil {
		bs.UTXOs = []Outpoint{}
	}

	data, err := json.Marshal(bs)
	if err != nil {
		return err
	}

	return db.utxos.Put(blockID, data)
}

// HasBlockState reports whether the block has been fully validated.
func (db *Database) HasBlockState(blockID string) (bool, error) {
	return db.utxos.Exists(blockID)
}
