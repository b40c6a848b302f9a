// Package mempool maintains the mempool for the blockchain: the valid,
// unconfirmed transactions in arrival order and the UTXO set they leave
// behind when applied on top of the chain tip.
package mempool

import (
	"sync"

	"github.com/marabu/node/foundation/blockchain/database"
)

// Entry is a mempool transaction with its id.
type Entry struct {
	ID     string
	Object database.Object
}

// Mempool represents the set of unconfirmed transactions.
type Mempool struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]struct{}
	unspent map[database.Outpoint]struct{}
}

// New constructs an empty mempool over an empty UTXO set.
func New() *Mempool {
	mp := Mempool{}
	mp.reset(nil)
	return &mp
}

// Reset clears the pool and starts a new snapshot from the UTXO set of the
// chain tip.
func (mp *Mempool) Reset(utxos []database.Outpoint) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.reset(utxos)
}

func (mp *Mempool) reset(utxos []database.Outpoint) {
	mp.entries = nil
	mp.index = make(map[string]struct{})
	mp.unspent = make(map[database.Outpoint]struct{}, len(utxos))
	for _, op := range utxos {
		mp.unspent[op] = struct{}{}
	}
}

// Add applies the transaction to the snapshot. An ordinary transaction is
// admitted only if every input is unspent in the snapshot. A coinbase is
// admitted only if its height is not below the chain length, since a block
// at the current tip height would be too old to include it.
func (mp *Mempool) Add(id string, obj database.Object, chainLength uint64) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.index[id]; exists {
		return false
	}

	switch tx := obj.(type) {
	case database.Transaction:
		for _, in := range tx.Inputs {
			if _, unspent := mp.unspent[in.Outpoint]; !unspent {
				return false
			}
		}
		for _, in := range tx.Inputs {
			delete(mp.unspent, in.Outpoint)
		}
		for i := range tx.Outputs {
			mp.unspent[database.Outpoint{TxID: id, Index: uint64(i)}] = struct{}{}
		}

	case database.Coinbase:
		if tx.Height < chainLength {
			return false
		}

	default:
		return false
	}

	mp.entries = append(mp.entries, Entry{ID: id, Object: obj})
	mp.index[id] = struct{}{}

	return true
}

// Contains reports whether the transaction is in the pool.
func (mp *Mempool) Contains(id string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.index[id]
	return exists
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.entries)
}

// TxIDs returns the ids of the pool in arrival order.
func (mp *Mempool) TxIDs() []string {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	ids := make([]string, len(mp.entries))
	for i, e := range mp.entries {
		ids[i] = e.ID
	}
	return ids
}

// Copy returns the entries of the pool in arrival order.
func (mp *Mempool) Copy() []Entry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return append([]Entry(nil), mp.entries...)
}

// Unspent reports whether the outpoint is unspent in the snapshot.
func (mp *Mempool) Unspent(op database.Outpoint) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.unspent[op]
	return exists
}
