package consensus

import (
	"context"
	"errors"
	"fmt"

	"github.com/marabu/node/foundation/blockchain/database"
)

// ValidateBlock checks the block and returns the UTXO record it produces.
// Missing parents and transactions are awaited through the resolver, so the
// call blocks until they arrive, the retry budget runs out, or ctx ends.
func (e Engine) ValidateBlock(ctx context.Context, b database.Block) (database.BlockState, error) {
	id := b.ID()

	if !MeetsTarget(id, b.Target) {
		return database.BlockState{}, fmt.Errorf("%w: %s is not below %s", ErrInvalidPoW, id, b.Target)
	}

	if b.PrevID == nil {
		if id != e.Params.GenesisID() {
			return database.BlockState{}, fmt.Errorf("%w: %s has no parent", ErrInvalidGenesis, id)
		}
		return database.BlockState{Height: 0, UTXOs: []database.Outpoint{}}, nil
	}

	if b.Created > e.Now().Unix() {
		return database.BlockState{}, fmt.Errorf("%w: created %d is in the future", ErrInvalidTimestamp, b.Created)
	}

	parent, parentState, err := e.parent(ctx, *b.PrevID)
	if err != nil {
		return database.BlockState{}, err
	}

	if b.Created <= parent.Created {
		return database.BlockState{}, fmt.Errorf("%w: created %d is not after parent %d", ErrInvalidTimestamp, b.Created, parent.Created)
	}

	if err := e.await(ctx, b.TxIDs...); err != nil {
		return database.BlockState{}, err
	}

	txs := make([]database.Object, len(b.TxIDs))
	for i, txID := range b.TxIDs {
		obj, err := e.Store.GetObject(txID)
		if err != nil {
			return database.BlockState{}, fmt.Errorf("loading %s: %w", txID, err)
		}
		if obj.Kind() == database.KindBlock {
			return database.BlockState{}, fmt.Errorf("%w: txid %s is a block", ErrUnfindableObject, txID)
		}
		txs[i] = obj
	}

	height := parentState.Height + 1

	coinbase, err := checkCoinbase(txs, height)
	if err != nil {
		return database.BlockState{}, err
	}

	var fees uint64
	for i, obj := range txs {
		tx, ok := obj.(database.Transaction)
		if !ok {
			continue
		}

		for _, in := range tx.Inputs {
			if coinbase != nil && in.Outpoint.TxID == b.TxIDs[0] {
				return database.BlockState{}, fmt.Errorf("%w: transaction %d spends the coinbase of its own block", ErrInvalidOutpoint, i)
			}
		}

		fee, err := e.Fee(tx)
		if err != nil {
			return database.BlockState{}, fmt.Errorf("fee of %s: %w", b.TxIDs[i], err)
		}

		if fees, ok = add(fees, fee); !ok {
			return database.BlockState{}, fmt.Errorf("%w: fees overflow", ErrInvalidBlockCoinbase)
		}
	}

	if coinbase != nil {
		limit, ok := add(e.Params.BlockReward, fees)
		if !ok {
			limit = ^uint64(0)
		}
		if value := coinbase.Outputs[0].Value; value > limit {
			return database.BlockState{}, fmt.Errorf("%w: coinbase value %d exceeds reward plus fees %d", ErrInvalidBlockCoinbase, value, limit)
		}
	}

	utxos, err := Apply(parentState.UTXOs, b.TxIDs, txs)
	if err != nil {
		return database.BlockState{}, err
	}

	return database.BlockState{Height: height, UTXOs: utxos}, nil
}

// parent waits for the parent block and returns it with its UTXO record.
func (e Engine) parent(ctx context.Context, prevID string) (database.Block, database.BlockState, error) {
	if err := e.await(ctx, prevID); err != nil {
		return database.Block{}, database.BlockState{}, err
	}

	obj, err := e.Store.GetObject(prevID)
	if err != nil {
		return database.Block{}, database.BlockState{}, fmt.Errorf("loading parent %s: %w", prevID, err)
	}

	parent, ok := obj.(database.Block)
	if !ok {
		return database.Block{}, database.BlockState{}, fmt.Errorf("%w: parent %s is a %s", ErrUnfindableObject, prevID, obj.Kind())
	}

	state, err := e.Store.GetBlockState(prevID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Block{}, database.BlockState{}, fmt.Errorf("%w: parent %s has no state", ErrUnfindableObject, prevID)
		}
		return database.Block{}, database.BlockState{}, err
	}

	return parent, state, nil
}

// await resolves the ids. Cancellation is returned as is so callers can tell
// a closed connection from an unfindable object.
func (e Engine) await(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := e.Resolver.Await(ctx, ids...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s", ErrUnfindableObject, err)
	}

	return nil
}

// checkCoinbase allows at most one coinbase, only as the first transaction,
// and only with the height of the block.
func checkCoinbase(txs []database.Object, height uint64) (*database.Coinbase, error) {
	var coinbase *database.Coinbase

	for i, obj := range txs {
		cb, ok := obj.(database.Coinbase)
		if !ok {
			continue
		}

		if i != 0 {
			return nil, fmt.Errorf("%w: coinbase at position %d", ErrInvalidBlockCoinbase, i)
		}

		if cb.Height != height {
			return nil, fmt.Errorf("%w: coinbase height %d, block height %d", ErrInvalidBlockCoinbase, cb.Height, height)
		}

		coinbase = &cb
	}

	return coinbase, nil
}

// =============================================================================

// Apply replays the transactions over a UTXO set and returns the new set.
// Order is kept: spent entries are removed in place and new outputs are
// appended.
func Apply(base []database.Outpoint, txIDs []string, txs []database.Object) ([]database.Outpoint, error) {
	set := newUTXOSet(base)

	for i, obj := range txs {
		switch tx := obj.(type) {
		case database.Coinbase:
			set.add(database.Outpoint{TxID: txIDs[i], Index: 0})

		case database.Transaction:
			for j, in := range tx.Inputs {
				if !set.spend(in.Outpoint) {
					return nil, fmt.Errorf("%w: transaction %s input %d spends %s:%d which is not unspent", ErrInvalidOutpoint, txIDs[i], j, in.Outpoint.TxID, in.Outpoint.Index)
				}
			}
			for j := range tx.Outputs {
				set.add(database.Outpoint{TxID: txIDs[i], Index: uint64(j)})
			}
		}
	}

	return set.list(), nil
}

type utxoSet struct {
	order   []database.Outpoint
	unspent map[database.Outpoint]bool
}

func newUTXOSet(base []database.Outpoint) *utxoSet {
	s := utxoSet{
		order:   make([]database.Outpoint, 0, len(base)),
		unspent: make(map[database.Outpoint]bool, len(base)),
	}
	for _, op := range base {
		s.add(op)
	}
	return &s
}

func (s *utxoSet) add(op database.Outpoint) {
	if s.unspent[op] {
		return
	}
	if _, seen := s.unspent[op]; !seen {
		s.order = append(s.order, op)
	}
	s.unspent[op] = true
}

func (s *utxoSet) spend(op database.Outpoint) bool {
	if !s.unspent[op] {
		return false
	}
	s.unspent[op] = false
	return true
}

func (s *utxoSet) list() []database.Outpoint {
	out := make([]database.Outpoint, 0, len(s.order))
	for _, op := range s.order {
		if s.unspent[op] {
			out = append(out, op)
		}
	}
	return out
}
