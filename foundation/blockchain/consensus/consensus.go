// Package consensus implements the validation rules for transactions and
// blocks.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/genesis"
	"github.com/marabu/node/foundation/blockchain/signature"
)

// Store represents the lookups validation needs.
type Store interface {
	GetObject(id string) (database.Object, error)
	GetBlockState(blockID string) (database.BlockState, error)
}

// Resolver represents the behavior required to wait for objects that are not
// stored yet. Await returns nil once every id is stored.
type Resolver interface {
	Await(ctx context.Context, ids ...string) error
}

// Engine validates objects against the stored state.
type Engine struct {
	Params   genesis.Params
	Store    Store
	Resolver Resolver
	Now      func() time.Time
}

// MeetsTarget reports whether the block id satisfies the proof of work
// target. Both are 64 character lowercase hex strings so the string order
// is the numeric order.
func MeetsTarget(id string, target string) bool {
	return id < target
}

// =============================================================================

// ValidateTransaction checks an ordinary transaction against the stored
// objects. Every referenced transaction must already be stored.
func (e Engine) ValidateTransaction(tx database.Transaction) error {
	refs := make([][]database.Output, len(tx.Inputs))

	for i, in := range tx.Inputs {
		outputs, err := e.outputsOf(in.Outpoint.TxID)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		refs[i] = outputs
	}

	for i, in := range tx.Inputs {
		if in.Outpoint.Index >= uint64(len(refs[i])) {
			return fmt.Errorf("%w: input %d: index %d out of range for %s", ErrInvalidOutpoint, i, in.Outpoint.Index, in.Outpoint.TxID)
		}
	}

	seen := make(map[database.Outpoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, exists := seen[in.Outpoint]; exists {
			return fmt.Errorf("%w: input %d: outpoint spent twice", ErrInvalidOutpoint, i)
		}
		seen[in.Outpoint] = struct{}{}
	}

	var inSum uint64
	for i, in := range tx.Inputs {
		var ok bool
		if inSum, ok = add(inSum, refs[i][in.Outpoint.Index].Value); !ok {
			return fmt.Errorf("%w: input values overflow", ErrInvalidConservation)
		}
	}

	outSum, ok := sumOutputs(tx.Outputs)
	if !ok {
		return fmt.Errorf("%w: output values overflow", ErrInvalidConservation)
	}

	if inSum < outSum {
		return fmt.Errorf("%w: inputs %d less than outputs %d", ErrInvalidConservation, inSum, outSum)
	}

	payload, err := tx.SigningPayload()
	if err != nil {
		return err
	}

	for i, in := range tx.Inputs {
		pubKey := refs[i][in.Outpoint.Index].PubKey
		if in.Sig == nil || !signature.Verify(pubKey, *in.Sig, payload) {
			return fmt.Errorf("%w: input %d", ErrInvalidSignature, i)
		}
	}

	return nil
}

// Fee returns the surplus of a stored, valid transaction.
func (e Engine) Fee(tx database.Transaction) (uint64, error) {
	var inSum uint64
	for _, in := range tx.Inputs {
		outputs, err := e.outputsOf(in.Outpoint.TxID)
		if err != nil {
			return 0, err
		}
		if in.Outpoint.Index >= uint64(len(outputs)) {
			return 0, ErrInvalidOutpoint
		}
		inSum += outputs[in.Outpoint.Index].Value
	}

	outSum, _ := sumOutputs(tx.Outputs)
	if inSum < outSum {
		return 0, ErrInvalidConservation
	}

	return inSum - outSum, nil
}

// outputsOf returns the outputs of a stored transaction or coinbase.
func (e Engine) outputsOf(txID string) ([]database.Output, error) {
	obj, err := e.Store.GetObject(txID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObject, txID)
		}
		return nil, err
	}

	switch o := obj.(type) {
	case database.Transaction:
		return o.Outputs, nil
	case database.Coinbase:
		return o.Outputs, nil
	}

	return nil, fmt.Errorf("%w: %s is a %s", ErrInvalidOutpoint, txID, obj.Kind())
}

// =============================================================================

func add(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

func sumOutputs(outputs []database.Output) (uint64, bool) {
	var sum uint64
	for _, out := range outputs {
		var ok bool
		if sum, ok = add(sum, out.Value); !ok {
			return 0, false
		}
	}
	return sum, true
}
