package database

import (
	"fmt"

	"github.com/marabu/node/foundation/blockchain/canonical"
)

// Wire values of the object type discriminator.
const (
	TypeBlock       = "block"
	TypeTransaction = "transaction"
)

// Kind identifies which variant of object a value holds.
type Kind int

// Set of object kinds.
const (
	KindBlock Kind = iota + 1
	KindTransaction
	KindCoinbase
)

// String implements the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindTransaction:
		return "transaction"
	case KindCoinbase:
		return "coinbase"
	}
	return "unknown"
}

// Object represents any value that can be stored and gossiped. The set of
// implementations is closed to this package.
type Object interface {
	ID() string
	Kind() Kind
	object()
}

// =============================================================================

// Block represents a block in the chain. Optional fields are pointers so an
// absent value and an empty value hash differently.
type Block struct {
	Type       string    `json:"type" validate:"eq=block"`
	TxIDs      []string  `json:"txids" validate:"dive,len=64,hexlower"`
	Nonce      string    `json:"nonce" validate:"len=64,hexlower"`
	PrevID     *string   `json:"previd" validate:"omitnil,len=64,hexlower"`
	Created    int64     `json:"created"`
	Target     string    `json:"T" validate:"len=64,hexlower"`
	Miner      *string   `json:"miner,omitempty" validate:"omitnil,max=128"`
	Note       *string   `json:"note,omitempty" validate:"omitnil,max=128"`
	StudentIDs *[]string `json:"studentids,omitempty" validate:"omitnil,max=10,dive,max=128"`
}

// ID returns the content hash of the block.
func (b Block) ID() string {
	return hashOf(b)
}

// Kind implements the Object interface.
func (Block) Kind() Kind { return KindBlock }

func (Block) object() {}

// =============================================================================

// Outpoint references a specific output of a prior transaction.
type Outpoint struct {
	TxID  string `json:"txid" validate:"len=64,hexlower"`
	Index uint64 `json:"index"`
}

// Input spends an outpoint. Sig is only nil while computing the signing
// payload.
type Input struct {
	Outpoint Outpoint `json:"outpoint"`
	Sig      *string  `json:"sig" validate:"required,len=128,hexlower"`
}

// Output assigns value to a public key.
type Output struct {
	PubKey string `json:"pubkey" validate:"len=64,hexlower"`
	Value  uint64 `json:"value"`
}

// Transaction moves value from stored outputs to new outputs.
type Transaction struct {
	Type    string   `json:"type" validate:"eq=transaction"`
	Inputs  []Input  `json:"inputs" validate:"dive"`
	Outputs []Output `json:"outputs" validate:"dive"`
}

// ID returns the content hash of the transaction.
func (tx Transaction) ID() string {
	return hashOf(tx)
}

// Kind implements the Object interface.
func (Transaction) Kind() Kind { return KindTransaction }

func (Transaction) object() {}

// SigningPayload returns the canonical bytes every input signs: the
// transaction with all signatures set to null.
func (tx Transaction) SigningPayload() ([]byte, error) {
	unsigned := Transaction{
		Type:    tx.Type,
		Inputs:  make([]Input, len(tx.Inputs)),
		Outputs: tx.Outputs,
	}

	for i, in := range tx.Inputs {
		unsigned.Inputs[i] = Input{Outpoint: in.Outpoint}
	}

	return canonical.Encode(unsigned)
}

// =============================================================================

// Coinbase mints the block reward plus fees into a single output.
type Coinbase struct {
	Type    string   `json:"type" validate:"eq=transaction"`
	Height  uint64   `json:"height"`
	Outputs []Output `json:"outputs" validate:"len=1,dive"`
}

// ID returns the content hash of the coinbase.
func (cb Coinbase) ID() string {
	return hashOf(cb)
}

// Kind implements the Object interface.
func (Coinbase) Kind() Kind { return KindCoinbase }

func (Coinbase) object() {}

// =============================================================================

// BlockState is the UTXO record kept for every valid block.
type BlockState struct {
	Height uint64     `json:"height"`
	UTXOs  []Outpoint `json:"utxos"`
}

// Contains reports whether the outpoint is unspent in this state.
func (bs BlockState) Contains(op Outpoint) bool {
	for _, u := range bs.UTXOs {
		if u == op {
			return true
		}
	}
	return false
}

// =============================================================================

// Encode returns the canonical wire form of the object.
func Encode(obj Object) ([]byte, error) {
	return canonical.Encode(obj)
}

// hashOf panics if the value cannot be canonicalized. Object fields are
// strings, integers and slices of them, which always encode.
func hashOf(v any) string {
	h, err := canonical.Hash(v)
	if err != nil {
		panic(fmt.Sprintf("database: hash %T: %s", v, err))
	}
	return h
}
