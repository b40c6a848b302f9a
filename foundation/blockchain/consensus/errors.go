package consensus

import (
	"errors"

	"github.com/marabu/node/foundation/blockchain/protocol"
)

// Set of consensus failures. Each one maps to a wire error name.
var (
	ErrUnknownObject        = errors.New("unknown object")
	ErrUnfindableObject     = errors.New("unfindable object")
	ErrInvalidOutpoint      = errors.New("invalid outpoint")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidConservation  = errors.New("invalid conservation")
	ErrInvalidBlockCoinbase = errors.New("invalid block coinbase")
	ErrInvalidTimestamp     = errors.New("invalid block timestamp")
	ErrInvalidPoW           = errors.New("invalid proof of work")
	ErrInvalidGenesis       = errors.New("invalid genesis")
)

var names = []struct {
	err  error
	name protocol.ErrorName
}{
	{ErrUnknownObject, protocol.UnknownObject},
	{ErrUnfindableObject, protocol.UnfindableObject},
	{ErrInvalidOutpoint, protocol.InvalidTxOutpoint},
	{ErrInvalidSignature, protocol.InvalidTxSignature},
	{ErrInvalidConservation, protocol.InvalidTxConservation},
	{ErrInvalidBlockCoinbase, protocol.InvalidBlockCoinbase},
	{ErrInvalidTimestamp, protocol.InvalidBlockTimestamp},
	{ErrInvalidPoW, protocol.InvalidBlockPoW},
	{ErrInvalidGenesis, protocol.InvalidGenesis},
}

// ErrorName returns the wire name for a consensus failure. The boolean is
// false when the error is not a consensus failure.
func ErrorName(err error) (protocol.ErrorName, bool) {
	for _, n := range names {
		if errors.Is(err, n.err) {
			return n.name, true
		}
	}
	return "", false
}
