// Package protocol implements the newline delimited JSON messages nodes
// exchange: parsing raw frames into typed messages and encoding typed
// messages into canonical bytes.
package protocol

import (
	"github.com/marabu/node/foundation/blockchain/database"
)

// Version is the protocol version this node speaks.
const Version = "0.9.0"

// Wire names of the message types.
const (
	TypeHello          = "hello"
	TypeGetPeers       = "getpeers"
	TypePeers          = "peers"
	TypeGetChainTip    = "getchaintip"
	TypeChainTip       = "chaintip"
	TypeGetChainLength = "getchainlength"
	TypeChainLength    = "chainlength"
	TypeGetMempool     = "getmempool"
	TypeMempool        = "mempool"
	TypeGetObject      = "getobject"
	TypeObject         = "object"
	TypeIHaveObject    = "ihaveobject"
	TypeError          = "error"
)

// Message represents any message of the protocol.
type Message interface {
	Type() string
}

// Hello opens every connection.
type Hello struct {
	Version string `json:"version"`
	Agent   string `json:"agent"`
}

// GetPeers asks for the known peer list.
type GetPeers struct{}

// Peers carries a list of host:port addresses.
type Peers struct {
	Peers []string `json:"peers"`
}

// GetChainTip asks for the id of the longest chain tip.
type GetChainTip struct{}

// ChainTip carries the id of the longest chain tip.
type ChainTip struct {
	BlockID string `json:"blockid"`
}

// GetChainLength asks for the length of the longest chain.
type GetChainLength struct{}

// ChainLength carries the length of the longest chain.
type ChainLength struct {
	ChainLength uint64 `json:"chainlength"`
}

// GetMempool asks for the mempool transaction ids.
type GetMempool struct{}

// Mempool carries the mempool transaction ids.
type Mempool struct {
	TxIDs []string `json:"txids"`
}

// GetObject asks for an object by id.
type GetObject struct {
	ObjectID string `json:"objectid"`
}

// IHaveObject announces a newly stored object.
type IHaveObject struct {
	ObjectID string `json:"objectid"`
}

// Object carries a block or transaction.
type Object struct {
	Object database.Object `json:"object"`
}

// Error reports a failure to the remote peer.
type Error struct {
	Name        ErrorName `json:"name"`
	Description string    `json:"description"`
}

// Type implementations of the Message interface.
func (Hello) Type() string          { return TypeHello }
func (GetPeers) Type() string       { return TypeGetPeers }
func (Peers) Type() string          { return TypePeers }
func (GetChainTip) Type() string    { return TypeGetChainTip }
func (ChainTip) Type() string       { return TypeChainTip }
func (GetChainLength) Type() string { return TypeGetChainLength }
func (ChainLength) Type() string    { return TypeChainLength }
func (GetMempool) Type() string     { return TypeGetMempool }
func (Mempool) Type() string        { return TypeMempool }
func (GetObject) Type() string      { return TypeGetObject }
func (IHaveObject) Type() string    { return TypeIHaveObject }
func (Object) Type() string         { return TypeObject }
func (Error) Type() string          { return TypeError }

// =============================================================================

// ErrorName is the wire name of an error.
type ErrorName string

// Set of error names.
const (
	InvalidFormat         ErrorName = "INVALID_FORMAT"
	InvalidHandshake      ErrorName = "INVALID_HANDSHAKE"
	UnknownObject         ErrorName = "UNKNOWN_OBJECT"
	UnfindableObject      ErrorName = "UNFINDABLE_OBJECT"
	InvalidTxOutpoint     ErrorName = "INVALID_TX_OUTPOINT"
	InvalidTxSignature    ErrorName = "INVALID_TX_SIGNATURE"
	InvalidTxConservation ErrorName = "INVALID_TX_CONSERVATION"
	InvalidBlockCoinbase  ErrorName = "INVALID_BLOCK_COINBASE"
	InvalidBlockTimestamp ErrorName = "INVALID_BLOCK_TIMESTAMP"
	InvalidBlockPoW       ErrorName = "INVALID_BLOCK_POW"
	InvalidGenesis        ErrorName = "INVALID_GENESIS"
)

// NewError constructs an error message.
func NewError(name ErrorName, description string) Error {
	return Error{Name: name, Description: description}
}
