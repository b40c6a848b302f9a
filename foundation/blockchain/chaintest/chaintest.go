// Package chaintest contains supporting code for running tests against a
// small test network with an easy proof of work target.
package chaintest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sync"
	"testing"

	"github.com/marabu/node/foundation/blockchain/consensus"
	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/database/storage/memory"
	"github.com/marabu/node/foundation/blockchain/genesis"
	"github.com/marabu/node/foundation/blockchain/signature"
)

// Target is met by about one nonce in sixteen.
const Target = "0fff000000000000000000000000000000000000000000000000000000000000"

// Reward is the block reward of the test network.
const Reward = 50

// GenesisCreated is the timestamp of the test genesis block.
const GenesisCreated = 1600000000

var (
	paramsOnce sync.Once
	params     genesis.Params
)

// Params returns the parameters of the test network.
func Params() genesis.Params {
	paramsOnce.Do(func() {
		note := "test network"
		params = genesis.Params{
			Genesis: Mine(database.Block{
				Type:    database.TypeBlock,
				TxIDs:   []string{},
				Created: GenesisCreated,
				Target:  Target,
				Note:    &note,
			}),
			Target:      Target,
			BlockReward: Reward,
		}
	})

	return params
}

// Mine searches for a nonce that satisfies the block target.
func Mine(b database.Block) database.Block {
	for n := uint64(0); ; n++ {
		b.Nonce = fmt.Sprintf("%064x", n)
		if consensus.MeetsTarget(b.ID(), b.Target) {
			return b
		}
	}
}

// MineInvalid searches for a nonce that does not satisfy the block target.
func MineInvalid(b database.Block) database.Block {
	for n := uint64(0); ; n++ {
		b.Nonce = fmt.Sprintf("%064x", n)
		if !consensus.MeetsTarget(b.ID(), b.Target) {
			return b
		}
	}
}

// Block mines a child of the parent with the transactions.
func Block(parent database.Block, txIDs ...string) database.Block {
	prevID := parent.ID()
	if txIDs == nil {
		txIDs = []string{}
	}

	return Mine(database.Block{
		Type:    database.TypeBlock,
		TxIDs:   txIDs,
		PrevID:  &prevID,
		Created: parent.Created + 10,
		Target:  parent.Target,
	})
}

// NewDatabase constructs an in memory database for the test network.
func NewDatabase(t *testing.T) *database.Database {
	db, err := database.New(memory.New(), memory.New(), Params().Genesis)
	if err != nil {
		t.Fatalf("Should be able to construct the database: %s", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// Key returns a deterministic private key for the name.
func Key(name string) ed25519.PrivateKey {
	seed := sha256.Sum256([]byte(name))
	return ed25519.NewKeyFromSeed(seed[:])
}

// PubKey returns the hex public key for the name.
func PubKey(name string) string {
	return signature.PublicKeyHex(Key(name))
}

// Coinbase constructs a coinbase paying the named key.
func Coinbase(height uint64, name string, value uint64) database.Coinbase {
	return database.Coinbase{
		Type:    database.TypeTransaction,
		Height:  height,
		Outputs: []database.Output{{PubKey: PubKey(name), Value: value}},
	}
}

// Spend describes an input and the key that owns it.
type Spend struct {
	Outpoint database.Outpoint
	Owner    string
}

// Transaction constructs a transaction with every input signed by its owner.
func Transaction(spends []Spend, outputs ...database.Output) database.Transaction {
	tx := database.Transaction{
		Type:    database.TypeTransaction,
		Inputs:  make([]database.Input, len(spends)),
		Outputs: append([]database.Output{}, outputs...),
	}

	for i, s := range spends {
		tx.Inputs[i] = database.Input{Outpoint: s.Outpoint}
	}

	payload, err := tx.SigningPayload()
	if err != nil {
		panic(err)
	}

	for i, s := range spends {
		sig := signature.Sign(Key(s.Owner), payload)
		tx.Inputs[i].Sig = &sig
	}

	return tx
}

// Output constructs an output paying the named key.
func Output(name string, value uint64) database.Output {
	return database.Output{PubKey: PubKey(name), Value: value}
}
