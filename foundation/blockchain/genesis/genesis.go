// Package genesis maintains the parameters of a network: its root block,
// the proof of work target and the block reward.
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/marabu/node/foundation/blockchain/database"
)

// Marabu network values.
const (
	Target      = "00000000abc00000000000000000000000000000000000000000000000000000"
	BlockReward = 50_000_000_000_000
	ID          = "0000000052a0e645eca917ae1c196e0d0a4fb756747f29ef52594d68484bb5e2"
)

// Params represents the consensus parameters of a network.
type Params struct {
	Genesis     database.Block
	Target      string
	BlockReward uint64
}

// GenesisID returns the id of the root block.
func (p Params) GenesisID() string {
	return p.Genesis.ID()
}

// Default returns the parameters of the Marabu network.
func Default() Params {
	miner := "Marabu"
	note := "The New York Times 2022-12-13: Scientists Achieve Nuclear Fusion Breakthrough With Blast of 192 Lasers"

	return Params{
		Genesis: database.Block{
			Type:    database.TypeBlock,
			TxIDs:   []string{},
			Nonce:   "000000000000000000000000000000000000000000000000000000021bea03ed",
			PrevID:  nil,
			Created: 1671062400,
			Target:  Target,
			Miner:   &miner,
			Note:    &note,
		},
		Target:      Target,
		BlockReward: BlockReward,
	}
}

// =============================================================================

// file represents the genesis file.
type file struct {
	Genesis     json.RawMessage `json:"genesis"`
	Target      string          `json:"target"`
	BlockReward uint64          `json:"block_reward"`
}

// Load opens and consumes a genesis file describing a network other than
// the default one.
func Load(path string) (Params, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Params{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()

	var f file
	if err := dec.Decode(&f); err != nil {
		return Params{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	obj, err := database.ParseObject(f.Genesis)
	if err != nil {
		return Params{}, fmt.Errorf("genesis block: %w", err)
	}

	block, ok := obj.(database.Block)
	if !ok || block.PrevID != nil {
		return Params{}, fmt.Errorf("genesis must be a block without a parent")
	}

	if block.Target != f.Target {
		return Params{}, fmt.Errorf("genesis target %s does not match %s", block.Target, f.Target)
	}

	return Params{
		Genesis:     block,
		Target:      f.Target,
		BlockReward: f.BlockReward,
	}, nil
}
