package state

import (
	"fmt"

	"github.com/marabu/node/foundation/blockchain/database"
)

// updateChain moves the tip to the block if its chain is longer than the
// current one. When the block is not on the current chain the transactions
// of the abandoned branch go back to the mempool with the previous mempool,
// keeping only those that still apply on top of the new tip.
func (s *State) updateChain(blockID string, bs database.BlockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	length := bs.Height + 1
	if length <= s.length {
		return nil
	}

	abandoned, confirmed, err := s.fork(s.tipID, blockID)
	if err != nil {
		return err
	}

	if len(abandoned) > 0 {
		s.evHandler("state: updateChain: reorg: oldTip[%s]: newTip[%s]: abandoned[%d]", s.tipID, blockID, len(abandoned))
	}

	pending := s.mempool.Copy()

	s.tipID = blockID
	s.length = length
	s.mempool.Reset(bs.UTXOs)

	for _, id := range abandoned {
		if _, exists := confirmed[id]; exists {
			continue
		}
		obj, err := s.db.GetObject(id)
		if err != nil {
			continue
		}
		s.mempool.Add(id, obj, s.length)
	}

	for _, e := range pending {
		if _, exists := confirmed[e.ID]; exists {
			continue
		}
		s.mempool.Add(e.ID, e.Object, s.length)
	}

	s.evHandler("state: updateChain: tip[%s]: length[%d]: mempool[%d]", s.tipID, s.length, s.mempool.Count())

	return nil
}

// fork walks back from both tips to their lowest common ancestor. It
// returns the transactions of the old branch in chain order and the set of
// transactions on the new branch.
func (s *State) fork(oldTip string, newTip string) ([]string, map[string]struct{}, error) {
	type cursor struct {
		id     string
		block  database.Block
		height uint64
	}

	load := func(id string) (cursor, error) {
		obj, err := s.db.GetObject(id)
		if err != nil {
			return cursor{}, fmt.Errorf("block %s: %w", id, err)
		}
		b, ok := obj.(database.Block)
		if !ok {
			return cursor{}, fmt.Errorf("object %s is not a block", id)
		}
		bs, err := s.db.GetBlockState(id)
		if err != nil {
			return cursor{}, fmt.Errorf("block state %s: %w", id, err)
		}
		return cursor{id: id, block: b, height: bs.Height}, nil
	}

	parent := func(c cursor) (cursor, error) {
		if c.block.PrevID == nil {
			return cursor{}, fmt.Errorf("block %s has no parent", c.id)
		}
		return load(*c.block.PrevID)
	}

	oldC, err := load(oldTip)
	if err != nil {
		return nil, nil, err
	}
	newC, err := load(newTip)
	if err != nil {
		return nil, nil, err
	}

	var oldBlocks []database.Block
	confirmed := make(map[string]struct{})

	for newC.height > oldC.height {
		for _, id := range newC.block.TxIDs {
			confirmed[id] = struct{}{}
		}
		if newC, err = parent(newC); err != nil {
			return nil, nil, err
		}
	}

	for oldC.height > newC.height {
		oldBlocks = append(oldBlocks, oldC.block)
		if oldC, err = parent(oldC); err != nil {
			return nil, nil, err
		}
	}

	for oldC.id != newC.id {
		for _, id := range newC.block.TxIDs {
			confirmed[id] = struct{}{}
		}
		oldBlocks = append(oldBlocks, oldC.block)

		if newC, err = parent(newC); err != nil {
			return nil, nil, err
		}
		if oldC, err = parent(oldC); err != nil {
			return nil, nil, err
		}
	}

	var abandoned []string
	for i := len(oldBlocks) - 1; i >= 0; i-- {
		abandoned = append(abandoned, oldBlocks[i].TxIDs...)
	}

	return abandoned, confirmed, nil
}
