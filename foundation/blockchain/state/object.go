package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/protocol"
)

// ProcessObject validates an object received from a connection and, if it
// passes, stores it, announces it to the other connections and applies it to
// the mempool or the chain. Objects already stored or already being
// validated are not processed again and report created as false.
func (s *State) ProcessObject(ctx context.Context, from Conn, obj database.Object) (bool, error) {
	id := obj.ID()

	stored, err := s.db.HasObject(id)
	if err != nil {
		return false, err
	}
	if stored {
		if obj.Kind() == database.KindBlock {
			s.considerTip(id)
		}
		return false, nil
	}

	switch o := obj.(type) {
	case database.Transaction:
		if err := s.engine.ValidateTransaction(o); err != nil {
			s.resolver.Fail(id, err)
			return false, err
		}
		return s.accept(from, o, nil)

	case database.Coinbase:
		return s.accept(from, o, nil)

	case database.Block:
		if !s.beginFlight(id) {
			return false, nil
		}
		defer s.endFlight(id)

		s.evHandler("state: ProcessObject: validate block[%s]", id)

		bs, err := s.engine.ValidateBlock(ctx, o)
		if err != nil {
			if ctx.Err() == nil {
				s.resolver.Fail(id, err)
			}
			return false, err
		}

		// The block state goes first so a stored block always has one.
		if err := s.db.PutBlockState(id, bs); err != nil {
			return false, err
		}
		return s.accept(from, o, &bs)
	}

	return false, fmt.Errorf("unsupported object kind %s", obj.Kind())
}

// accept stores a validated object and applies it.
func (s *State) accept(from Conn, obj database.Object, bs *database.BlockState) (bool, error) {
	id := obj.ID()

	created, err := s.db.PutObject(obj)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	s.evHandler("state: ProcessObject: stored %s[%s]", obj.Kind(), id)

	s.resolver.Notify(id)

	if bs == nil {
		s.mu.Lock()
		if s.mempool.Add(id, obj, s.length) {
			s.evHandler("state: ProcessObject: mempool add[%s]", id)
		}
		s.mu.Unlock()
	}

	s.Broadcast(from, protocol.IHaveObject{ObjectID: id})

	if b, ok := obj.(database.Block); ok {
		s.blockEvent(id, b, *bs)
		if err := s.updateChain(id, *bs); err != nil {
			s.evHandler("state: ProcessObject: WARNING: update chain: %s", err)
		}
	}

	return true, nil
}

// ChainTipAnnounced handles a tip announced by a peer. A stored block is
// considered as the new tip. It reports whether the block is stored.
func (s *State) ChainTipAnnounced(blockID string) (bool, error) {
	stored, err := s.db.HasObject(blockID)
	if err != nil || !stored {
		return false, err
	}

	s.considerTip(blockID)
	return true, nil
}

// Missing returns the ids of the list that are not stored.
func (s *State) Missing(ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		stored, err := s.db.HasObject(id)
		if err != nil {
			return nil, err
		}
		if !stored {
			missing = append(missing, id)
		}
	}

	return missing, nil
}

// considerTip applies an already stored block to the chain. This covers a
// restarted node learning its old tip again.
func (s *State) considerTip(blockID string) {
	bs, err := s.db.GetBlockState(blockID)
	if err != nil {
		return
	}

	if err := s.updateChain(blockID, bs); err != nil {
		s.evHandler("state: considerTip: WARNING: %s", err)
	}
}

// blockEvent provides a specific event about a new block for application
// specific support.
func (s *State) blockEvent(id string, b database.Block, bs database.BlockState) {
	blockJSON, err := json.Marshal(b)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"id":%q,"height":%d,"block":%s}`, id, bs.Height, string(blockJSON))
}
