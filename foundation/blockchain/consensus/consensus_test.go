package consensus_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/marabu/node/foundation/blockchain/chaintest"
	"github.com/marabu/node/foundation/blockchain/consensus"
	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/protocol"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// storeResolver resolves ids that are already stored and fails the rest.
type storeResolver struct {
	db *database.Database
}

func (r storeResolver) Await(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		exists, err := r.db.HasObject(id)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("missing %s", id)
		}
	}
	return nil
}

func newEngine(t *testing.T) (consensus.Engine, *database.Database) {
	db := chaintest.NewDatabase(t)

	e := consensus.Engine{
		Params:   chaintest.Params(),
		Store:    db,
		Resolver: storeResolver{db: db},
		Now:      func() time.Time { return time.Unix(chaintest.GenesisCreated+100000, 0) },
	}

	return e, db
}

func put(t *testing.T, db *database.Database, objs ...database.Object) {
	for _, obj := range objs {
		if _, err := db.PutObject(obj); err != nil {
			t.Fatalf("Should be able to store %s: %s", obj.ID(), err)
		}
	}
}

// accept validates the block and stores it with its state.
func accept(t *testing.T, e consensus.Engine, db *database.Database, b database.Block) database.BlockState {
	bs, err := e.ValidateBlock(context.Background(), b)
	if err != nil {
		t.Fatalf("Should be able to validate block %s: %s", b.ID(), err)
	}

	if err := db.PutBlockState(b.ID(), bs); err != nil {
		t.Fatalf("Should be able to store the state: %s", err)
	}
	put(t, db, b)

	return bs
}

// =============================================================================

func Test_ValidateTransaction(t *testing.T) {
	e, db := newEngine(t)

	cb := chaintest.Coinbase(1, "alice", 50)
	put(t, db, cb)

	own := database.Outpoint{TxID: cb.ID(), Index: 0}

	type table struct {
		name string
		tx   database.Transaction
		err  error
	}

	tt := []table{
		{
			name: "valid",
			tx:   chaintest.Transaction([]chaintest.Spend{{Outpoint: own, Owner: "alice"}}, chaintest.Output("bob", 40)),
		},
		{
			name: "unknown",
			tx:   chaintest.Transaction([]chaintest.Spend{{Outpoint: database.Outpoint{TxID: strings.Repeat("1", 64)}, Owner: "alice"}}, chaintest.Output("bob", 1)),
			err:  consensus.ErrUnknownObject,
		},
		{
			name: "index",
			tx:   chaintest.Transaction([]chaintest.Spend{{Outpoint: database.Outpoint{TxID: cb.ID(), Index: 1}, Owner: "alice"}}, chaintest.Output("bob", 1)),
			err:  consensus.ErrInvalidOutpoint,
		},
		{
			name: "duplicate",
			tx:   chaintest.Transaction([]chaintest.Spend{{Outpoint: own, Owner: "alice"}, {Outpoint: own, Owner: "alice"}}, chaintest.Output("bob", 1)),
			err:  consensus.ErrInvalidOutpoint,
		},
		{
			name: "conservation-before-signature",
			tx:   chaintest.Transaction([]chaintest.Spend{{Outpoint: own, Owner: "mallory"}}, chaintest.Output("bob", 60)),
			err:  consensus.ErrInvalidConservation,
		},
		{
			name: "signature",
			tx:   chaintest.Transaction([]chaintest.Spend{{Outpoint: own, Owner: "mallory"}}, chaintest.Output("bob", 40)),
			err:  consensus.ErrInvalidSignature,
		},
	}

	t.Log("Given the need to validate transactions.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s transaction.", testID, tst.name)
				{
					err := e.ValidateTransaction(tst.tx)

					if tst.err == nil {
						if err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould accept the transaction: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould accept the transaction.", success, testID)
						return
					}

					if !errors.Is(err, tst.err) {
						t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
						t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.err)
						t.Fatalf("\t%s\tTest %d:\tShould reject with the right error.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject with the right error.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_ValidateBlock(t *testing.T) {
	params := chaintest.Params()
	gen := params.Genesis

	t.Log("Given the need to validate blocks.")
	{
		t.Logf("\tTest 0:\tWhen handling the genesis rules.")
		{
			e, _ := newEngine(t)

			if _, err := e.ValidateBlock(context.Background(), gen); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the genesis block: %v", failed, err)
			}

			other := gen
			other.Created++
			other = chaintest.Mine(other)

			if _, err := e.ValidateBlock(context.Background(), other); !errors.Is(err, consensus.ErrInvalidGenesis) {
				t.Fatalf("\t%s\tTest 0:\tShould reject another block without a parent: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould only accept the genesis id without a parent.", success)
		}

		t.Logf("\tTest 1:\tWhen handling proof of work.")
		{
			e, _ := newEngine(t)

			b := chaintest.MineInvalid(chaintest.Block(gen))
			if _, err := e.ValidateBlock(context.Background(), b); !errors.Is(err, consensus.ErrInvalidPoW) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a hash above the target: %v", failed, err)
			}

			if consensus.MeetsTarget(params.Target, params.Target) {
				t.Fatalf("\t%s\tTest 1:\tShould reject a hash equal to the target.", failed)
			}

			if !consensus.MeetsTarget(strings.Repeat("0", 64), params.Target) {
				t.Fatalf("\t%s\tTest 1:\tShould accept a hash below the target.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould require the hash to be strictly below the target.", success)
		}

		t.Logf("\tTest 2:\tWhen handling timestamps.")
		{
			e, _ := newEngine(t)

			b := chaintest.Block(gen)
			b.Created = gen.Created
			b = chaintest.Mine(b)
			if _, err := e.ValidateBlock(context.Background(), b); !errors.Is(err, consensus.ErrInvalidTimestamp) {
				t.Fatalf("\t%s\tTest 2:\tShould reject a block not after its parent: %v", failed, err)
			}

			b.Created = e.Now().Unix() + 1
			b = chaintest.Mine(b)
			if _, err := e.ValidateBlock(context.Background(), b); !errors.Is(err, consensus.ErrInvalidTimestamp) {
				t.Fatalf("\t%s\tTest 2:\tShould reject a block from the future: %v", failed, err)
			}

			prevID := strings.Repeat("1", 64)
			b.PrevID = &prevID
			b = chaintest.Mine(b)
			if _, err := e.ValidateBlock(context.Background(), b); !errors.Is(err, consensus.ErrInvalidTimestamp) {
				t.Fatalf("\t%s\tTest 2:\tShould check the future before the parent: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject bad timestamps.", success)
		}

		t.Logf("\tTest 3:\tWhen the parent is missing.")
		{
			e, _ := newEngine(t)

			b := chaintest.Block(gen)
			prevID := strings.Repeat("1", 64)
			b.PrevID = &prevID
			b = chaintest.Mine(b)

			_, err := e.ValidateBlock(context.Background(), b)
			if !errors.Is(err, consensus.ErrUnfindableObject) {
				t.Fatalf("\t%s\tTest 3:\tShould report the parent as unfindable: %v", failed, err)
			}

			if name, _ := consensus.ErrorName(err); name != protocol.UnfindableObject {
				t.Fatalf("\t%s\tTest 3:\tShould map to the wire name: %s", failed, name)
			}
			t.Logf("\t%s\tTest 3:\tShould report the parent as unfindable.", success)
		}

		t.Logf("\tTest 4:\tWhen the block carries a coinbase.")
		{
			e, db := newEngine(t)

			cb := chaintest.Coinbase(1, "alice", chaintest.Reward)
			put(t, db, cb)

			b1 := chaintest.Block(gen, cb.ID())
			bs := accept(t, e, db, b1)

			if bs.Height != 1 || len(bs.UTXOs) != 1 || bs.UTXOs[0] != (database.Outpoint{TxID: cb.ID(), Index: 0}) {
				t.Fatalf("\t%s\tTest 4:\tShould hold exactly the coinbase output: %+v", failed, bs)
			}
			t.Logf("\t%s\tTest 4:\tShould hold exactly the coinbase output.", success)

			wrong := chaintest.Coinbase(2, "alice", chaintest.Reward)
			put(t, db, wrong)
			if _, err := e.ValidateBlock(context.Background(), chaintest.Block(gen, wrong.ID())); !errors.Is(err, consensus.ErrInvalidBlockCoinbase) {
				t.Fatalf("\t%s\tTest 4:\tShould reject a coinbase with the wrong height: %v", failed, err)
			}

			greedy := chaintest.Coinbase(1, "bob", chaintest.Reward+1)
			put(t, db, greedy)
			if _, err := e.ValidateBlock(context.Background(), chaintest.Block(gen, greedy.ID())); !errors.Is(err, consensus.ErrInvalidBlockCoinbase) {
				t.Fatalf("\t%s\tTest 4:\tShould reject a coinbase above the reward: %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould reject bad coinbase height and value.", success)

			spend := chaintest.Transaction([]chaintest.Spend{{Outpoint: database.Outpoint{TxID: cb.ID()}, Owner: "alice"}}, chaintest.Output("bob", 40))
			put(t, db, spend)

			cb2 := chaintest.Coinbase(2, "carol", chaintest.Reward+10)
			put(t, db, cb2)

			if _, err := e.ValidateBlock(context.Background(), chaintest.Block(b1, spend.ID(), cb2.ID())); !errors.Is(err, consensus.ErrInvalidBlockCoinbase) {
				t.Fatalf("\t%s\tTest 4:\tShould reject a coinbase that is not first: %v", failed, err)
			}

			if _, err := e.ValidateBlock(context.Background(), chaintest.Block(gen, cb.ID(), spend.ID())); !errors.Is(err, consensus.ErrInvalidOutpoint) {
				t.Fatalf("\t%s\tTest 4:\tShould reject spending the coinbase of the same block: %v", failed, err)
			}

			if _, err := e.ValidateBlock(context.Background(), chaintest.Block(gen, spend.ID())); !errors.Is(err, consensus.ErrInvalidOutpoint) {
				t.Fatalf("\t%s\tTest 4:\tShould reject spending an output not in the parent set: %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould reject bad coinbase placement and spends.", success)

			bs2 := accept(t, e, db, chaintest.Block(b1, cb2.ID(), spend.ID()))
			if bs2.Height != 2 || len(bs2.UTXOs) != 2 {
				t.Fatalf("\t%s\tTest 4:\tShould accept fees in the coinbase: %+v", failed, bs2)
			}

			exp := []database.Outpoint{{TxID: cb2.ID(), Index: 0}, {TxID: spend.ID(), Index: 0}}
			for i := range exp {
				if bs2.UTXOs[i] != exp[i] {
					t.Logf("\t%s\tTest 4:\tgot: %+v", failed, bs2.UTXOs)
					t.Logf("\t%s\tTest 4:\texp: %+v", failed, exp)
					t.Fatalf("\t%s\tTest 4:\tShould apply the transactions in order.", failed)
				}
			}
			t.Logf("\t%s\tTest 4:\tShould accept fees in the coinbase and apply in order.", success)
		}
	}
}
