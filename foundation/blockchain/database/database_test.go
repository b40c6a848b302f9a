package database_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/database/storage/memory"
	"github.com/marabu/node/foundation/blockchain/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	hex64  = strings.Repeat("a1", 32)
	hex128 = strings.Repeat("b2", 64)
)

// =============================================================================

func Test_DecodeObject(t *testing.T) {
	type table struct {
		name string
		json string
		kind database.Kind
	}

	block := func(extra string) string {
		return fmt.Sprintf(`{"type":"block","txids":["%s"],"nonce":"%s","previd":"%s","created":1671062500,"T":"%s"%s}`, hex64, hex64, hex64, genesis.Target, extra)
	}

	tx := func(index string, value string) string {
		return fmt.Sprintf(`{"type":"transaction","inputs":[{"outpoint":{"txid":"%s","index":%s},"sig":"%s"}],"outputs":[{"pubkey":"%s","value":%s}]}`, hex64, index, hex128, hex64, value)
	}

	tt := []table{
		{name: "block", json: block(""), kind: database.KindBlock},
		{name: "block-optional", json: block(`,"miner":"m","note":"n","studentids":["a","b"]`), kind: database.KindBlock},
		{name: "block-null-previd", json: strings.Replace(block(""), `"`+hex64+`","created"`, `null,"created"`, 1), kind: database.KindBlock},
		{name: "transaction", json: tx("0", "10"), kind: database.KindTransaction},
		{name: "coinbase", json: fmt.Sprintf(`{"type":"transaction","height":1,"outputs":[{"pubkey":"%s","value":50}]}`, hex64), kind: database.KindCoinbase},

		{name: "block-unknown-key", json: block(`,"extra":1`)},
		{name: "block-missing-previd", json: strings.Replace(block(""), `"previd":"`+hex64+`",`, "", 1)},
		{name: "block-uppercase", json: strings.Replace(block(""), `"nonce":"`+hex64, `"nonce":"`+strings.ToUpper(hex64), 1)},
		{name: "block-number-note", json: block(`,"note":5`)},
		{name: "block-null-miner", json: block(`,"miner":null`)},
		{name: "block-float-created", json: strings.Replace(block(""), "1671062500", "1671062500.5", 1)},
		{name: "block-too-many-ids", json: block(`,"studentids":["1","2","3","4","5","6","7","8","9","10","11"]`)},
		{name: "block-case-key", json: strings.Replace(block(""), `"T":`, `"t":`, 1)},
		{name: "tx-negative-index", json: tx("-1", "10")},
		{name: "tx-negative-value", json: tx("0", "-10")},
		{name: "tx-float-value", json: tx("0", "1.5")},
		{name: "tx-short-sig", json: strings.Replace(tx("0", "1"), hex128, hex64, 1)},
		{name: "tx-missing-sig", json: strings.Replace(tx("0", "1"), `,"sig":"`+hex128+`"`, "", 1)},
		{name: "coinbase-two-outputs", json: fmt.Sprintf(`{"type":"transaction","height":1,"outputs":[{"pubkey":"%s","value":50},{"pubkey":"%s","value":1}]}`, hex64, hex64)},
		{name: "coinbase-with-inputs", json: fmt.Sprintf(`{"type":"transaction","height":1,"inputs":[],"outputs":[{"pubkey":"%s","value":50}]}`, hex64)},
		{name: "unknown-type", json: `{"type":"account"}`},
		{name: "not-object", json: `[1,2]`},
	}

	t.Log("Given the need to classify objects received from peers.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s object.", testID, tst.name)
				{
					obj, err := database.ParseObject([]byte(tst.json))

					if tst.kind == 0 {
						if !errors.Is(err, database.ErrInvalidObject) {
							t.Fatalf("\t%s\tTest %d:\tShould reject the object: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould reject the object: %v", success, testID, err)
						return
					}

					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould accept the object: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould accept the object.", success, testID)

					if obj.Kind() != tst.kind {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, obj.Kind())
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.kind)
						t.Fatalf("\t%s\tTest %d:\tShould classify the object.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould classify the object.", success, testID)

					data, err := database.Encode(obj)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to encode the object: %v", failed, testID, err)
					}

					again, err := database.ParseObject(data)
					if err != nil || again.ID() != obj.ID() {
						t.Fatalf("\t%s\tTest %d:\tShould keep the same id after re-encoding: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould keep the same id after re-encoding.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_PutObject(t *testing.T) {
	params := genesis.Default()

	db, err := database.New(memory.New(), memory.New(), params.Genesis)
	if err != nil {
		t.Fatalf("Should be able to construct the database: %s", err)
	}
	defer db.Close()

	t.Log("Given the need to store objects idempotently.")
	{
		exists, err := db.HasObject(genesis.ID)
		if err != nil || !exists {
			t.Fatalf("\t%s\tShould always have the genesis block: %v", failed, err)
		}
		t.Logf("\t%s\tShould always have the genesis block.", success)

		bs, err := db.GetBlockState(genesis.ID)
		if err != nil || bs.Height != 0 || len(bs.UTXOs) != 0 {
			t.Fatalf("\t%s\tShould have an empty genesis state: %+v %v", failed, bs, err)
		}
		t.Logf("\t%s\tShould have an empty genesis state.", success)

		cb := database.Coinbase{
			Type:    database.TypeTransaction,
			Height:  1,
			Outputs: []database.Output{{PubKey: hex64, Value: 50}},
		}

		created, err := db.PutObject(cb)
		if err != nil || !created {
			t.Fatalf("\t%s\tShould create the object on first put: %v", failed, err)
		}
		t.Logf("\t%s\tShould create the object on first put.", success)

		created, err = db.PutObject(cb)
		if err != nil || created {
			t.Fatalf("\t%s\tShould not create the object on second put: %v", failed, err)
		}
		t.Logf("\t%s\tShould not create the object on second put.", success)

		obj, err := db.GetObject(cb.ID())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to get the object: %v", failed, err)
		}

		if obj.ID() != cb.ID() {
			t.Logf("\t%s\tgot: %s", failed, obj.ID())
			t.Logf("\t%s\texp: %s", failed, cb.ID())
			t.Fatalf("\t%s\tShould get back the same object.", failed)
		}
		t.Logf("\t%s\tShould get back the same object.", success)

		if _, err := db.GetObject(hex64); !errors.Is(err, database.ErrNotFound) {
			t.Fatalf("\t%s\tShould get not found for an unknown id: %v", failed, err)
		}
		t.Logf("\t%s\tShould get not found for an unknown id.", success)
	}
}

func Test_SigningPayload(t *testing.T) {
	sig := hex128
	tx := database.Transaction{
		Type: database.TypeTransaction,
		Inputs: []database.Input{
			{Outpoint: database.Outpoint{TxID: hex64, Index: 0}, Sig: &sig},
			{Outpoint: database.Outpoint{TxID: hex64, Index: 1}, Sig: &sig},
		},
		Outputs: []database.Output{{PubKey: hex64, Value: 1}},
	}

	data, err := tx.SigningPayload()
	if err != nil {
		t.Fatalf("Should be able to build the payload: %s", err)
	}

	if strings.Contains(string(data), hex128) || strings.Count(string(data), `"sig":null`) != 2 {
		t.Logf("got: %s", data)
		t.Fatalf("Should null every signature.")
	}

	if tx.Inputs[0].Sig == nil {
		t.Fatalf("Should not modify the original transaction.")
	}
}

func Test_EncodeNote(t *testing.T) {
	t.Log("Given the need to identify blocks by their canonical form.")
	{
		note := "line\u2028separator"
		b := database.Block{
			Type:    database.TypeBlock,
			TxIDs:   []string{},
			Nonce:   hex64,
			Created: 1,
			Target:  hex64,
			Note:    &note,
		}

		data, err := database.Encode(b)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to encode the block: %s", failed, err)
		}

		if !strings.Contains(string(data), "\"note\":\"line\u2028separator\"") {
			t.Logf("\t\tgot: %s", data)
			t.Fatalf("\t%s\tShould keep the line separator unescaped.", failed)
		}
		t.Logf("\t%s\tShould keep the line separator unescaped.", success)

		parsed, err := database.ParseObject(data)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to parse the block: %s", failed, err)
		}
		if parsed.ID() != b.ID() {
			t.Fatalf("\t%s\tShould keep the id across a round trip.", failed)
		}
		t.Logf("\t%s\tShould keep the id across a round trip.", success)
	}
}
