package canonical_test

import (
	"encoding/json"
	"testing"

	"github.com/marabu/node/foundation/blockchain/canonical"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Encode(t *testing.T) {
	type table struct {
		name  string
		value any
		exp   string
	}

	tt := []table{
		{
			name:  "sorted",
			value: map[string]any{"b": 1, "a": "x", "T": true},
			exp:   `{"T":true,"a":"x","b":1}`,
		},
		{
			name: "nested",
			value: map[string]any{
				"outputs": []any{map[string]any{"value": 10, "pubkey": "ab"}},
				"height":  1,
			},
			exp: `{"height":1,"outputs":[{"pubkey":"ab","value":10}]}`,
		},
		{
			name: "struct",
			value: struct {
				Zeta  string  `json:"zeta"`
				Alpha *string `json:"alpha"`
			}{Zeta: "<&>"},
			exp: `{"alpha":null,"zeta":"<&>"}`,
		},
		{
			name:  "lineseparator",
			value: map[string]any{"note": "a\u2028b\u2029c"},
			exp:   "{\"note\":\"a\u2028b\u2029c\"}",
		},
		{
			name:  "escapes",
			value: map[string]any{"note": "tab\tquote\"nul\u0000"},
			exp:   `{"note":"tab\tquote\"nul\u0000"}`,
		},
		{
			name:  "numbers",
			value: map[string]any{"a": json.Number("1.0"), "b": json.Number("1e3"), "c": json.Number("-0"), "d": json.Number("0.000001")},
			exp:   `{"a":1,"b":1000,"c":0,"d":0.000001}`,
		},
		{
			name:  "utf16order",
			value: map[string]any{"\uFF21": 1, "\U0001F600": 2, "z": 3},
			exp:   "{\"z\":3,\"\U0001F600\":2,\"\uFF21\":1}",
		},
		{
			name:  "bignumber",
			value: map[string]any{"value": uint64(50000000000000)},
			exp:   `{"value":50000000000000}`,
		},
	}

	t.Log("Given the need to encode values canonically.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen encoding the %s value.", testID, tst.name)
				{
					data, err := canonical.Encode(tst.value)
					if err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould be able to encode the value: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould be able to encode the value.", success, testID)

					if string(data) != tst.exp {
						t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, data)
						t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get back the canonical form.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get back the canonical form.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_HashOrderIndependent(t *testing.T) {
	a := map[string]any{"type": "transaction", "height": 1, "outputs": []any{}}
	b := map[string]any{"outputs": []any{}, "height": 1, "type": "transaction"}

	ha, err := canonical.Hash(a)
	if err != nil {
		t.Fatalf("Should be able to hash the first value: %s", err)
	}

	hb, err := canonical.Hash(b)
	if err != nil {
		t.Fatalf("Should be able to hash the second value: %s", err)
	}

	if ha != hb {
		t.Logf("got: %s", hb)
		t.Logf("exp: %s", ha)
		t.Fatalf("Should get the same hash regardless of key order.")
	}

	if len(ha) != 64 {
		t.Fatalf("Should get a 64 character hex hash, got %d", len(ha))
	}
}

func Test_EncodeError(t *testing.T) {
	t.Log("Given the need to report values that have no canonical form.")
	{
		t.Logf("\tTest 0:\tWhen a number is out of the double range.")
		{
			if _, err := canonical.Hash(map[string]any{"value": json.Number("1e400")}); err == nil {
				t.Fatalf("\t%s\tShould get an error instead of a hash.", failed)
			}
			t.Logf("\t%s\tShould get an error instead of a hash.", success)
		}
	}
}
