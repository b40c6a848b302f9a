package peer_test

import (
	"path/filepath"
	"testing"

	"github.com/marabu/node/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host1"}, {Host: "host2"}, {Host: "host3"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, peer := range tst.peers {
				ps.Add(peer)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			peers = ps.Copy("host2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			if ps.Add(tst.peers[0]) {
				t.Fatalf("Test %s:\tShould not add a peer twice.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_ValidateAddress(t *testing.T) {
	type table struct {
		addr  string
		valid bool
	}

	tt := []table{
		{addr: "1.2.3.4:18018", valid: true},
		{addr: "node.example.com:1", valid: true},
		{addr: "127.0.0.1:65535", valid: true},
		{addr: "1.2.3.4:0", valid: false},
		{addr: "1.2.3.4:65536", valid: false},
		{addr: "1.2.3.4", valid: false},
		{addr: ":18018", valid: false},
		{addr: "bad host:18018", valid: false},
		{addr: "1.2.3.4:18018:1", valid: false},
		{addr: "1.2.3.4:port", valid: false},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			err := peer.ValidateAddress(tst.addr)
			if (err == nil) != tst.valid {
				t.Logf("Test %s:\tgot: %v", tst.addr, err)
				t.Logf("Test %s:\texp: %v", tst.addr, tst.valid)
				t.Fatalf("Test %s:\tShould validate the address.", tst.addr)
			}
		}

		t.Run(tst.addr, f)
	}
}

func Test_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")

	peers, err := peer.Load(path)
	if err != nil || len(peers) != 0 {
		t.Fatalf("Should get an empty list for a missing file: %v", err)
	}

	exp := []peer.Peer{peer.New("1.2.3.4:18018"), peer.New("node.example.com:18018")}
	if err := peer.Save(path, exp); err != nil {
		t.Fatalf("Should be able to save the file: %s", err)
	}

	peers, err = peer.Load(path)
	if err != nil {
		t.Fatalf("Should be able to load the file: %s", err)
	}

	if len(peers) != len(exp) || peers[0] != exp[0] || peers[1] != exp[1] {
		t.Logf("got: %v", peers)
		t.Logf("exp: %v", exp)
		t.Fatalf("Should get back the saved peers.")
	}
}
