package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marabu/node/foundation/blockchain/chaintest"
	"github.com/marabu/node/foundation/blockchain/peer"
	"github.com/marabu/node/foundation/blockchain/resolver"
	"github.com/marabu/node/foundation/blockchain/state"
	"github.com/marabu/node/foundation/blockchain/worker"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type network struct {
	mu    sync.Mutex
	hosts []string
}

func (n *network) Connect(host string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hosts = append(n.hosts, host)
}

func (n *network) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.hosts)
}

func Test_Worker(t *testing.T) {
	t.Log("Given the need to run the background operations.")
	{
		peers := peer.NewPeerSet()
		peers.Add(peer.New("1.2.3.4:18018"))

		st, err := state.New(state.Config{
			Params:        chaintest.Params(),
			Database:      chaintest.NewDatabase(t),
			KnownPeers:    peers,
			RetryAttempts: 2,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct the state: %s", failed, err)
		}

		var net network
		st.Network = &net

		w := worker.Run(st, worker.Config{RetryInterval: 10 * time.Millisecond, PeerInterval: 20 * time.Millisecond}, nil)
		defer w.Shutdown()

		if net.count() == 0 {
			t.Fatalf("\t%s\tShould dial the known peers on start.", failed)
		}
		t.Logf("\t%s\tShould dial the known peers on start.", success)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		missing := chaintest.Coinbase(9, "nobody", 1).ID()
		if err := st.Resolver().Await(ctx, missing); !errors.Is(err, resolver.ErrUnfindable) {
			t.Fatalf("\t%s\tShould give up on a missing object: %v", failed, err)
		}
		t.Logf("\t%s\tShould give up on a missing object.", success)

		deadline := time.Now().Add(5 * time.Second)
		for net.count() < 2 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if net.count() < 2 {
			t.Fatalf("\t%s\tShould dial the known peers again.", failed)
		}
		t.Logf("\t%s\tShould dial the known peers again.", success)
	}
}
