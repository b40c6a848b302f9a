// Package worker implements the background operations of the node: the
// retry rounds of pending objects and peer discovery.
package worker

import (
	"sync"
	"time"

	"github.com/marabu/node/foundation/blockchain/state"
)

// Config represents the intervals of the background operations.
type Config struct {
	RetryInterval time.Duration
	PeerInterval  time.Duration
}

// =============================================================================

// Worker manages the background workflows for the node.
type Worker struct {
	state       *state.State
	wg          sync.WaitGroup
	retryTicker *time.Ticker
	peerTicker  *time.Ticker
	shut        chan struct{}
	evHandler   state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config, evHandler state.EventHandler) *Worker {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 300 * time.Millisecond
	}
	if cfg.PeerInterval <= 0 {
		cfg.PeerInterval = time.Minute
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	w := Worker{
		state:       st,
		retryTicker: time.NewTicker(cfg.RetryInterval),
		peerTicker:  time.NewTicker(cfg.PeerInterval),
		shut:        make(chan struct{}),
		evHandler:   ev,
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Reach out to the known peers before starting any support G's.
	w.runPeersOperation()

	// Load the set of operations we need to run.
	operations := []func(){
		w.resolveOperations,
		w.peerOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop tickers")
	w.retryTicker.Stop()
	w.peerTicker.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
