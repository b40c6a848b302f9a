// Package state is the core API for the blockchain node. It owns the chain
// tip, the mempool and the set of live connections, and applies validated
// objects to them.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/marabu/node/foundation/blockchain/consensus"
	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/genesis"
	"github.com/marabu/node/foundation/blockchain/mempool"
	"github.com/marabu/node/foundation/blockchain/peer"
	"github.com/marabu/node/foundation/blockchain/protocol"
	"github.com/marabu/node/foundation/blockchain/resolver"
)

// EventHandler defines a function that is called when events
// occur in the processing of objects and connections.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for background node operations.
type Worker interface {
	Shutdown()
}

// Network interface represents the behavior required to open a connection
// to a peer. Connect must not block.
type Network interface {
	Connect(host string)
}

// Conn interface represents a live peer connection.
type Conn interface {
	ID() string
	Addr() string
	Outbound() bool
	Send(msg protocol.Message) bool
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	Params        genesis.Params
	Database      *database.Database
	KnownPeers    *peer.PeerSet
	PeersFile     string
	Host          string
	RetryAttempts int
	EvHandler     EventHandler
}

// State manages the chain tip, mempool and connections of the node.
type State struct {
	host      string
	peersFile string
	evHandler EventHandler
	params    genesis.Params

	db         *database.Database
	engine     consensus.Engine
	resolver   *resolver.Resolver
	mempool    *mempool.Mempool
	knownPeers *peer.PeerSet

	mu     sync.Mutex
	tipID  string
	length uint64

	connMu sync.RWMutex
	conns  map[string]Conn

	flightMu sync.Mutex
	inFlight map[string]struct{}

	Worker  Worker
	Network Network
}

// New constructs a new state for the node starting at the genesis block.
func New(cfg Config) (*State, error) {
	if cfg.Database == nil {
		return nil, errors.New("database is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet()
	}

	s := State{
		host:       cfg.Host,
		peersFile:  cfg.PeersFile,
		evHandler:  ev,
		params:     cfg.Params,
		db:         cfg.Database,
		mempool:    mempool.New(),
		knownPeers: knownPeers,
		tipID:      cfg.Database.GenesisID(),
		length:     1,
		conns:      make(map[string]Conn),
		inFlight:   make(map[string]struct{}),
	}

	s.resolver = resolver.New(resolver.Config{
		Store:       cfg.Database,
		Request:     s.Request,
		InFlight:    s.isInFlight,
		MaxAttempts: cfg.RetryAttempts,
	})

	s.engine = consensus.Engine{
		Params:   cfg.Params,
		Store:    cfg.Database,
		Resolver: s.resolver,
		Now:      time.Now,
	}

	// The Worker and Network are not set here. The calls to worker.Run and
	// p2p.New will assign themselves.

	return &s, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	// Stop all background activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	// Make sure the database is properly closed.
	return s.db.Close()
}

// =============================================================================

// Database returns the object and block state storage of the node.
func (s *State) Database() *database.Database {
	return s.db
}

// Resolver returns the tracker of objects validations are waiting for.
func (s *State) Resolver() *resolver.Resolver {
	return s.resolver
}

// Params returns the network parameters of the node.
func (s *State) Params() genesis.Params {
	return s.params
}

// Host returns the listen address of the node.
func (s *State) Host() string {
	return s.host
}

// ChainTip returns the id of the tip of the longest chain and its length,
// counting the genesis block.
func (s *State) ChainTip() (string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tipID, s.length
}

// Mempool returns the ids of the mempool transactions in arrival order.
func (s *State) Mempool() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mempool.TxIDs()
}

// =============================================================================

// beginFlight marks a block as being validated. It returns false if the
// block is already being validated elsewhere.
func (s *State) beginFlight(id string) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	if _, exists := s.inFlight[id]; exists {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *State) endFlight(id string) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	delete(s.inFlight, id)
}

func (s *State) isInFlight(id string) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	_, exists := s.inFlight[id]
	return exists
}
