// Package p2p implements the peer to peer transport of the node: the
// listener, outbound dials and the per connection state machine speaking
// the newline delimited gossip protocol.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marabu/node/foundation/blockchain/protocol"
	"github.com/marabu/node/foundation/blockchain/state"
)

// Agent is the default agent string announced in hello.
const Agent = "Marabu-Go Node 0.9"

// Config represents the settings of the transport.
type Config struct {
	Agent        string
	DialTimeout  time.Duration
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
	RateWindow   time.Duration
	RateLimit    int
	MaxBuffer    int
	MaxErrors    int
	MaxOutbound  int
}

func (cfg Config) withDefaults() Config {
	if cfg.Agent == "" {
		cfg.Agent = Agent
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 3 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 250 * time.Millisecond
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = 1_000_000
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = 50
	}
	if cfg.MaxOutbound <= 0 {
		cfg.MaxOutbound = 8
	}
	return cfg
}

// ErrShutdown is returned when the server is shutting down.
var ErrShutdown = errors.New("server shutting down")

// =============================================================================

// Server manages the listener and the connections of the node.
type Server struct {
	cfg       Config
	state     *state.State
	evHandler state.EventHandler
	parser    protocol.Parser

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Conn]struct{}
	dialing  map[string]struct{}
}

// New constructs a server and registers it with the state as the network
// used to reach newly learned peers.
func New(cfg Config, st *state.State, evHandler state.EventHandler) *Server {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	srv := Server{
		cfg:       cfg.withDefaults(),
		state:     st,
		evHandler: ev,
		parser:    protocol.NewParser(st.Params().Target),
		ctx:       ctx,
		cancel:    cancel,
		conns:     make(map[*Conn]struct{}),
		dialing:   make(map[string]struct{}),
	}

	st.Network = &srv

	return &srv
}

// Listen starts accepting connections on the host.
func (s *Server) Listen(host string) error {
	listener, err := net.Listen("tcp", host)
	if err != nil {
		return fmt.Errorf("listen %s: %w", host, err)
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		listener.Close()
		return ErrShutdown
	}
	s.listener = listener
	s.wg.Add(1)
	s.mu.Unlock()

	s.evHandler("p2p: Listen: started: host[%s]", listener.Addr())

	go func() {
		defer s.wg.Done()
		s.acceptConnections(listener)
	}()

	return nil
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Dial opens an outbound connection to the host and starts it.
func (s *Server) Dial(host string) (*Conn, error) {
	if s.ctx.Err() != nil {
		return nil, ErrShutdown
	}

	c := newConn(s, host, true)

	d := net.Dialer{Timeout: s.cfg.DialTimeout}
	nc, err := d.DialContext(s.ctx, "tcp", host)
	if err != nil {
		c.setStatus(StatusClosed)
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}

	if !s.start(c, nc) {
		return nil, ErrShutdown
	}

	return c, nil
}

// Connect dials the host in the background unless it is already connected
// or the outbound limit is reached. It implements state.Network.
func (s *Server) Connect(host string) {
	if s.state.IsConnected(host) {
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if _, exists := s.dialing[host]; exists || s.state.Outbound()+len(s.dialing) >= s.cfg.MaxOutbound {
		s.mu.Unlock()
		return
	}
	s.dialing[host] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.dialing, host)
			s.mu.Unlock()
		}()

		if _, err := s.Dial(host); err != nil {
			s.evHandler("p2p: Connect: ERROR: %s", err)
		}
	}()
}

// Shutdown closes the listener and every connection and waits for their
// goroutines to finish.
func (s *Server) Shutdown() {
	s.evHandler("p2p: shutdown: started")
	defer s.evHandler("p2p: shutdown: completed")

	s.mu.Lock()
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	conns := make([]*Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close("server shutdown")
	}

	s.wg.Wait()
}

// =============================================================================

func (s *Server) acceptConnections(listener net.Listener) {
	for {
		nc, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.evHandler("p2p: accept: ERROR: %s", err)
			continue
		}

		c := newConn(s, nc.RemoteAddr().String(), false)
		s.start(c, nc)
	}
}

// start attaches the socket and runs the connection. It returns false when
// the server is shutting down.
func (s *Server) start(c *Conn, nc net.Conn) bool {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		nc.Close()
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	c.attach(nc)

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
		}()

		c.run()
	}()

	return true
}
