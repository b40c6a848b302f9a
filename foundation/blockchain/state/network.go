package state

import (
	"fmt"
	"sort"

	"github.com/marabu/node/foundation/blockchain/peer"
	"github.com/marabu/node/foundation/blockchain/protocol"
)

// Register adds a live connection to the node.
func (s *State) Register(conn Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.conns[conn.ID()] = conn
}

// Unregister removes a connection from the node.
func (s *State) Unregister(conn Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	delete(s.conns, conn.ID())
}

// Connections returns the live connections ordered by id.
func (s *State) Connections() []Conn {
	s.connMu.RLock()
	defer s.connMu.RUnlock()

	conns := make([]Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID() < conns[j].ID() })

	return conns
}

// IsConnected reports whether an outbound connection to the host exists.
func (s *State) IsConnected(host string) bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()

	for _, conn := range s.conns {
		if conn.Outbound() && conn.Addr() == host {
			return true
		}
	}
	return false
}

// Outbound returns the number of live outbound connections.
func (s *State) Outbound() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()

	var n int
	for _, conn := range s.conns {
		if conn.Outbound() {
			n++
		}
	}
	return n
}

// Broadcast sends the message to every connection except from. A nil from
// sends to every connection.
func (s *State) Broadcast(from Conn, msg protocol.Message) {
	for _, conn := range s.Connections() {
		if from != nil && conn.ID() == from.ID() {
			continue
		}
		conn.Send(msg)
	}
}

// Request asks every connection for the objects.
func (s *State) Request(ids []string) {
	conns := s.Connections()
	s.evHandler("state: Request: objects%v: conns[%d]", ids, len(conns))

	for _, id := range ids {
		msg := protocol.GetObject{ObjectID: id}
		for _, conn := range conns {
			conn.Send(msg)
		}
	}
}

// =============================================================================

// KnownPeers returns the known peer addresses sorted.
func (s *State) KnownPeers() []string {
	return s.knownPeers.Hosts(s.host)
}

// AddPeers merges the valid addresses into the known peers, persists the
// list and opens a connection to every new peer. Invalid addresses are
// skipped. A persistence failure is returned after the peers were added.
func (s *State) AddPeers(addrs []string) ([]string, error) {
	var added []string
	for _, addr := range addrs {
		if err := peer.ValidateAddress(addr); err != nil {
			s.evHandler("state: AddPeers: skip: %s", err)
			continue
		}
		if addr == s.host {
			continue
		}
		if s.knownPeers.Add(peer.New(addr)) {
			added = append(added, addr)
		}
	}

	if len(added) == 0 {
		return nil, nil
	}

	s.evHandler("state: AddPeers: added%v", added)

	var err error
	if s.peersFile != "" {
		if serr := peer.Save(s.peersFile, s.knownPeers.Copy(s.host)); serr != nil {
			err = fmt.Errorf("saving peers: %w", serr)
		}
	}

	if s.Network != nil {
		for _, host := range added {
			s.Network.Connect(host)
		}
	}

	return added, err
}
