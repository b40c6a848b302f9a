package p2p

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marabu/node/foundation/blockchain/protocol"
)

// Status represents the lifecycle stage of a connection.
type Status int32

// Set of connection statuses.
const (
	StatusConnecting Status = iota
	StatusHandshaking
	StatusEstablished
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusHandshaking:
		return "handshaking"
	case StatusEstablished:
		return "established"
	default:
		return "closed"
	}
}

// queueSize is the number of outbound frames a connection buffers.
const queueSize = 1024

// Conn is a live connection to a peer.
type Conn struct {
	id       string
	addr     string
	outbound bool
	srv      *Server
	status   atomic.Int32

	nc      net.Conn
	framer  *framer
	limiter *limiter

	ctx     context.Context
	cancel  context.CancelFunc
	out     chan []byte
	closing chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	handshaken bool
	errors     int
}

func newConn(srv *Server, addr string, outbound bool) *Conn {
	ctx, cancel := context.WithCancel(srv.ctx)

	c := Conn{
		id:       uuid.NewString(),
		addr:     addr,
		outbound: outbound,
		srv:      srv,
		limiter:  newLimiter(srv.cfg.RateWindow, srv.cfg.RateLimit),
		ctx:      ctx,
		cancel:   cancel,
		out:      make(chan []byte, queueSize),
		closing:  make(chan struct{}),
	}
	c.setStatus(StatusConnecting)

	return &c
}

// ID returns the unique id of the connection.
func (c *Conn) ID() string {
	return c.id
}

// Addr returns the remote address. For outbound connections this is the
// dialed host.
func (c *Conn) Addr() string {
	return c.addr
}

// Outbound reports whether the node opened the connection.
func (c *Conn) Outbound() bool {
	return c.outbound
}

// Status returns the current status of the connection.
func (c *Conn) Status() Status {
	return Status(c.status.Load())
}

func (c *Conn) setStatus(s Status) {
	c.status.Store(int32(s))
}

// Send queues the message for writing. It returns false if the connection
// is closing or its queue is full.
func (c *Conn) Send(msg protocol.Message) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		c.srv.evHandler("p2p: conn[%s]: encode %s: ERROR: %s", c.addr, msg.Type(), err)
		return false
	}
	data = append(data, '\n')

	select {
	case <-c.closing:
		return false
	default:
	}

	select {
	case c.out <- data:
		return true
	default:
		c.srv.evHandler("p2p: conn[%s]: queue full, dropping %s", c.addr, msg.Type())
		return false
	}
}

// Done returns a channel that is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// =============================================================================

func (c *Conn) attach(nc net.Conn) {
	c.nc = nc
	c.framer = newFramer(nc, c.srv.cfg.MaxBuffer, c.srv.cfg.IdleTimeout)
	c.setStatus(StatusHandshaking)
}

// run greets the peer and processes frames until the connection closes.
func (c *Conn) run() {
	ev := c.srv.evHandler
	ev("p2p: conn[%s]: started: outbound[%t]", c.addr, c.outbound)

	c.srv.state.Register(c)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.writer()
	}()

	defer func() {
		c.close("connection ended")
		c.srv.state.Unregister(c)
		c.wg.Wait()
		ev("p2p: conn[%s]: completed", c.addr)
	}()

	c.Send(protocol.Hello{Version: protocol.Version, Agent: c.srv.cfg.Agent})
	c.Send(protocol.GetPeers{})
	c.Send(protocol.GetChainTip{})
	c.Send(protocol.GetMempool{})

	for {
		frame, err := c.framer.next()
		if err != nil {
			switch {
			case errors.Is(err, ErrOverflow), errors.Is(err, ErrIdle):
				c.fatal(protocol.InvalidFormat, err.Error())
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			default:
				ev("p2p: conn[%s]: read: ERROR: %s", c.addr, err)
			}
			return
		}

		if !c.limiter.allow() {
			c.fatal(protocol.InvalidFormat, "too many messages")
			return
		}

		if !c.handle(frame) {
			return
		}
	}
}

// writer writes queued frames until the connection closes, then flushes
// what is left and releases the socket.
func (c *Conn) writer() {
	defer c.nc.Close()

	for {
		select {
		case frame := <-c.out:
			if err := c.write(frame); err != nil {
				c.close("write failed")
				return
			}

		case <-c.closing:
			for {
				select {
				case frame := <-c.out:
					if err := c.write(frame); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Conn) write(frame []byte) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := c.nc.Write(frame)
	return err
}

// fatal sends a best effort error to the peer and closes the connection.
func (c *Conn) fatal(name protocol.ErrorName, description string) {
	c.srv.evHandler("p2p: conn[%s]: fatal: %s: %s", c.addr, name, description)

	c.Send(protocol.NewError(name, description))
	c.close(description)
}

// nonFatal counts an error. Reaching the limit is fatal.
func (c *Conn) nonFatal(err error) bool {
	c.errors++
	c.srv.evHandler("p2p: conn[%s]: error[%d]: %s", c.addr, c.errors, err)

	if c.errors >= c.srv.cfg.MaxErrors {
		c.fatal(protocol.InvalidFormat, "too many errors")
		return false
	}
	return true
}

// close marks the connection closed, unregisters it and cancels its
// background work. The writer flushes the queue and releases the socket.
func (c *Conn) close(reason string) {
	c.once.Do(func() {
		c.srv.evHandler("p2p: conn[%s]: close: %s", c.addr, reason)

		c.setStatus(StatusClosed)
		c.srv.state.Unregister(c)
		c.cancel()
		close(c.closing)
	})
}
