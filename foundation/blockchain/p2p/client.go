package p2p

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/genesis"
	"github.com/marabu/node/foundation/blockchain/protocol"
)

// ErrRejected is returned when the node answers a submitted object with an
// error message.
var ErrRejected = errors.New("object rejected")

// pollInterval is how often Submit asks the node for the submitted object.
const pollInterval = 200 * time.Millisecond

// Client is a light client speaking the gossip protocol to a single node.
type Client struct {
	nc     net.Conn
	reader *bufio.Reader
	parser protocol.Parser
}

// Dial connects a light client to the host. An empty target uses the target
// of the main network.
func Dial(host string, target string, timeout time.Duration) (*Client, error) {
	if target == "" {
		target = genesis.Target
	}

	nc, err := net.DialTimeout("tcp", host, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}

	client := Client{
		nc:     nc,
		reader: bufio.NewReaderSize(nc, 64*1024),
		parser: protocol.NewParser(target),
	}

	return &client, nil
}

// Handshake sends the hello message.
func (c *Client) Handshake(agent string) error {
	return c.Send(protocol.Hello{Version: protocol.Version, Agent: agent})
}

// Send writes one message.
func (c *Client) Send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	return c.SendRaw(append(data, '\n'))
}

// SendRaw writes the bytes as they are.
func (c *Client) SendRaw(data []byte) error {
	if _, err := c.nc.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Receive reads and parses the next message.
func (c *Client) Receive(timeout time.Duration) (protocol.Message, error) {
	if err := c.nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	return c.parser.Parse(line[:len(line)-1])
}

// Expect reads messages until one of the type arrives.
func (c *Client) Expect(typ string, timeout time.Duration) (protocol.Message, error) {
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("no %s message within %s", typ, timeout)
		}

		msg, err := c.Receive(remaining)
		if err != nil {
			return nil, err
		}
		if msg.Type() == typ {
			return msg, nil
		}
	}
}

// Submit sends the object and asks for it until the node stores it. Blocks
// are validated in the background and the node ignores requests for objects
// it does not have, so the request is repeated until the wait is over.
func (c *Client) Submit(obj database.Object, wait time.Duration) error {
	if err := c.Send(protocol.Object{Object: obj}); err != nil {
		return err
	}

	id := obj.ID()
	deadline := time.Now().Add(wait)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%s %s not stored within %s", obj.Kind(), id, wait)
		}

		if err := c.Send(protocol.GetObject{ObjectID: id}); err != nil {
			return err
		}

		poll := min(pollInterval, remaining)
		until := time.Now().Add(poll)

		for {
			msg, err := c.Receive(time.Until(until))
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					break
				}
				return err
			}

			switch m := msg.(type) {
			case protocol.Error:
				return fmt.Errorf("%w: %s: %s", ErrRejected, m.Name, m.Description)
			case protocol.Object:
				if m.Object.ID() == id {
					return nil
				}
			}
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.nc.Close()
}
