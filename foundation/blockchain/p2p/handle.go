package p2p

import (
	"errors"

	"github.com/marabu/node/foundation/blockchain/consensus"
	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/protocol"
)

// handle processes one frame. It returns false when the connection must
// stop reading.
func (c *Conn) handle(frame []byte) bool {
	msg, err := c.srv.parser.Parse(frame)
	if err != nil {
		if !c.handshaken {
			c.fatal(protocol.InvalidHandshake, "invalid message before hello: "+err.Error())
			return false
		}
		c.fatal(protocol.InvalidFormat, err.Error())
		return false
	}

	switch m := msg.(type) {
	case protocol.Hello:
		if !c.handshaken {
			c.handshaken = true
			c.setStatus(StatusEstablished)
			c.srv.evHandler("p2p: conn[%s]: handshake: agent[%s]: version[%s]", c.addr, m.Agent, m.Version)
		}
		return true

	case protocol.Error:
		c.srv.evHandler("p2p: conn[%s]: peer error: %s: %s", c.addr, m.Name, m.Description)
		return true
	}

	if !c.handshaken {
		c.fatal(protocol.InvalidHandshake, "received "+msg.Type()+" before hello")
		return false
	}

	st := c.srv.state

	switch m := msg.(type) {
	case protocol.GetPeers:
		c.Send(protocol.Peers{Peers: st.KnownPeers()})

	case protocol.GetChainTip:
		tip, _ := st.ChainTip()
		c.Send(protocol.ChainTip{BlockID: tip})

	case protocol.GetChainLength:
		_, length := st.ChainTip()
		c.Send(protocol.ChainLength{ChainLength: length})

	case protocol.GetMempool:
		c.Send(protocol.Mempool{TxIDs: st.Mempool()})

	case protocol.GetObject:
		obj, err := st.Database().GetObject(m.ObjectID)
		switch {
		case err == nil:
			c.Send(protocol.Object{Object: obj})
		case !errors.Is(err, database.ErrNotFound):
			return c.nonFatal(err)
		}

	case protocol.Peers:
		if _, err := st.AddPeers(m.Peers); err != nil {
			return c.nonFatal(err)
		}

	case protocol.ChainTip:
		stored, err := st.ChainTipAnnounced(m.BlockID)
		if err != nil {
			return c.nonFatal(err)
		}
		if !stored {
			c.Send(protocol.GetObject{ObjectID: m.BlockID})
		}

	case protocol.ChainLength:
		c.srv.evHandler("p2p: conn[%s]: chainlength[%d]", c.addr, m.ChainLength)

	case protocol.Mempool:
		return c.requestMissing(m.TxIDs)

	case protocol.IHaveObject:
		return c.requestMissing([]string{m.ObjectID})

	case protocol.Object:
		return c.object(m.Object)
	}

	return true
}

func (c *Conn) requestMissing(ids []string) bool {
	missing, err := c.srv.state.Missing(ids)
	if err != nil {
		return c.nonFatal(err)
	}

	for _, id := range missing {
		c.Send(protocol.GetObject{ObjectID: id})
	}
	return true
}

// object validates a received object. Transactions are validated in line.
// Blocks may wait for their ancestors so they are validated in the
// background, bound to the lifetime of the connection.
func (c *Conn) object(obj database.Object) bool {
	if obj.Kind() != database.KindBlock {
		return c.process(obj)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.process(obj)
	}()

	return true
}

func (c *Conn) process(obj database.Object) bool {
	_, err := c.srv.state.ProcessObject(c.ctx, c, obj)
	if err == nil {
		return true
	}

	if c.ctx.Err() != nil {
		return false
	}

	name, ok := consensus.ErrorName(err)
	if !ok {
		c.srv.evHandler("p2p: conn[%s]: process %s[%s]: ERROR: %s", c.addr, obj.Kind(), obj.ID(), err)
		return true
	}

	c.fatal(name, err.Error())
	return false
}
