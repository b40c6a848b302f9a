// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marabu/node/business/web/errs"
	"github.com/marabu/node/foundation/blockchain/consensus"
	"github.com/marabu/node/foundation/blockchain/database"
	"github.com/marabu/node/foundation/blockchain/state"
	"github.com/marabu/node/foundation/events"
	"github.com/marabu/node/foundation/validate"
	"github.com/marabu/node/foundation/web"
	"go.uber.org/zap"
)

// maxObject is the largest object document accepted for submission.
const maxObject = 1_000_000

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client. The optional
// prefix query parameter limits the events to one subsystem, e.g. "viewer:".
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, r.URL.Query().Get("prefix"))
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// ChainTip returns the current tip of the longest valid chain.
func (h Handlers) ChainTip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tip, length := h.State.ChainTip()

	return web.Respond(ctx, w, chainTip{BlockID: tip, ChainLength: length}, http.StatusOK)
}

// Mempool returns the ids of the transactions waiting for a block.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, mempool{TxIDs: h.State.Mempool()}, http.StatusOK)
}

// Peers returns the known peer addresses and the open connections.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := peers{
		Known:       h.State.KnownPeers(),
		Connections: []connection{},
	}

	for _, c := range h.State.Connections() {
		resp.Connections = append(resp.Connections, connection{
			ID:       c.ID(),
			Addr:     c.Addr(),
			Outbound: c.Outbound(),
		})
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// QueryObject returns the canonical document of a stored object.
func (h Handlers) QueryObject(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := web.Param(r, "id")
	if err := validate.Var(id, "len=64,hexlower"); err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid object id %q", id), http.StatusBadRequest)
	}

	data, err := h.State.Database().GetRaw(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(fmt.Errorf("object %s not found", id), http.StatusNotFound)
		}
		return fmt.Errorf("query object[%s]: %w", id, err)
	}

	return web.RespondRaw(ctx, w, data, http.StatusOK)
}

// SubmitObject validates an object document and, if valid, stores it and
// announces it to the connected peers. Blocks with unknown ancestors hold
// the request until the ancestors are found or given up on.
func (h Handlers) SubmitObject(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	data, err := web.ReadBody(r, maxObject)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	obj, err := database.ParseObject(data)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if b, ok := obj.(database.Block); ok && b.Target != h.State.Params().Target {
		return errs.NewTrusted(fmt.Errorf("block target %s is not the network target", b.Target), http.StatusBadRequest)
	}

	created, err := h.State.ProcessObject(ctx, nil, obj)
	if err != nil {
		if name, ok := consensus.ErrorName(err); ok {
			return errs.NewRejected(err, string(name))
		}
		return fmt.Errorf("submit %s[%s]: %w", obj.Kind(), obj.ID(), err)
	}

	resp := submitted{
		ObjectID: obj.ID(),
		Kind:     obj.Kind().String(),
		Created:  created,
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	return web.Respond(ctx, w, resp, status)
}
