package worker

import "github.com/marabu/node/foundation/blockchain/protocol"

// peerOperations handles finding new peers.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.peerTicker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation opens connections to the known peers this node is not
// connected to and asks the live connections for their peers. The network
// stops dialing at its outbound limit.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	if w.state.Network != nil {
		for _, host := range w.state.KnownPeers() {
			if !w.state.IsConnected(host) {
				w.state.Network.Connect(host)
			}
		}
	}

	w.state.Broadcast(nil, protocol.GetPeers{})
}
