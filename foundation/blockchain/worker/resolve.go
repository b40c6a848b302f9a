package worker

// resolveOperations drives the retry rounds of the objects validations are
// waiting for.
func (w *Worker) resolveOperations() {
	w.evHandler("worker: resolveOperations: G started")
	defer w.evHandler("worker: resolveOperations: G completed")

	for {
		select {
		case <-w.retryTicker.C:
			if !w.isShutdown() && w.state.Resolver().Pending() > 0 {
				w.state.Resolver().Tick()
			}
		case <-w.shut:
			w.evHandler("worker: resolveOperations: received shut signal")
			return
		}
	}
}
