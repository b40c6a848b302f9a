// Package resolver tracks objects that validations are waiting for. Missing
// ids are requested from peers when first awaited and again on every tick
// until they are stored, rejected, or the attempt budget runs out.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnfindable is returned when an awaited object never became available.
var ErrUnfindable = errors.New("object unfindable")

// Store represents the lookup the resolver needs.
type Store interface {
	HasObject(id string) (bool, error)
}

// Config represents the collaborators of a resolver.
type Config struct {
	Store       Store
	Request     func(ids []string)
	InFlight    func(id string) bool
	MaxAttempts int
}

type entry struct {
	attempts int
	waiters  int
	done     chan struct{}
	err      error
}

// Resolver manages the pending objects.
type Resolver struct {
	mu          sync.Mutex
	store       Store
	request     func(ids []string)
	inFlight    func(id string) bool
	maxAttempts int
	pending     map[string]*entry
}

// New constructs a resolver.
func New(cfg Config) *Resolver {
	r := Resolver{
		store:       cfg.Store,
		request:     cfg.Request,
		inFlight:    cfg.InFlight,
		maxAttempts: cfg.MaxAttempts,
		pending:     make(map[string]*entry),
	}

	if r.request == nil {
		r.request = func([]string) {}
	}
	if r.inFlight == nil {
		r.inFlight = func(string) bool { return false }
	}

	return &r
}

// Await blocks until every id is stored. It fails with ErrUnfindable when an
// id runs out of attempts or is rejected, and with ctx.Err() when ctx ends.
func (r *Resolver) Await(ctx context.Context, ids ...string) error {
	type waiter struct {
		id string
		e  *entry
	}

	var waiting []waiter
	var request []string

	// A waiter that gives up leaves the entry for the others. The last one
	// out drops it.
	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		for _, w := range waiting {
			w.e.waiters--
			if w.e.waiters == 0 && !isDone(w.e) {
				r.drop(w.id, w.e)
			}
		}
	}
	defer release()

	err := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		for _, id := range ids {
			stored, err := r.store.HasObject(id)
			if err != nil {
				return err
			}
			if stored {
				continue
			}

			e, exists := r.pending[id]
			if !exists {
				e = &entry{done: make(chan struct{})}
				r.pending[id] = e
				if !r.inFlight(id) {
					request = append(request, id)
				}
			}
			e.waiters++
			waiting = append(waiting, waiter{id: id, e: e})
		}

		return nil
	}()
	if err != nil {
		return err
	}

	if len(request) > 0 {
		r.request(request)
	}

	for _, w := range waiting {
		select {
		case <-w.e.done:
			if w.e.err != nil {
				return w.e.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Tick runs one re-check round. Stored ids resolve, ids being validated
// elsewhere wait without using an attempt, and the rest are requested again
// until the budget runs out.
func (r *Resolver) Tick() {
	var request []string

	r.mu.Lock()
	for id, e := range r.pending {
		stored, err := r.store.HasObject(id)
		if err == nil && stored {
			r.resolve(id, e, nil)
			continue
		}

		if r.inFlight(id) {
			continue
		}

		e.attempts++
		if e.attempts > r.maxAttempts {
			r.resolve(id, e, fmt.Errorf("%w: %s after %d attempts", ErrUnfindable, id, r.maxAttempts))
			continue
		}

		request = append(request, id)
	}
	r.mu.Unlock()

	if len(request) > 0 {
		r.request(request)
	}
}

// Notify wakes the waiters of a stored object.
func (r *Resolver) Notify(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, exists := r.pending[id]; exists {
		r.resolve(id, e, nil)
	}
}

// Fail wakes the waiters of an object that failed validation. They see the
// object as unfindable.
func (r *Resolver) Fail(id string, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, exists := r.pending[id]; exists {
		r.resolve(id, e, fmt.Errorf("%w: %s was rejected: %s", ErrUnfindable, id, cause))
	}
}

// Pending returns the number of objects being waited for.
func (r *Resolver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// =============================================================================

// resolve must be called with the lock held.
func (r *Resolver) resolve(id string, e *entry, err error) {
	e.err = err
	close(e.done)
	delete(r.pending, id)
}

// drop must be called with the lock held.
func (r *Resolver) drop(id string, e *entry) {
	if r.pending[id] == e {
		delete(r.pending, id)
	}
}

func isDone(e *entry) bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
