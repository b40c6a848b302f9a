package resolver_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marabu/node/foundation/blockchain/resolver"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type store struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (s *store) HasObject(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids[id], nil
}

func (s *store) put(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = true
}

type requests struct {
	mu  sync.Mutex
	ids []string
}

func (r *requests) add(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

func (r *requests) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func setup(inFlight func(string) bool) (*resolver.Resolver, *store, *requests) {
	s := store{ids: map[string]bool{"stored": true}}
	var req requests

	r := resolver.New(resolver.Config{
		Store:       &s,
		Request:     req.add,
		InFlight:    inFlight,
		MaxAttempts: 2,
	})

	return r, &s, &req
}

// await runs Await in a goroutine and waits until the id is pending.
func await(t *testing.T, ctx context.Context, r *resolver.Resolver, ids ...string) chan error {
	ch := make(chan error, 1)
	before := r.Pending()
	go func() {
		ch <- r.Await(ctx, ids...)
	}()

	deadline := time.Now().Add(time.Second)
	for r.Pending() == before {
		if time.Now().After(deadline) {
			t.Fatalf("Should register the pending id.")
		}
		time.Sleep(time.Millisecond)
	}

	return ch
}

func result(t *testing.T, ch chan error) error {
	select {
	case err := <-ch:
		return err
	case <-time.After(time.Second):
		t.Fatalf("Should get a result from Await.")
	}
	return nil
}

// =============================================================================

func Test_Resolve(t *testing.T) {
	t.Log("Given the need to wait for missing objects.")
	{
		t.Logf("\tTest 0:\tWhen the object is already stored.")
		{
			r, _, req := setup(nil)
			if err := r.Await(context.Background(), "stored"); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould return immediately: %v", failed, err)
			}
			if req.count() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould not request a stored object.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould return immediately without a request.", success)
		}

		t.Logf("\tTest 1:\tWhen the object arrives.")
		{
			r, s, req := setup(nil)
			ch := await(t, context.Background(), r, "stored", "parent")

			if req.count() != 1 {
				t.Fatalf("\t%s\tTest 1:\tShould request the missing object once.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould request the missing object once.", success)

			s.put("parent")
			r.Notify("parent")

			if err := result(t, ch); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould resolve after notify: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould resolve after notify.", success)
		}

		t.Logf("\tTest 2:\tWhen the object is stored without a notify.")
		{
			r, s, _ := setup(nil)
			ch := await(t, context.Background(), r, "parent")

			s.put("parent")
			r.Tick()

			if err := result(t, ch); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould resolve on the next tick: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould resolve on the next tick.", success)
		}

		t.Logf("\tTest 3:\tWhen the object never arrives.")
		{
			r, _, req := setup(nil)
			ch := await(t, context.Background(), r, "parent")

			r.Tick()
			r.Tick()
			r.Tick()

			if err := result(t, ch); !errors.Is(err, resolver.ErrUnfindable) {
				t.Fatalf("\t%s\tTest 3:\tShould be unfindable after the budget: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould be unfindable after the budget.", success)

			if req.count() != 3 {
				t.Logf("\t%s\tTest 3:\tgot: %d", failed, req.count())
				t.Logf("\t%s\tTest 3:\texp: %d", failed, 3)
				t.Fatalf("\t%s\tTest 3:\tShould request on every attempt.", failed)
			}
			t.Logf("\t%s\tTest 3:\tShould request on every attempt.", success)
		}

		t.Logf("\tTest 4:\tWhen the object is being validated elsewhere.")
		{
			r, _, req := setup(func(string) bool { return true })
			ch := await(t, context.Background(), r, "parent")

			for i := 0; i < 10; i++ {
				r.Tick()
			}

			if req.count() != 0 {
				t.Fatalf("\t%s\tTest 4:\tShould not request an object in flight.", failed)
			}

			r.Fail("parent", errors.New("bad signature"))

			if err := result(t, ch); !errors.Is(err, resolver.ErrUnfindable) {
				t.Fatalf("\t%s\tTest 4:\tShould be unfindable after a rejection: %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould wait without attempts and fail on rejection.", success)
		}

		t.Logf("\tTest 5:\tWhen the waiter goes away.")
		{
			r, _, _ := setup(nil)
			ctx, cancel := context.WithCancel(context.Background())
			ch := await(t, ctx, r, "parent")

			cancel()

			if err := result(t, ch); !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest 5:\tShould return the context error: %v", failed, err)
			}

			if r.Pending() != 0 {
				t.Fatalf("\t%s\tTest 5:\tShould drop the entry without waiters.", failed)
			}
			t.Logf("\t%s\tTest 5:\tShould return the context error and drop the entry.", success)
		}
	}
}
