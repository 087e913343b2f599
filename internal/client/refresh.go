package client

import (
	"context"
	"sync"
)

// refreshGate lets exactly one refresh run at a time. Callers that arrive
// while a refresh is in flight are parked and handed its outcome.
//
// One gate is owned by each Client for its whole lifetime.
type refreshGate struct {
	mu       sync.Mutex
	inFlight bool
	waiters  []chan error
}

// do runs refresh if no refresh is in flight, or waits for the running one.
// leader is true for the caller that actually ran refresh. A parked caller
// whose ctx ends stops waiting; the refresh itself keeps going.
func (g *refreshGate) do(ctx context.Context, refresh func() error) (leader bool, err error) {
	g.mu.Lock()
	if g.inFlight {
		ch := make(chan error, 1)
		g.waiters = append(g.waiters, ch)
		g.mu.Unlock()

		select {
		case err := <-ch:
			return false, err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	g.inFlight = true
	g.mu.Unlock()

	err = refresh()

	g.mu.Lock()
	waiters := g.waiters
	g.waiters = nil
	g.inFlight = false
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	return true, err
}

// pending returns the number of parked callers.
func (g *refreshGate) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

// busy reports whether a refresh is in flight.
func (g *refreshGate) busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}
