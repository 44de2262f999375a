// Package singleflight serializes an operation so at most one execution is in
// flight at any instant. Callers arriving while an execution runs do not trigger
// a second execution; they wait and observe the same outcome.
//
// This differs from golang.org/x/sync/singleflight in two ways the session core
// depends on: Reset rejects waiters with a caller-chosen error instead of merely
// forgetting the key, and waiters can abandon the wait through their own context
// without affecting the in-flight execution.
package singleflight

import (
	"context"
	"errors"
	"sync"
)

// ErrReset is returned to waiters when the group is reset without an explicit
// rejection error.
var ErrReset = errors.New("singleflight: in-flight call reset")

type call struct {
	done chan struct{}
	err  error

	abort    chan struct{}
	abortErr error
}

// Group ensures at most one execution of an operation is in flight. The zero
// value is ready to use.
type Group struct {
	mu      sync.Mutex
	current *call
}

// Do runs fn if no execution is in flight, otherwise waits for the in-flight
// execution. The returned shared flag is true when the caller joined an
// execution started by someone else. Waiters unblock on completion, on Reset,
// or when their own ctx is done; the underlying execution keeps running in the
// last case.
func (g *Group) Do(ctx context.Context, fn func() error) (shared bool, err error) {
	g.mu.Lock()
	if c := g.current; c != nil {
		g.mu.Unlock()
		select {
		case <-c.done:
			return true, c.err
		case <-c.abort:
			return true, c.abortErr
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}

	c := &call{
		done:  make(chan struct{}),
		abort: make(chan struct{}),
	}
	g.current = c
	g.mu.Unlock()

	c.err = fn()

	g.mu.Lock()
	if g.current == c {
		g.current = nil
	}
	g.mu.Unlock()
	close(c.done)

	return false, c.err
}

// InFlight reports whether an execution is currently running.
func (g *Group) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil
}

// Reset forcibly clears the in-flight marker and rejects all waiters with err
// (ErrReset when err is nil). The execution itself is not cancelled; its result
// is discarded for everyone except the goroutine running it. Use when the
// caller already knows the coordinator's state is stale.
func (g *Group) Reset(err error) {
	g.mu.Lock()
	c := g.current
	g.current = nil
	g.mu.Unlock()

	if c == nil {
		return
	}
	if err == nil {
		err = ErrReset
	}
	c.abortErr = err
	close(c.abort)
}
