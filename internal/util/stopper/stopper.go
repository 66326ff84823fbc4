// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package stopper coordinates the graceful shutdown of the server's
// long-running goroutines.
package stopper

import (
	"context"
	"errors"
	"sync"
	"time"
)

type contextKey struct{}

// ErrStopped is reported by [context.Cause] after a clean stop.
var ErrStopped = errors.New("stopped")

// ErrGracePeriodExpired is reported by [context.Cause] when goroutines
// outlived the grace period of a Stop call.
var ErrGracePeriodExpired = errors.New("grace period expired")

// background never stops.
var background = &Context{
	delegate: context.Background(),
	stopping: make(chan struct{}),
}

// A Context owns a set of goroutines and the [context.Context] they
// run under. Unlike an errgroup, a failing goroutine does not cancel
// the context immediately; cancellation happens once Stop has been
// called and every owned goroutine has exited. Context implements
// [context.Context], so it threads through ordinary context plumbing
// and can be recovered with [From].
type Context struct {
	cancel   func(error)
	delegate context.Context
	parent   *Context
	stopping chan struct{}

	mu struct {
		sync.RWMutex
		count    int
		err      error
		stopping bool
	}
}

var _ context.Context = (*Context)(nil)

// Background returns a Context that cannot be stopped or canceled.
func Background() *Context { return background }

// From recovers the Context owning the chain, or [Background] when
// there is none.
func From(ctx context.Context) *Context {
	if s, ok := ctx.(*Context); ok {
		return s
	}
	if s := ctx.Value(contextKey{}); s != nil {
		return s.(*Context)
	}
	return Background()
}

// IsStopping reports whether the Context owning the chain is shutting
// down.
func IsStopping(ctx context.Context) bool {
	return From(ctx).IsStopping()
}

// WithContext creates a new Context below the given context. Canceling
// the parent, or stopping an enclosing Context, stops the new one.
func WithContext(ctx context.Context) *Context {
	parent := From(ctx)

	ctx, cancel := context.WithCancelCause(ctx)
	s := &Context{
		cancel:   cancel,
		delegate: ctx,
		parent:   parent,
		stopping: make(chan struct{}),
	}

	// Convert a parent stop or cancellation into a local Stop so the
	// notification channels always close.
	go func() {
		select {
		case <-parent.Stopping():
		case <-s.Done():
		}
		s.Stop(0)
	}()
	return s
}

// Deadline implements [context.Context].
func (s *Context) Deadline() (deadline time.Time, ok bool) { return s.delegate.Deadline() }

// Done implements [context.Context]. The channel closes once Stop has
// been called and all owned goroutines have exited, or immediately if
// the parent context is canceled.
func (s *Context) Done() <-chan struct{} { return s.delegate.Done() }

// Err implements [context.Context].
func (s *Context) Err() error { return s.delegate.Err() }

// Go runs fn on a new goroutine. It reports false, without running fn,
// once Stop has been called. A non-nil return from fn triggers Stop;
// the first such error is surfaced by Wait.
func (s *Context) Go(fn func() error) (accepted bool) {
	if !s.apply(1) {
		return false
	}

	go func() {
		defer s.apply(-1)
		if err := fn(); err != nil {
			s.Stop(0)
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.mu.err == nil {
				s.mu.err = err
			}
		}
	}()
	return true
}

// IsStopping reports whether Stop has been called. See [Stopping] for
// the notification-based form.
func (s *Context) IsStopping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.stopping
}

// Stop begins a graceful shutdown: the Stopping channel closes at
// once, and the context is canceled after the owned goroutines exit.
// A non-zero gracePeriod force-cancels stragglers.
func (s *Context) Stop(gracePeriod time.Duration) {
	if s == background {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mu.stopping {
		return
	}
	s.mu.stopping = true
	close(s.stopping)

	if s.mu.count == 0 {
		s.cancel(ErrStopped)
	} else if gracePeriod > 0 {
		go func() {
			select {
			case <-time.After(gracePeriod):
				s.cancel(ErrGracePeriodExpired)
			case <-s.Done():
				// Clean exit: apply() canceled after the last
				// goroutine left.
			}
		}()
	}
}

// Stopping returns a channel closed when shutdown has been requested
// or the parent context canceled.
func (s *Context) Stopping() <-chan struct{} {
	return s.stopping
}

// Value implements [context.Context].
func (s *Context) Value(key any) any {
	if _, ok := key.(contextKey); ok {
		return s
	}
	return s.delegate.Value(key)
}

// Wait blocks until shutdown completes and returns the first error
// reported by any goroutine. Waiting on [Background] returns nil.
func (s *Context) Wait() error {
	if s == background {
		return nil
	}
	<-s.Done()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mu.err
}

// apply tracks the live goroutine count, returning true if the delta
// was accepted. Nested stoppers prolong their parents so an enclosing
// context is never canceled under a running child.
func (s *Context) apply(delta int) bool {
	if s == background {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mu.stopping && delta >= 0 {
		return false
	}
	if !s.parent.apply(delta) {
		return false
	}

	s.mu.count += delta
	if s.mu.count < 0 {
		panic("over-released")
	}
	if s.mu.count == 0 && s.mu.stopping {
		s.cancel(ErrStopped)
	}
	return true
}
