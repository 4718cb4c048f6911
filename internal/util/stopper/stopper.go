// Copyright 2023 The Cockroach Authors
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

// Package stopper provides a small goroutine-lifecycle helper: a
// context that can launch tracked goroutines and be told to stop,
// waiting (up to a timeout) for all of them to exit cleanly.
package stopper

import (
	"context"
	"sync"
	"time"
)

// Context wraps a context.Context with a WaitGroup of tracked
// goroutines and a "stopping" signal that is distinct from
// cancellation: Stopping() fires when Stop is called, giving
// goroutines a chance to finish their current unit of work before the
// context is actually canceled.
type Context struct {
	context.Context
	cancel context.CancelFunc

	stopping chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	mu  sync.Mutex
	err error
}

// WithContext returns a new stopper.Context deriving from parent.
func WithContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	return &Context{Context: ctx, cancel: cancel, stopping: make(chan struct{})}
}

// Stopping returns a channel closed when Stop is first called.
func (c *Context) Stopping() <-chan struct{} {
	return c.stopping
}

// Go launches fn in a tracked goroutine. If fn returns a non-nil
// error, it is recorded (the first error wins) and the underlying
// context is canceled: operators themselves never spontaneously time
// out, but a genuine runtime fault does stop the world.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			if c.err == nil {
				c.err = err
			}
			c.mu.Unlock()
			c.cancel()
		}
	}()
}

// Stop signals Stopping and waits up to timeout for every launched
// goroutine to finish. It returns the first error recorded by Go, if
// any. Calling Stop more than once is safe; only the first call has
// effect on the signal, but every call waits.
func (c *Context) Stop(timeout time.Duration) error {
	c.once.Do(func() { close(c.stopping) })

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		c.cancel()
		<-done
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
