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

// Package worker contains the multi-shard execution runtime: N
// workers running structurally identical copies of a circuit, input
// sharded by key hash, exchange over bounded channels, and a driver
// barrier around each tick.
package worker

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/util/stopper"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Routable is implemented by keys that can be sharded across workers.
// Hash64 must be a pure function of the key's value so that every
// record for one key lands on the same worker.
type Routable interface {
	Hash64() uint64
}

// Runtime drives N workers, each holding a structurally identical
// copy of the circuit. The driver's Step runs one tick on every
// worker in parallel and blocks until all of them complete.
type Runtime struct {
	cfg    *Config
	ctx    *stopper.Context
	shards []*Shard

	mu struct {
		sync.Mutex
		meshes   map[string]any
		poisoned error

		// abort is closed by the first worker fault of the current
		// tick, or by Kill; exchange sends and receives select on it
		// so that a failed tick cannot strand a peer worker in a
		// channel operation. A fresh channel is installed at the top
		// of every Step.
		abort       chan struct{}
		abortClosed bool
	}
}

// Build constructs a runtime: f is invoked once per worker to
// assemble that worker's copy of the circuit against its Shard. The
// supplied stopper context bounds the runtime's lifetime.
func Build(ctx *stopper.Context, cfg *Config, f func(s *Shard) error) (*Runtime, error) {
	if err := cfg.Preflight(); err != nil {
		return nil, err
	}
	rt := &Runtime{
		cfg:    cfg,
		ctx:    ctx,
		shards: make([]*Shard, cfg.Workers),
	}
	rt.mu.meshes = make(map[string]any)
	rt.mu.abort = make(chan struct{})

	for i := range rt.shards {
		rt.shards[i] = newShard(rt, i)
		if err := f(rt.shards[i]); err != nil {
			return nil, err
		}
	}
	for _, s := range rt.shards {
		if err := s.seal(); err != nil {
			return nil, err
		}
	}
	log.WithFields(log.Fields{"workers": cfg.Workers}).Debug("built circuit runtime")
	return rt, nil
}

// Workers returns the number of shards.
func (rt *Runtime) Workers() int { return len(rt.shards) }

// Step freezes every input accumulator, runs one tick across all
// workers in parallel, and blocks until every worker completes and
// outputs are assembled. On error the runtime is poisoned and every
// subsequent Step returns the same error without side effects.
func (rt *Runtime) Step() error {
	rt.mu.Lock()
	if err := rt.mu.poisoned; err != nil {
		rt.mu.Unlock()
		return err
	}
	// Install a fresh abort channel for this tick.
	rt.mu.abort = make(chan struct{})
	rt.mu.abortClosed = false
	rt.mu.Unlock()

	select {
	case <-rt.ctx.Stopping():
		return rt.poison(ivmerrors.NewRuntimeError("step after shutdown"))
	default:
	}

	start := time.Now()
	eg := &errgroup.Group{}
	for _, s := range rt.shards {
		s := s
		eg.Go(func() (err error) {
			// The first failing worker wakes any peer blocked in an
			// exchange channel operation; without this, Wait could
			// never return.
			defer func() {
				if r := recover(); r != nil {
					err = ivmerrors.NewRuntimeError(fmt.Sprintf("worker %d panicked: %v", s.idx, r))
				}
				if err != nil {
					rt.triggerAbort()
				}
			}()
			workerStart := time.Now()
			err = s.circuit.Tick()
			workerTickDuration.WithLabelValues(strconv.Itoa(s.idx)).
				Observe(time.Since(workerStart).Seconds())
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		workerTickErrors.Inc()
		return rt.poison(err)
	}
	stepDuration.Observe(time.Since(start).Seconds())
	return nil
}

// abortCh returns the abort channel for the tick in progress.
func (rt *Runtime) abortCh() <-chan struct{} {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.mu.abort
}

// triggerAbort closes the current tick's abort channel, at most once.
func (rt *Runtime) triggerAbort() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.mu.abortClosed {
		close(rt.mu.abort)
		rt.mu.abortClosed = true
	}
}

// Dirty reports whether any worker's circuit performed non-empty work
// during the most recent tick, clearing the flags it reads.
func (rt *Runtime) Dirty() bool {
	any := false
	for _, s := range rt.shards {
		if s.circuit.AnyDirty() {
			any = true
		}
	}
	return any
}

// Kill poisons the runtime and stops its background goroutines.
// In-progress ticks complete; once Kill returns, Step fails with the
// recorded error.
func (rt *Runtime) Kill() error {
	killErr := rt.poison(ivmerrors.NewRuntimeError("runtime killed"))
	if err := rt.ctx.Stop(rt.cfg.KillTimeout); err != nil {
		return err
	}
	// The poisoning error is the expected terminal state, not a
	// failure of Kill itself.
	var runtimeErr *ivmerrors.RuntimeError
	if errors.As(killErr, &runtimeErr) {
		return nil
	}
	return killErr
}

// poison records the first fault. The recorded error is sticky:
// later faults are dropped in favor of the first one. Poisoning does
// not interrupt a tick in flight; in-progress ticks complete (or
// fail on their own) before shutdown is observed.
func (rt *Runtime) poison(err error) error {
	rt.mu.Lock()
	if rt.mu.poisoned == nil {
		rt.mu.poisoned = err
		log.WithError(err).Warn("circuit runtime poisoned")
	}
	ret := rt.mu.poisoned
	rt.mu.Unlock()
	return ret
}

// mesh returns the named exchange mesh, constructing it on first use
// via build. All shards referencing one name share a single mesh.
func (rt *Runtime) mesh(name string, build func() any) any {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if m, ok := rt.mu.meshes[name]; ok {
		return m
	}
	m := build()
	rt.mu.meshes[name] = m
	return m
}
