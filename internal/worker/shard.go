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

package worker

import (
	"github.com/cockroachdb/ivm/internal/circuit"
	"github.com/pkg/errors"
)

// Shard is one worker's private state: its copy of the circuit under
// construction plus the named endpoints (input accumulators, output
// collectors) the driver-side handles attach to. A Shard is only
// touched by its own worker during a tick; the endpoint maps are
// written at build time and read-only afterward.
type Shard struct {
	rt  *Runtime
	idx int

	builder *circuit.Builder
	circuit *circuit.Circuit

	endpoints map[string]any
}

func newShard(rt *Runtime, idx int) *Shard {
	return &Shard{
		rt:        rt,
		idx:       idx,
		builder:   circuit.NewBuilder(),
		endpoints: make(map[string]any),
	}
}

// Index returns the worker's zero-based identity.
func (s *Shard) Index() int { return s.idx }

// Builder exposes the shard's circuit builder so that callers can
// wire operator nodes directly.
func (s *Shard) Builder() *circuit.Builder { return s.builder }

// register attaches a named endpoint; names must be unique per shard.
func (s *Shard) register(name string, ep any) error {
	if _, dup := s.endpoints[name]; dup {
		return errors.Errorf("endpoint %q registered twice on worker %d", name, s.idx)
	}
	s.endpoints[name] = ep
	return nil
}

// seal finalizes the shard's circuit once the build function has
// wired every node.
func (s *Shard) seal() error {
	c, err := s.builder.Build()
	if err != nil {
		return err
	}
	s.circuit = c
	return nil
}

// endpointOf collects one named endpoint from every shard,
// type-asserting to E. It backs the driver-side handle constructors.
func endpointOf[E any](rt *Runtime, name string) ([]E, error) {
	out := make([]E, len(rt.shards))
	for i, s := range rt.shards {
		ep, ok := s.endpoints[name]
		if !ok {
			return nil, errors.Errorf("worker %d has no endpoint %q", i, name)
		}
		typed, ok := ep.(E)
		if !ok {
			return nil, errors.Errorf("endpoint %q has unexpected type %T", name, ep)
		}
		out[i] = typed
	}
	return out, nil
}
