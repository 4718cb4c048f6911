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
	"sync"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/circuit"
	"github.com/cockroachdb/ivm/internal/operator"
	"github.com/cockroachdb/ivm/internal/zset"
)

// RoutableKey is the constraint on keys crossing a worker boundary:
// ordered for batch assembly, routable for sharding.
type RoutableKey[K any] interface {
	algebra.Ordered[K]
	Routable
}

// accumulator buffers (record, weight) pushes destined for one
// worker until the next Step freezes them into an input batch.
type accumulator[K algebra.Ordered[K], V algebra.Ordered[V]] struct {
	mu      sync.Mutex
	pending []zset.Entry[K, V, algebra.FlatTime]
}

func (a *accumulator[K, V]) add(e zset.Entry[K, V, algebra.FlatTime]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = append(a.pending, e)
}

func (a *accumulator[K, V]) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = nil
}

// drain freezes the accumulated rows into a consolidated input batch.
func (a *accumulator[K, V]) drain() operator.Stream[K, V] {
	a.mu.Lock()
	pending := a.pending
	a.pending = nil
	a.mu.Unlock()

	b := zset.NewBatcher[K, V, algebra.FlatTime]()
	for _, e := range pending {
		b.Add(e)
	}
	f := zset.NewAntichain(algebra.FlatTime{})
	return b.Seal(f, f)
}

// collector remembers the most recent output batch a worker's circuit
// produced.
type collector[K algebra.Ordered[K], V algebra.Ordered[V]] struct {
	mu   sync.Mutex
	last operator.Stream[K, V]
}

func (c *collector[K, V]) set(s operator.Stream[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
}

func (c *collector[K, V]) get() operator.Stream[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Input wires a named input endpoint into a shard's circuit: the
// returned node drains the shard's accumulator at the top of each
// tick and publishes the frozen batch on the returned port.
func Input[K RoutableKey[K], V algebra.Ordered[V]](
	s *Shard, name string,
) (*circuit.Node, *circuit.Port[operator.Stream[K, V]], error) {
	acc := &accumulator[K, V]{}
	if err := s.register(name, acc); err != nil {
		return nil, nil, err
	}
	port := &circuit.Port[operator.Stream[K, V]]{}
	node := s.Builder().Add("input-"+name, func() (bool, error) {
		batch := acc.drain()
		port.Set(batch)
		return !batch.IsEmpty(), nil
	})
	return node, port, nil
}

// Output wires a named output endpoint into a shard's circuit: the
// returned node snapshots the port written by src at the end of each
// tick, making it visible to the driver-side OutputHandle.
func Output[K algebra.Ordered[K], V algebra.Ordered[V]](
	s *Shard, name string, src *circuit.Node, port *circuit.Port[operator.Stream[K, V]],
) (*circuit.Node, error) {
	col := &collector[K, V]{}
	if err := s.register(name, col); err != nil {
		return nil, err
	}
	node := s.Builder().Add("output-"+name, func() (bool, error) {
		batch := port.Get()
		col.set(batch)
		return false, nil
	}, src)
	return node, nil
}

// InputHandle is the driver's write side of a named input: pushes are
// sharded by key hash so that all records for one key land on the
// same worker.
type InputHandle[K RoutableKey[K], V algebra.Ordered[V]] struct {
	shards []*accumulator[K, V]
}

// InputOf resolves the driver-side handle for the named input.
func InputOf[K RoutableKey[K], V algebra.Ordered[V]](rt *Runtime, name string) (*InputHandle[K, V], error) {
	shards, err := endpointOf[*accumulator[K, V]](rt, name)
	if err != nil {
		return nil, err
	}
	return &InputHandle[K, V]{shards: shards}, nil
}

// Push adds one weighted record to the accumulator of the worker
// owning k.
func (h *InputHandle[K, V]) Push(k K, v V, w algebra.Weight) {
	idx := int(k.Hash64() % uint64(len(h.shards)))
	h.shards[idx].add(zset.Entry[K, V, algebra.FlatTime]{
		Item:   zset.ItemFrom(k, v),
		Weight: w,
	})
}

// Append pushes every row of a batch.
func (h *InputHandle[K, V]) Append(batch operator.Stream[K, V]) {
	for _, e := range batch.Entries() {
		h.Push(e.Key, e.Val, e.Weight)
	}
}

// Clear discards all pending pushes that have not yet been frozen by
// a Step.
func (h *InputHandle[K, V]) Clear() {
	for _, a := range h.shards {
		a.clear()
	}
}

// OutputHandle is the driver's read side of a named output.
type OutputHandle[K algebra.Ordered[K], V algebra.Ordered[V]] struct {
	shards []*collector[K, V]
}

// OutputOf resolves the driver-side handle for the named output.
func OutputOf[K algebra.Ordered[K], V algebra.Ordered[V]](rt *Runtime, name string) (*OutputHandle[K, V], error) {
	shards, err := endpointOf[*collector[K, V]](rt, name)
	if err != nil {
		return nil, err
	}
	return &OutputHandle[K, V]{shards: shards}, nil
}

// Consolidate assembles the latest per-worker output batches into a
// single consolidated batch.
func (h *OutputHandle[K, V]) Consolidate() operator.Stream[K, V] {
	b := zset.NewBatcher[K, V, algebra.FlatTime]()
	for _, c := range h.shards {
		if last := c.get(); last != nil {
			b.AddBatch(last)
		}
	}
	f := zset.NewAntichain(algebra.FlatTime{})
	return b.Seal(f, f)
}
