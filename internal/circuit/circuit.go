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

// Package circuit contains the dataflow scheduler: a DAG of operator
// nodes advanced once per clock tick in topological order, with
// nested sub-circuits iterated to a fixed point behind a delay
// operator.
package circuit

import (
	"time"

	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// A Node is one operator position in a circuit. Its step function
// performs the operator's work for the current tick and reports
// whether non-empty work happened, which feeds the scheduler's
// fixed-point detection.
type Node struct {
	name  string
	step  func() (dirty bool, err error)
	deps  []*Node
	delay bool
	dirty bool
}

// Name returns the node's diagnostic label.
func (n *Node) Name() string { return n.name }

// Dirty reports whether the node performed non-empty work on the most
// recent pass.
func (n *Node) Dirty() bool { return n.dirty }

// backEdge records a cycle declared by the builder; it is legal only
// when it passes through a delay node.
type backEdge struct {
	from, to *Node
}

// Builder assembles a circuit. Nodes must be added after their
// dependencies, so the insertion order is already a topological
// order; cycles can only be introduced through explicit back-edges,
// which Build verifies are buffered by a delay.
type Builder struct {
	nodes     []*Node
	backEdges []backEdge
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends an operator node whose inputs come from deps. Every
// dependency must already belong to this builder.
func (b *Builder) Add(name string, step func() (bool, error), deps ...*Node) *Node {
	n := &Node{name: name, step: step, deps: deps}
	b.nodes = append(b.nodes, n)
	return n
}

// AddDelay appends a node marked as a one-tick buffer. Back-edges are
// legal only when they leave a delay node, which breaks the cycle
// across ticks.
func (b *Builder) AddDelay(name string, step func() (bool, error), deps ...*Node) *Node {
	n := b.Add(name, step, deps...)
	n.delay = true
	return n
}

// BackEdge declares that from feeds to, even though to was added
// first. Build rejects the circuit unless from is a delay node.
func (b *Builder) BackEdge(from, to *Node) {
	b.backEdges = append(b.backEdges, backEdge{from: from, to: to})
}

// Nested appends a sub-circuit node: each time the enclosing circuit
// reaches it, the inner circuit is ticked repeatedly until a full
// pass completes with every inner node clean, up to maxPasses. The
// inner circuit is assembled by f against a fresh Builder.
func (b *Builder) Nested(name string, maxPasses int, f func(nb *Builder), deps ...*Node) (*Node, error) {
	nb := NewBuilder()
	f(nb)
	inner, err := nb.Build()
	if err != nil {
		return nil, err
	}
	step := func() (bool, error) {
		anyDirty := false
		for pass := 0; ; pass++ {
			if pass >= maxPasses {
				return anyDirty, ivmerrors.NewSchedulerError(
					"nested circuit " + name + " did not reach a fixed point")
			}
			if err := inner.Tick(); err != nil {
				return anyDirty, err
			}
			if !inner.AnyDirty() {
				log.WithFields(log.Fields{
					"circuit": name,
					"passes":  pass + 1,
				}).Trace("nested circuit reached fixed point")
				return anyDirty, nil
			}
			anyDirty = true
		}
	}
	return b.Add(name, step, deps...), nil
}

// Build validates the assembled graph and returns the runnable
// circuit. The only structural error is a back-edge that does not
// pass through a delay.
func (b *Builder) Build() (*Circuit, error) {
	for _, e := range b.backEdges {
		if !e.from.delay {
			return nil, ivmerrors.NewSchedulerError(
				"cycle from " + e.from.name + " to " + e.to.name + " lacks a delay")
		}
	}
	return &Circuit{nodes: b.nodes}, nil
}

// Circuit is a runnable schedule of nodes in topological order.
type Circuit struct {
	nodes []*Node
	ticks uint64
}

// Tick advances every node once, in topological order. The first
// failing node aborts the tick; per the error contract the enclosing
// runtime poisons itself, so partially-applied ticks are never
// observed by a live circuit.
func (c *Circuit) Tick() error {
	start := time.Now()
	for _, n := range c.nodes {
		dirty, err := n.step()
		n.dirty = dirty
		if err != nil {
			circuitTickErrors.Inc()
			return errors.WithMessage(err, "node "+n.name)
		}
	}
	c.ticks++
	circuitTickDuration.Observe(time.Since(start).Seconds())
	return nil
}

// AnyDirty reports whether any node performed non-empty work during
// the most recent tick, then clears every node's flag. The
// read-and-clear pairing matches the fixed-point probe: each nested
// pass starts from a clean slate.
func (c *Circuit) AnyDirty() bool {
	any := false
	for _, n := range c.nodes {
		if n.dirty {
			any = true
			n.dirty = false
		}
	}
	return any
}

// Ticks returns the number of completed ticks.
func (c *Circuit) Ticks() uint64 { return c.ticks }
