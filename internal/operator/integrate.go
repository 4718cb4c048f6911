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

package operator

import (
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/trace"
)

// Integrate maintains a trace of every input received so far and
// emits the cumulative sum on each step.
type Integrate[K algebra.Ordered[K], V algebra.Ordered[V]] struct {
	trace *trace.Spine[K, V, algebra.NestedTime]
	tick  uint64
}

// NewIntegrate returns an Integrate operator with an empty trace.
func NewIntegrate[K algebra.Ordered[K], V algebra.Ordered[V]]() *Integrate[K, V] {
	return &Integrate[K, V]{trace: trace.New[K, V, algebra.NestedTime]()}
}

// Step ingests delta and returns the cumulative sum of every delta
// ingested so far.
func (op *Integrate[K, V]) Step(delta Stream[K, V]) Stream[K, V] {
	lower, upper := nextTick(&op.tick)
	op.trace.Insert(stampNested(delta, lower, upper))

	fuel := fuelFor(delta.Len())
	op.trace.Exert(&fuel)

	// Integrate's output is defined as the full cumulative sum, not a
	// probe against the trace, so unlike Join/Distinct/Aggregate it
	// cannot avoid forcing Consolidate every tick.
	cumulative := op.trace.Consolidate()
	return CollapseTime(cumulative)
}

// Trace exposes the operator's integrated state, letting callers
// snapshot or restore the materialization through the persist
// feature.
func (op *Integrate[K, V]) Trace() *trace.Spine[K, V, algebra.NestedTime] { return op.trace }

// Dirty reports whether the underlying trace has unconsumed work.
func (op *Integrate[K, V]) Dirty() bool { return op.trace.Dirty() }

// ClearDirtyFlag resets the underlying trace's dirty flag.
func (op *Integrate[K, V]) ClearDirtyFlag() { op.trace.ClearDirtyFlag() }

// Delta is the inverse of Integrate: output = input - input-delayed-
// one-step, computed at the (key, value) level with the time axis
// ignored.
type Delta[K algebra.Ordered[K], V algebra.Ordered[V]] struct {
	prev Stream[K, V]
}

// NewDelta returns a Delta operator with no prior observation.
func NewDelta[K algebra.Ordered[K], V algebra.Ordered[V]]() *Delta[K, V] {
	return &Delta[K, V]{}
}

// Step ingests the current cumulative value and returns the change
// since the previous call.
func (op *Delta[K, V]) Step(cumulative Stream[K, V]) Stream[K, V] {
	out := diffFlat(op.prev, cumulative)
	op.prev = cumulative
	return out
}
