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

// Package operator implements the incremental kernels:
// map/filter/mapindex, integrate/delta, incremental join, distinct,
// linear aggregate, and the partitioned rolling window aggregate.
//
// Every operator's external edge carries a Stream: a Z-set whose time
// axis is algebra.FlatTime, the unit lattice for flat circuits —
// between operators there is no visible time dimension, only "the
// change this tick." Stateful operators
// (Integrate, Join, Distinct, Aggregate, Window) keep their own
// private trace.Spine indexed by algebra.NestedTime, where Epoch is
// the operator's own tick counter, to get amortized merging and
// seek-based probing; they collapse back to FlatTime whenever they
// emit.
package operator

import (
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
)

// Stream is the type every operator edge carries.
type Stream[K algebra.Ordered[K], V algebra.Ordered[V]] = *zset.Batch[K, V, algebra.FlatTime]

// flatFrontier is the trivial single-point antichain every Stream
// batch uses as both its lower and upper bound.
func flatFrontier() zset.Antichain[algebra.FlatTime] {
	return zset.NewAntichain(algebra.FlatTime{})
}

// emptyStream returns a Stream with no rows over the flat frontier.
func emptyStream[K algebra.Ordered[K], V algebra.Ordered[V]]() Stream[K, V] {
	f := flatFrontier()
	return zset.Empty[K, V, algebra.FlatTime](f, f)
}

// CollapseTime projects away a batch's time axis, summing weight
// across every time recorded at each (key, value) and dropping
// entries whose net weight is zero. This is how a stateful operator's
// internally-maintained NestedTime trace becomes an externally
// visible Stream.
func CollapseTime[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](b *zset.Batch[K, V, T]) Stream[K, V] {
	batcher := zset.NewBatcher[K, V, algebra.FlatTime]()
	for _, e := range b.Entries() {
		batcher.Add(zset.Entry[K, V, algebra.FlatTime]{Item: e.Item, Time: algebra.FlatTime{}, Weight: e.Weight})
	}
	f := flatFrontier()
	return batcher.Seal(f, f)
}

// stampNested assigns every row of a flat delta the same NestedTime,
// the private timestamp a stateful operator uses to keep one tick's
// rows distinguishable from the next inside its own trace.
func stampNested[K algebra.Ordered[K], V algebra.Ordered[V]](delta Stream[K, V], lower, upper algebra.NestedTime) *zset.Batch[K, V, algebra.NestedTime] {
	builder := zset.NewBuilder[K, V, algebra.NestedTime](delta.Len())
	builder.Strict = false
	for _, e := range delta.Entries() {
		builder.Push(zset.Entry[K, V, algebra.NestedTime]{Item: e.Item, Time: lower, Weight: e.Weight})
	}
	return builder.Done(zset.NewAntichain(lower), zset.NewAntichain(upper))
}

// diffFlat computes new minus old at the (key, value) level, ignoring
// time entirely (both sides already carry algebra.FlatTime). It is
// the concrete form of the "delta" operator; a nil old is treated as
// empty.
func diffFlat[K algebra.Ordered[K], V algebra.Ordered[V]](old, new Stream[K, V]) Stream[K, V] {
	b := zset.NewBatcher[K, V, algebra.FlatTime]()
	if old != nil {
		for _, e := range old.Entries() {
			e.Weight = e.Weight.Negate()
			b.Add(e)
		}
	}
	if new != nil {
		b.AddBatch(new)
	}
	f := flatFrontier()
	return b.Seal(f, f)
}

// nextTick hands back the [lower, upper) NestedTime interval for an
// operator's current tick and advances its counter.
func nextTick(tick *uint64) (lower, upper algebra.NestedTime) {
	lower = algebra.NestedTime{Epoch: *tick}
	upper = algebra.NestedTime{Epoch: *tick + 1}
	*tick++
	return lower, upper
}

// fuelFor sizes a tick's merge-work grant proportional to the input
// batch, so background merging neither unboundedly accumulates nor
// spikes latency.
func fuelFor(n int) int { return 2*n + 1 }
