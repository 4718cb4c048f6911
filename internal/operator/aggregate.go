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
	"math"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/cursor"
	"github.com/cockroachdb/ivm/internal/trace"
	"github.com/cockroachdb/ivm/internal/zset"
)

// Aggregation describes a linear aggregate: Lift maps one value (with
// its multiplicity) into the accumulator monoid, Combine is the
// monoid's addition with Zero as its identity, and Finalize maps the
// accumulated element to the output value. Linearity means Lift must
// distribute over weight: Lift(v, a+b) = Combine(Lift(v, a),
// Lift(v, b)).
type Aggregation[V any, A any, O algebra.Ordered[O]] struct {
	Zero     A
	Lift     func(v V, w algebra.Weight) A
	Combine  func(a, b A) A
	Finalize func(acc A) O
}

// Aggregate applies a linear aggregation to an indexed stream, keyed
// by partition key. The input trace holds every row ingested so far,
// and a touched key's aggregate is recomputed from it; a second trace
// remembers the previous tick's outputs so that only changed keys are
// re-emitted, as a retraction of the prior output plus an insertion of
// the new one.
type Aggregate[K algebra.Ordered[K], V algebra.Ordered[V], A any, O algebra.Ordered[O]] struct {
	agg    Aggregation[V, A, O]
	input  *trace.Spine[K, V, algebra.NestedTime]
	output *trace.Spine[K, O, algebra.NestedTime]
	tick   uint64
}

// NewAggregate returns an Aggregate operator with empty traces.
func NewAggregate[K algebra.Ordered[K], V algebra.Ordered[V], A any, O algebra.Ordered[O]](
	agg Aggregation[V, A, O],
) *Aggregate[K, V, A, O] {
	return &Aggregate[K, V, A, O]{
		agg:    agg,
		input:  trace.New[K, V, algebra.NestedTime](),
		output: trace.New[K, O, algebra.NestedTime](),
	}
}

// Step ingests delta and returns the change in the per-key aggregate:
// for every key the delta touches, the prior output (if any) is
// retracted and the freshly computed aggregate is inserted. A key
// whose rows have all been retracted emits only the retraction, the
// way a SQL GROUP BY row disappears with its group.
func (op *Aggregate[K, V, A, O]) Step(delta Stream[K, V]) Stream[K, O] {
	lower, upper := nextTick(&op.tick)
	op.input.Insert(stampNested(delta, lower, upper))
	fuel := fuelFor(delta.Len())
	op.input.Exert(&fuel)

	out := zset.NewBatcher[K, O, algebra.FlatTime]()
	in := op.input.Cursor()
	old := op.output.Cursor()

	dc := cursor.Over(delta)
	var prevKey K
	first := true
	for dc.KeyValid() {
		k := dc.Key()
		if !first && k.CompareTo(prevKey) == 0 {
			dc.StepKey()
			continue
		}
		first, prevKey = false, k

		// Retract whatever this key reported last tick.
		old.SeekKey(k)
		if old.KeyValid() && old.Key().CompareTo(k) == 0 {
			for old.ValValid() {
				if w := old.Weight(); !w.IsZero() {
					out.Add(zset.Entry[K, O, algebra.FlatTime]{
						Item:   zset.ItemFrom(k, old.Val()),
						Weight: w.Negate(),
					})
				}
				old.StepVal()
			}
		}

		// Recompute the key's aggregate from the integrated input.
		in.SeekKey(k)
		if in.KeyValid() && in.Key().CompareTo(k) == 0 {
			acc := op.agg.Zero
			any := false
			for in.ValValid() {
				if w := in.Weight(); !w.IsZero() {
					acc = op.agg.Combine(acc, op.agg.Lift(in.Val(), w))
					any = true
				}
				in.StepVal()
			}
			if any {
				out.Add(zset.Entry[K, O, algebra.FlatTime]{
					Item:   zset.ItemFrom(k, op.agg.Finalize(acc)),
					Weight: 1,
				})
			}
		}
		dc.StepKey()
	}

	f := flatFrontier()
	result := out.Seal(f, f)
	op.output.Insert(stampNested(result, lower, upper))
	return result
}

// Dirty reports whether the operator has unconsumed work.
func (op *Aggregate[K, V, A, O]) Dirty() bool { return op.input.Dirty() || op.output.Dirty() }

// ClearDirtyFlag resets the operator's dirty flags.
func (op *Aggregate[K, V, A, O]) ClearDirtyFlag() {
	op.input.ClearDirtyFlag()
	op.output.ClearDirtyFlag()
}

// Rolling sums saturate at the int64 extremes rather than widening to
// a larger numeric type; the aggregates below all funnel their
// payload arithmetic through these helpers.

func satAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

func satMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if (a == math.MinInt64 && b == -1) || (a == -1 && b == math.MinInt64) {
		return math.MaxInt64
	}
	p := a * b
	if p/b != a {
		if (a > 0) == (b > 0) {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return p
}

// SumCount is the accumulator for averages: a running (sum, count)
// pair combined coordinatewise.
type SumCount struct {
	Sum   int64
	Count int64
}

// Sum aggregates int64-valued rows into their weighted total.
func Sum[V ~int64]() Aggregation[V, int64, zset.IntKey] {
	return Aggregation[V, int64, zset.IntKey]{
		Zero:     0,
		Lift:     func(v V, w algebra.Weight) int64 { return satMul(int64(v), int64(w)) },
		Combine:  satAdd,
		Finalize: func(acc int64) zset.IntKey { return zset.IntKey(acc) },
	}
}

// Count aggregates rows into their total multiplicity. Finalizing the
// zero accumulator yields 0, but Aggregate emits no row at all for a
// key whose rows have all been retracted.
func Count[V any]() Aggregation[V, int64, zset.IntKey] {
	return Aggregation[V, int64, zset.IntKey]{
		Zero:     0,
		Lift:     func(_ V, w algebra.Weight) int64 { return int64(w) },
		Combine:  satAdd,
		Finalize: func(acc int64) zset.IntKey { return zset.IntKey(acc) },
	}
}
