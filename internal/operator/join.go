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
	"github.com/cockroachdb/ivm/internal/cursor"
	"github.com/cockroachdb/ivm/internal/trace"
	"github.com/cockroachdb/ivm/internal/zset"
)

// Join is the incremental equi-join of two indexed streams sharing a
// key type:
//
//	ΔOut = (ΔL ⋈ R*) + (L*_prev ⋈ ΔR)
//
// where L*_prev is the left trace before ingesting ΔL and R* is the
// right trace after ingesting ΔR, so that each update is counted
// exactly once. Matches are emitted as Pair values, weights multiply.
type Join[K algebra.Ordered[K], L algebra.Ordered[L], R algebra.Ordered[R]] struct {
	left  *trace.Spine[K, L, algebra.NestedTime]
	right *trace.Spine[K, R, algebra.NestedTime]
	tick  uint64
}

// NewJoin returns a Join with two empty traces.
func NewJoin[K algebra.Ordered[K], L algebra.Ordered[L], R algebra.Ordered[R]]() *Join[K, L, R] {
	return &Join[K, L, R]{
		left:  trace.New[K, L, algebra.NestedTime](),
		right: trace.New[K, R, algebra.NestedTime](),
	}
}

// Step ingests one tick's deltas from both sides and returns the
// change in the join's output.
func (op *Join[K, L, R]) Step(dl Stream[K, L], dr Stream[K, R]) Stream[K, Pair[L, R]] {
	lower, upper := nextTick(&op.tick)
	out := zset.NewBatcher[K, Pair[L, R], algebra.FlatTime]()

	// L*_prev ⋈ ΔR probes the left trace before ΔL lands in it.
	probeInto(out, dr, op.left.Cursor(), func(r R, l L) Pair[L, R] {
		return Pair[L, R]{L: l, R: r}
	})

	op.right.Insert(stampNested(dr, lower, upper))

	// ΔL ⋈ R* sees the right trace with ΔR already applied.
	probeInto(out, dl, op.right.Cursor(), func(l L, r R) Pair[L, R] {
		return Pair[L, R]{L: l, R: r}
	})

	op.left.Insert(stampNested(dl, lower, upper))

	fuel := fuelFor(dl.Len() + dr.Len())
	op.left.Exert(&fuel)
	op.right.Exert(&fuel)

	f := flatFrontier()
	return out.Seal(f, f)
}

// probeInto scans the delta's keys in order, seeks the opposing trace
// cursor to each, and emits the cross product of values at matching
// keys with multiplied weights. The trace cursor advances
// monotonically because the delta's keys are sorted, so a whole tick
// costs one forward pass over each side.
func probeInto[K algebra.Ordered[K], A algebra.Ordered[A], B algebra.Ordered[B], P algebra.Ordered[P]](
	out *zset.Batcher[K, P, algebra.FlatTime],
	delta *zset.Batch[K, A, algebra.FlatTime],
	probe cursor.Cursor[K, B, algebra.NestedTime],
	pair func(a A, b B) P,
) {
	dc := cursor.Over(delta)
	for dc.KeyValid() {
		probe.SeekKey(dc.Key())
		if !probe.KeyValid() {
			return
		}
		if probe.Key().CompareTo(dc.Key()) == 0 {
			for dc.ValValid() {
				a, aw := dc.Val(), dc.Weight()
				probe.RewindVals()
				for probe.ValValid() {
					bw := probe.Weight()
					if !bw.IsZero() {
						out.Add(zset.Entry[K, P, algebra.FlatTime]{
							Item:   zset.ItemFrom(dc.Key(), pair(a, probe.Val())),
							Weight: aw.Scale(bw),
						})
					}
					probe.StepVal()
				}
				dc.StepVal()
			}
		}
		dc.StepKey()
	}
}

// Dirty reports whether either trace has unconsumed work.
func (op *Join[K, L, R]) Dirty() bool { return op.left.Dirty() || op.right.Dirty() }

// ClearDirtyFlag resets both traces' dirty flags.
func (op *Join[K, L, R]) ClearDirtyFlag() {
	op.left.ClearDirtyFlag()
	op.right.ClearDirtyFlag()
}
