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

// Distinct maintains the indicator of the accumulated multiset:
// weight 1 where the accumulated weight is positive, absent
// otherwise. Each Step emits only the change in the indicator,
// computed by consulting the integrated trace at the previous step.
type Distinct[K algebra.Ordered[K], V algebra.Ordered[V]] struct {
	trace *trace.Spine[K, V, algebra.NestedTime]
	tick  uint64
}

// NewDistinct returns a Distinct operator with an empty trace.
func NewDistinct[K algebra.Ordered[K], V algebra.Ordered[V]]() *Distinct[K, V] {
	return &Distinct[K, V]{trace: trace.New[K, V, algebra.NestedTime]()}
}

// Step ingests delta and returns the change in the indicator.
func (op *Distinct[K, V]) Step(delta Stream[K, V]) Stream[K, V] {
	lower, upper := nextTick(&op.tick)
	out := zset.NewBatcher[K, V, algebra.FlatTime]()

	// Probe the pre-insert trace for each (key, value) touched by the
	// delta. Both cursors advance in the same sorted order, so the
	// probe is a single forward pass.
	prev := op.trace.Cursor()
	dc := cursor.Over(delta)
	for dc.KeyValid() {
		prev.SeekKey(dc.Key())
		keyPresent := prev.KeyValid() && prev.Key().CompareTo(dc.Key()) == 0
		for dc.ValValid() {
			var oldW algebra.Weight
			if keyPresent {
				prev.SeekVal(dc.Val())
				if prev.ValValid() && prev.Val().CompareTo(dc.Val()) == 0 {
					oldW = prev.Weight()
				}
			}
			newW := oldW.Add(dc.Weight())

			oldIn := oldW > 0
			newIn := newW > 0
			if oldIn != newIn {
				w := algebra.Weight(1)
				if oldIn {
					w = w.Negate()
				}
				out.Add(zset.Entry[K, V, algebra.FlatTime]{
					Item:   zset.ItemFrom(dc.Key(), dc.Val()),
					Weight: w,
				})
			}
			dc.StepVal()
		}
		dc.StepKey()
	}

	op.trace.Insert(stampNested(delta, lower, upper))
	fuel := fuelFor(delta.Len())
	op.trace.Exert(&fuel)

	f := flatFrontier()
	return out.Seal(f, f)
}

// Dirty reports whether the underlying trace has unconsumed work.
func (op *Distinct[K, V]) Dirty() bool { return op.trace.Dirty() }

// ClearDirtyFlag resets the underlying trace's dirty flag.
func (op *Distinct[K, V]) ClearDirtyFlag() { op.trace.ClearDirtyFlag() }
