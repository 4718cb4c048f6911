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

package zset

import (
	"sort"

	"github.com/cockroachdb/ivm/internal/algebra"
)

// Batcher consumes rows and whole batches in any order, then sorts,
// consolidates (summing weights that collide on the same (key, value,
// time) triple), and drops zero-weight results. Seal yields the
// resulting Batch and resets the Batcher for reuse.
type Batcher[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	pending []Entry[K, V, T]
}

// NewBatcher returns an empty Batcher.
func NewBatcher[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]]() *Batcher[K, V, T] {
	return &Batcher[K, V, T]{}
}

// Add appends a single row.
func (b *Batcher[K, V, T]) Add(e Entry[K, V, T]) {
	b.pending = append(b.pending, e)
}

// AddBatch appends every row of an existing batch.
func (b *Batcher[K, V, T]) AddBatch(src *Batch[K, V, T]) {
	b.pending = append(b.pending, src.Entries()...)
}

// Seal sorts and consolidates the accumulated rows into a Batch with
// the given time interval, then clears the Batcher's internal buffer.
func (b *Batcher[K, V, T]) Seal(lower, upper Antichain[T]) *Batch[K, V, T] {
	consolidated := Consolidate(b.pending)
	b.pending = nil
	return &Batch[K, V, T]{entries: consolidated, lower: lower, upper: upper}
}

// Consolidate sorts rows into (key, value, time) order, sums weights
// that land on the same triple, and drops rows whose summed weight is
// zero. It is exported so that recede-to-frontier (which remaps times
// and must re-coalesce afterward) and the spine's merger can reuse the
// same consolidation logic the Batcher uses.
func Consolidate[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](rows []Entry[K, V, T]) []Entry[K, V, T] {
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		return compareEntries(rows[i], rows[j]) < 0
	})

	out := rows[:0:0]
	i := 0
	for i < len(rows) {
		j := i + 1
		w := rows[i].Weight
		for j < len(rows) && compareEntries(rows[i], rows[j]) == 0 {
			w = w.Add(rows[j].Weight)
			j++
		}
		if !w.IsZero() {
			e := rows[i]
			e.Weight = w
			out = append(out, e)
		}
		i = j
	}
	return out
}
