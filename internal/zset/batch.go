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

import "github.com/cockroachdb/ivm/internal/algebra"

// Item is a batch's row shape: either a bare key, for un-indexed
// Z-sets (instantiate V as algebra.Unit), or a (key, value) pair for
// indexed Z-sets. ItemFrom is the single helper that unifies
// construction of both shapes.
type Item[K, V any] struct {
	Key K
	Val V
}

// ItemFrom constructs an Item from a key and a value. For un-indexed
// Z-sets, callers pass algebra.Unit{} as v.
func ItemFrom[K, V any](k K, v V) Item[K, V] {
	return Item[K, V]{Key: k, Val: v}
}

// Entry is one (key, value, time, weight) row of a batch.
type Entry[K, V any, T algebra.LatticeOrdered[T]] struct {
	Item[K, V]
	Time   T
	Weight algebra.Weight
}

// Batch is an immutable, sorted snapshot of weighted, timed tuples,
// grouped first by key and then by value, bounded by a time interval
// [Lower, Upper). The assemblers (Builder, Batcher) uphold the batch
// invariants: all times t satisfy Lower <= t and t is not dominated
// by Upper; within one (key, value) pair times are unique; rows with
// zero weight are omitted.
type Batch[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	entries []Entry[K, V, T]
	lower   Antichain[T]
	upper   Antichain[T]
}

// Len returns the number of (key, value, time, weight) rows.
func (b *Batch[K, V, T]) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// IsEmpty reports whether the batch carries no rows.
func (b *Batch[K, V, T]) IsEmpty() bool {
	return b.Len() == 0
}

// Entries exposes the batch's rows in sorted (key, value, time)
// order. Callers must not mutate the returned slice; cursors and
// mergers hold references into it.
func (b *Batch[K, V, T]) Entries() []Entry[K, V, T] {
	if b == nil {
		return nil
	}
	return b.entries
}

// Lower returns the batch's lower time frontier.
func (b *Batch[K, V, T]) Lower() Antichain[T] {
	return b.lower
}

// Upper returns the batch's upper time frontier.
func (b *Batch[K, V, T]) Upper() Antichain[T] {
	return b.upper
}

// Empty returns the empty batch with the given interval, used as the
// identity element when summing a sequence of batches and as the
// placeholder output of operators that have nothing to emit on a
// given tick.
func Empty[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](lower, upper Antichain[T]) *Batch[K, V, T] {
	return &Batch[K, V, T]{lower: lower, upper: upper}
}

// Sum returns a new batch equal to the pointwise addition of a and b:
// the multiset union of their rows, with weights at matching (key,
// value, time) triples combined and zero-weight results dropped. The
// two batches' intervals must be identical; Sum is used to merge two
// views of the *same* logical window (e.g. while verifying
// incrementalization correctness), not to splice adjacent intervals —
// that is the trace's job.
func Sum[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](a, b *Batch[K, V, T]) *Batch[K, V, T] {
	bb := NewBatcher[K, V, T]()
	bb.AddBatch(a)
	bb.AddBatch(b)
	return bb.Seal(a.lower, a.upper)
}
