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

package cursor

import (
	"sort"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
)

// BatchCursor navigates a single zset.Batch's sorted rows. Seeks use
// a galloping search (exponential probe followed by a bounded binary
// search) so that repeated small seeks, the hot path of every
// operator kernel, cost close to O(1) when the target is near the
// current position and O(log n) in the worst case.
type BatchCursor[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	entries []zset.Entry[K, V, T]

	keyStart, keyEnd int
	valStart, valEnd int
}

var _ Cursor[zset.IntKey, algebra.Unit, algebra.NestedTime] = (*BatchCursor[zset.IntKey, algebra.Unit, algebra.NestedTime])(nil)

// Over returns a cursor positioned at the start of b.
func Over[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](b *zset.Batch[K, V, T]) *BatchCursor[K, V, T] {
	c := &BatchCursor[K, V, T]{entries: b.Entries()}
	c.RewindKeys()
	return c
}

func (c *BatchCursor[K, V, T]) KeyValid() bool { return c.keyStart < len(c.entries) }
func (c *BatchCursor[K, V, T]) ValValid() bool { return c.KeyValid() && c.valStart < c.keyEnd }

func (c *BatchCursor[K, V, T]) Key() K { return c.entries[c.keyStart].Key }
func (c *BatchCursor[K, V, T]) Val() V { return c.entries[c.valStart].Val }

// keyBoundary returns the index of the first entry at or after start
// whose Key differs from entries[start].Key.
func (c *BatchCursor[K, V, T]) keyBoundary(start int) int {
	if start >= len(c.entries) {
		return start
	}
	key := c.entries[start].Key
	n := len(c.entries) - start
	return start + gallop(n, func(i int) bool {
		return c.entries[start+i].Key.CompareTo(key) != 0
	})
}

// valBoundary returns the index of the first entry at or after start
// (bounded by end) whose Val differs from entries[start].Val.
func (c *BatchCursor[K, V, T]) valBoundary(start, end int) int {
	if start >= end {
		return start
	}
	val := c.entries[start].Val
	n := end - start
	return start + gallop(n, func(i int) bool {
		return c.entries[start+i].Val.CompareTo(val) != 0
	})
}

func (c *BatchCursor[K, V, T]) StepKey() {
	c.keyStart = c.keyEnd
	c.keyEnd = c.keyBoundary(c.keyStart)
	c.RewindVals()
}

func (c *BatchCursor[K, V, T]) StepVal() {
	c.valStart = c.valEnd
	c.valEnd = c.valBoundary(c.valStart, c.keyEnd)
}

func (c *BatchCursor[K, V, T]) SeekKey(k K) {
	n := len(c.entries) - c.keyStart
	idx := c.keyStart + gallop(n, func(i int) bool {
		return c.entries[c.keyStart+i].Key.CompareTo(k) >= 0
	})
	c.keyStart = idx
	c.keyEnd = c.keyBoundary(c.keyStart)
	c.RewindVals()
}

func (c *BatchCursor[K, V, T]) SeekVal(v V) {
	if !c.KeyValid() {
		return
	}
	n := c.keyEnd - c.valStart
	idx := c.valStart + gallop(n, func(i int) bool {
		return c.entries[c.valStart+i].Val.CompareTo(v) >= 0
	})
	c.valStart = idx
	c.valEnd = c.valBoundary(c.valStart, c.keyEnd)
}

func (c *BatchCursor[K, V, T]) RewindKeys() {
	c.keyStart = 0
	c.keyEnd = c.keyBoundary(0)
	c.RewindVals()
}

func (c *BatchCursor[K, V, T]) RewindVals() {
	c.valStart = c.keyStart
	c.valEnd = c.valBoundary(c.keyStart, c.keyEnd)
}

func (c *BatchCursor[K, V, T]) MapTimes(f func(t T, w algebra.Weight)) {
	if !c.ValValid() {
		return
	}
	for i := c.valStart; i < c.valEnd; i++ {
		f(c.entries[i].Time, c.entries[i].Weight)
	}
}

func (c *BatchCursor[K, V, T]) MapTimesThrough(upper zset.Antichain[T], f func(t T, w algebra.Weight)) {
	if !c.ValValid() {
		return
	}
	for i := c.valStart; i < c.valEnd; i++ {
		if dominatedBy(upper, c.entries[i].Time) {
			f(c.entries[i].Time, c.entries[i].Weight)
		}
	}
}

// dominatedBy reports whether t <= every element of upper. An empty
// antichain (no elements) is treated as "no restriction" since it
// denotes the unbounded frontier used by operators that have not yet
// been given an explicit cut-off.
func dominatedBy[T algebra.LatticeOrdered[T]](upper zset.Antichain[T], t T) bool {
	if upper.IsEmpty() {
		return true
	}
	for _, e := range upper.Elements() {
		if !t.LessEqual(e) {
			return false
		}
	}
	return true
}

func (c *BatchCursor[K, V, T]) Weight() algebra.Weight {
	var w algebra.Weight
	c.MapTimes(func(_ T, weight algebra.Weight) { w = w.Add(weight) })
	return w
}

// LastKey implements LastKeySeeker.
func (c *BatchCursor[K, V, T]) LastKey() (k K, ok bool) {
	if len(c.entries) == 0 {
		return k, false
	}
	return c.entries[len(c.entries)-1].Key, true
}

// gallop returns the smallest i in [0, n) such that pred(i) holds,
// assuming pred is monotonic (false,...,false,true,...,true), or n if
// pred never holds. It probes forward exponentially before narrowing
// with a bounded binary search, keeping SeekKey/SeekVal at O(log n)
// worst case.
func gallop(n int, pred func(int) bool) int {
	if n == 0 {
		return 0
	}
	hi := 1
	for hi < n && !pred(hi-1) {
		hi *= 2
	}
	lo := hi / 2
	if hi > n {
		hi = n
	}
	if lo > hi {
		lo = hi
	}
	return lo + sort.Search(hi-lo, func(i int) bool { return pred(lo + i) })
}
