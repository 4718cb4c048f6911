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

// Package trace implements the spine: an LSM-style organization of
// batches with lazy, fuelled merging and recede-to-frontier
// compaction.
package trace

import "github.com/cockroachdb/ivm/internal/zset"
import "github.com/cockroachdb/ivm/internal/algebra"

// Merger combines two adjacent batches progressively: NewMerger allocates
// scratch proportional to len(a)+len(b); Work performs at most fuel
// comparisons/emits per call, so that a single tick never pays the
// full cost of merging two large batches; Done may only be called
// once the merger has exhausted both inputs. Readers that acquire a
// cursor while a merge is in progress keep observing the pre-merge
// pair (a and b are never mutated), so progressive merging is
// invisible to them.
type Merger[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	origA, origB *zset.Batch[K, V, T]
	a, b         []zset.Entry[K, V, T]
	ai, bi       int
	out          []zset.Entry[K, V, T]

	lower, upper zset.Antichain[T]
	finished     bool
}

// NewMerger allocates a merger for a and b, whose intervals must be
// adjacent (a.Upper() == b.Lower()); the resulting batch's interval is
// their union, [a.Lower(), b.Upper()).
func NewMerger[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](a, b *zset.Batch[K, V, T]) *Merger[K, V, T] {
	return &Merger[K, V, T]{
		origA: a,
		origB: b,
		a:     a.Entries(),
		b:     b.Entries(),
		out:   make([]zset.Entry[K, V, T], 0, a.Len()+b.Len()),
		lower: a.Lower(),
		upper: b.Upper(),
	}
}

// Work performs up to *fuel comparisons/emits, decrementing *fuel by
// the amount actually consumed, and reports whether the merge has
// finished (both inputs exhausted).
func (m *Merger[K, V, T]) Work(fuel *int) bool {
	for *fuel > 0 && (m.ai < len(m.a) || m.bi < len(m.b)) {
		*fuel--
		switch {
		case m.ai >= len(m.a):
			m.out = append(m.out, m.b[m.bi])
			m.bi++
		case m.bi >= len(m.b):
			m.out = append(m.out, m.a[m.ai])
			m.ai++
		default:
			switch c := zset.Compare(m.a[m.ai], m.b[m.bi]); {
			case c < 0:
				m.out = append(m.out, m.a[m.ai])
				m.ai++
			case c > 0:
				m.out = append(m.out, m.b[m.bi])
				m.bi++
			default:
				w := m.a[m.ai].Weight.Add(m.b[m.bi].Weight)
				if !w.IsZero() {
					e := m.a[m.ai]
					e.Weight = w
					m.out = append(m.out, e)
				}
				m.ai++
				m.bi++
			}
		}
	}
	m.finished = m.ai >= len(m.a) && m.bi >= len(m.b)
	return m.finished
}

// Done returns the merged batch. It panics if Work has not yet
// reported completion, matching the merger contract's precondition.
func (m *Merger[K, V, T]) Done() *zset.Batch[K, V, T] {
	if !m.finished {
		panic("trace: Merger.Done called before the merge finished")
	}
	builder := zset.NewBuilder[K, V, T](len(m.out))
	builder.Strict = false
	for _, e := range m.out {
		builder.Push(e)
	}
	return builder.Done(m.lower, m.upper)
}

// Inputs returns the two batches being merged, for readers that must
// see the pre-merge pair while a merge is still in progress.
func (m *Merger[K, V, T]) Inputs() (a, b *zset.Batch[K, V, T]) {
	return m.origA, m.origB
}

// Remaining reports how many source rows have yet to be consumed,
// used by the spine to size fuel grants proportionally to the work
// left in a merge.
func (m *Merger[K, V, T]) Remaining() int {
	return (len(m.a) - m.ai) + (len(m.b) - m.bi)
}
