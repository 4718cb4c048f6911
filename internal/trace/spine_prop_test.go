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

package trace

import (
	"testing"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSpineContentEqualsInsertedSum holds the spine invariant under
// random insert/exert interleavings: whatever merging has or has not
// happened, the logical content equals the multiset sum of every
// batch inserted, and the interval union is contiguous.
func TestSpineContentEqualsInsertedSum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New[zset.IntKey, zset.StringVal, algebra.NestedTime]()
		sum := zset.NewBatcher[zset.IntKey, zset.StringVal, algebra.NestedTime]()

		ticks := rapid.IntRange(1, 12).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			b := zset.NewBatcher[zset.IntKey, zset.StringVal, algebra.NestedTime]()
			rows := rapid.IntRange(0, 4).Draw(t, "rows")
			for j := 0; j < rows; j++ {
				e := row(
					rapid.Int64Range(0, 5).Draw(t, "key"), "v",
					nt(uint64(i), 0),
					rapid.Int64Range(-2, 2).Draw(t, "weight"))
				b.Add(e)
				sum.Add(e)
			}
			batch := b.Seal(frontier(nt(uint64(i), 0)), frontier(nt(uint64(i+1), 0)))
			s.Insert(batch)

			fuel := rapid.IntRange(0, 10).Draw(t, "fuel")
			s.Exert(&fuel)
		}

		expected := sum.Seal(frontier(nt(0, 0)), frontier(nt(uint64(ticks), 0)))
		final := s.Consolidate()
		require.Equal(t, expected.Entries(), final.Entries())

		// Contiguity: the surviving batch covers the full span of the
		// inserted intervals.
		require.Equal(t, frontier(nt(0, 0)).Elements(), final.Lower().Elements())
		require.Equal(t, frontier(nt(uint64(ticks), 0)).Elements(), final.Upper().Elements())
	})
}

// TestConsolidateSplicesAdjacentIntervals is the contiguity scenario:
// [0,1) + [1,2) + [2,3) consolidates into a single batch over [0,3)
// holding the sum of the contents.
func TestConsolidateSplicesAdjacentIntervals(t *testing.T) {
	s := New[zset.IntKey, zset.StringVal, algebra.NestedTime]()
	s.Insert(sealedBatch(nt(0, 0), nt(1, 0), row(1, "a", nt(0, 0), 1)))
	s.Insert(sealedBatch(nt(1, 0), nt(2, 0), row(1, "a", nt(1, 0), 2)))
	s.Insert(sealedBatch(nt(2, 0), nt(3, 0), row(2, "b", nt(2, 0), 1)))

	final := s.Consolidate()
	require.Equal(t, frontier(nt(0, 0)).Elements(), final.Lower().Elements())
	require.Equal(t, frontier(nt(3, 0)).Elements(), final.Upper().Elements())

	var total algebra.Weight
	for _, e := range final.Entries() {
		total = total.Add(e.Weight)
	}
	require.Equal(t, algebra.Weight(4), total)
}

// TestRecedeToClipsObservableTimes holds the recede property: after
// recede_to(f), every time visible through f is <= f.
func TestRecedeToClipsObservableTimes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New[zset.IntKey, zset.StringVal, algebra.NestedTime]()
		ticks := rapid.IntRange(1, 6).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			s.Insert(sealedBatch(nt(uint64(i), 0), nt(uint64(i+1), 0),
				row(rapid.Int64Range(0, 3).Draw(t, "key"), "v", nt(uint64(i), 0), 1)))
		}

		f := nt(rapid.Uint64Range(0, uint64(ticks)).Draw(t, "frontier"), 0)
		s.RecedeTo(frontier(f))

		c := s.Cursor()
		for c.KeyValid() {
			for c.ValValid() {
				c.MapTimesThrough(frontier(f), func(ts algebra.NestedTime, _ algebra.Weight) {
					require.True(t, ts.LessEqual(f))
				})
				c.StepVal()
			}
			c.StepKey()
		}
	})
}
