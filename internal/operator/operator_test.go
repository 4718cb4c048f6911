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
	"testing"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// stream builds a Stream from alternating rows, consolidating as a
// Batcher would.
func stream[K algebra.Ordered[K], V algebra.Ordered[V]](
	rows ...zset.Entry[K, V, algebra.FlatTime],
) Stream[K, V] {
	b := zset.NewBatcher[K, V, algebra.FlatTime]()
	for _, r := range rows {
		b.Add(r)
	}
	f := flatFrontier()
	return b.Seal(f, f)
}

func kv[K algebra.Ordered[K], V algebra.Ordered[V]](k K, v V, w int64) zset.Entry[K, V, algebra.FlatTime] {
	return zset.Entry[K, V, algebra.FlatTime]{
		Item:   zset.ItemFrom(k, v),
		Weight: algebra.Weight(w),
	}
}

// contents flattens a Stream into a (key, value) -> weight view for
// comparisons that ignore row order.
func contents[K algebra.Ordered[K], V algebra.Ordered[V]](s Stream[K, V]) map[zset.Item[K, V]]algebra.Weight {
	out := make(map[zset.Item[K, V]]algebra.Weight, s.Len())
	for _, e := range s.Entries() {
		out[e.Item] = e.Weight
	}
	return out
}

func TestMapFilterLinear(t *testing.T) {
	in := stream(
		kv(zset.IntKey(1), zset.StringVal("a"), 1),
		kv(zset.IntKey(2), zset.StringVal("b"), 2),
		kv(zset.IntKey(3), zset.StringVal("c"), -1),
	)

	doubled := Map(in, func(k zset.IntKey, v zset.StringVal) (zset.IntKey, zset.StringVal) {
		return k * 2, v
	})
	require.Equal(t, map[zset.Item[zset.IntKey, zset.StringVal]]algebra.Weight{
		zset.ItemFrom(zset.IntKey(2), zset.StringVal("a")): 1,
		zset.ItemFrom(zset.IntKey(4), zset.StringVal("b")): 2,
		zset.ItemFrom(zset.IntKey(6), zset.StringVal("c")): -1,
	}, contents(doubled))

	odd := Filter(in, func(k zset.IntKey, _ zset.StringVal) bool { return k%2 == 1 })
	require.Equal(t, 2, odd.Len())

	reindexed := MapIndex(in, func(_ zset.IntKey, v zset.StringVal) zset.StringVal { return v })
	require.Equal(t, algebra.Weight(2), contents(reindexed)[zset.ItemFrom(zset.StringVal("b"), zset.StringVal("b"))])
}

func TestIntegrateAccumulates(t *testing.T) {
	op := NewIntegrate[zset.IntKey, zset.StringVal]()

	out := op.Step(stream(kv(zset.IntKey(1), zset.StringVal("a"), 1)))
	require.Equal(t, algebra.Weight(1), contents(out)[zset.ItemFrom(zset.IntKey(1), zset.StringVal("a"))])

	out = op.Step(stream(kv(zset.IntKey(1), zset.StringVal("a"), 2)))
	require.Equal(t, algebra.Weight(3), contents(out)[zset.ItemFrom(zset.IntKey(1), zset.StringVal("a"))])

	// An empty input leaves the cumulative sum alone and the dirty
	// flag clear once acknowledged.
	op.ClearDirtyFlag()
	out = op.Step(stream[zset.IntKey, zset.StringVal]())
	require.Equal(t, algebra.Weight(3), contents(out)[zset.ItemFrom(zset.IntKey(1), zset.StringVal("a"))])
	require.False(t, op.Dirty())
}

// TestDeltaIntegrateRoundTrip checks that integrate and delta invert
// each other over a random sequence of ticks.
func TestDeltaIntegrateRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		integrate := NewIntegrate[zset.IntKey, algebra.Unit]()
		delta := NewDelta[zset.IntKey, algebra.Unit]()

		ticks := rapid.IntRange(1, 8).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			var rows []zset.Entry[zset.IntKey, algebra.Unit, algebra.FlatTime]
			n := rapid.IntRange(0, 5).Draw(t, "rows")
			for j := 0; j < n; j++ {
				k := rapid.Int64Range(0, 9).Draw(t, "key")
				w := rapid.Int64Range(-3, 3).Draw(t, "weight")
				if w == 0 {
					continue
				}
				rows = append(rows, kv(zset.IntKey(k), algebra.Unit{}, w))
			}
			in := stream(rows...)
			back := delta.Step(integrate.Step(in))
			require.Equal(t, contents(in), contents(back))
		}
	})
}

// TestJoinIncremental is the incremental join scenario: after the
// second tick the three new pairings appear exactly once each.
func TestJoinIncremental(t *testing.T) {
	op := NewJoin[zset.IntKey, zset.StringVal, zset.StringVal]()

	out := op.Step(
		stream(kv(zset.IntKey(1), zset.StringVal("a"), 1)),
		stream(kv(zset.IntKey(1), zset.StringVal("x"), 1)),
	)
	require.Equal(t, map[zset.Item[zset.IntKey, Pair[zset.StringVal, zset.StringVal]]]algebra.Weight{
		zset.ItemFrom(zset.IntKey(1), Pair[zset.StringVal, zset.StringVal]{L: "a", R: "x"}): 1,
	}, contents(out))

	out = op.Step(
		stream(kv(zset.IntKey(1), zset.StringVal("b"), 1)),
		stream(kv(zset.IntKey(1), zset.StringVal("y"), 1)),
	)
	require.Equal(t, map[zset.Item[zset.IntKey, Pair[zset.StringVal, zset.StringVal]]]algebra.Weight{
		zset.ItemFrom(zset.IntKey(1), Pair[zset.StringVal, zset.StringVal]{L: "b", R: "x"}): 1,
		zset.ItemFrom(zset.IntKey(1), Pair[zset.StringVal, zset.StringVal]{L: "a", R: "y"}): 1,
		zset.ItemFrom(zset.IntKey(1), Pair[zset.StringVal, zset.StringVal]{L: "b", R: "y"}): 1,
	}, contents(out))
}

func TestJoinWeightsMultiply(t *testing.T) {
	op := NewJoin[zset.IntKey, zset.StringVal, zset.StringVal]()
	out := op.Step(
		stream(kv(zset.IntKey(7), zset.StringVal("l"), 2)),
		stream(kv(zset.IntKey(7), zset.StringVal("r"), 3)),
	)
	require.Equal(t, algebra.Weight(6),
		contents(out)[zset.ItemFrom(zset.IntKey(7), Pair[zset.StringVal, zset.StringVal]{L: "l", R: "r"})])
}

// TestJoinIncrementalizationAgainstRescan feeds random tick sequences
// to an incremental join and checks the summed output against a
// from-scratch join of the summed inputs.
func TestJoinIncrementalizationAgainstRescan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		op := NewJoin[zset.IntKey, zset.IntKey, zset.IntKey]()
		sumL := zset.NewBatcher[zset.IntKey, zset.IntKey, algebra.FlatTime]()
		sumR := zset.NewBatcher[zset.IntKey, zset.IntKey, algebra.FlatTime]()
		sumOut := zset.NewBatcher[zset.IntKey, Pair[zset.IntKey, zset.IntKey], algebra.FlatTime]()

		draw := func(t *rapid.T, label string) []zset.Entry[zset.IntKey, zset.IntKey, algebra.FlatTime] {
			var rows []zset.Entry[zset.IntKey, zset.IntKey, algebra.FlatTime]
			n := rapid.IntRange(0, 4).Draw(t, label)
			for j := 0; j < n; j++ {
				rows = append(rows, kv(
					zset.IntKey(rapid.Int64Range(0, 3).Draw(t, label+"-k")),
					zset.IntKey(rapid.Int64Range(0, 3).Draw(t, label+"-v")),
					rapid.Int64Range(-2, 2).Draw(t, label+"-w")))
			}
			return rows
		}

		ticks := rapid.IntRange(1, 6).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			dl, dr := stream(draw(t, "l")...), stream(draw(t, "r")...)
			sumL.AddBatch(dl)
			sumR.AddBatch(dr)
			sumOut.AddBatch(op.Step(dl, dr))
		}

		f := flatFrontier()
		scratch := NewJoin[zset.IntKey, zset.IntKey, zset.IntKey]()
		expected := scratch.Step(sumL.Seal(f, f), sumR.Seal(f, f))
		require.Equal(t, contents(expected), contents(sumOut.Seal(f, f)))
	})
}

// TestJoinCommutes checks that swapping the operands swaps the pair
// components and nothing else.
func TestJoinCommutes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lr := NewJoin[zset.IntKey, zset.IntKey, zset.IntKey]()
		rl := NewJoin[zset.IntKey, zset.IntKey, zset.IntKey]()

		ticks := rapid.IntRange(1, 5).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			var ls, rs []zset.Entry[zset.IntKey, zset.IntKey, algebra.FlatTime]
			for j := rapid.IntRange(0, 3).Draw(t, "ln"); j > 0; j-- {
				ls = append(ls, kv(
					zset.IntKey(rapid.Int64Range(0, 2).Draw(t, "lk")),
					zset.IntKey(rapid.Int64Range(0, 2).Draw(t, "lv")), 1))
			}
			for j := rapid.IntRange(0, 3).Draw(t, "rn"); j > 0; j-- {
				rs = append(rs, kv(
					zset.IntKey(rapid.Int64Range(0, 2).Draw(t, "rk")),
					zset.IntKey(rapid.Int64Range(0, 2).Draw(t, "rv")), 1))
			}
			dl, dr := stream(ls...), stream(rs...)

			forward := contents(lr.Step(dl, dr))
			swapped := contents(rl.Step(dr, dl))

			require.Equal(t, len(forward), len(swapped))
			for item, w := range forward {
				flipped := zset.ItemFrom(item.Key, Pair[zset.IntKey, zset.IntKey]{
					L: item.Val.R, R: item.Val.L,
				})
				require.Equal(t, w, swapped[flipped])
			}
		}
	})
}

// TestDistinctUnderRetraction is the retraction scenario: +2 then -1
// then -1 must emit +1, nothing, -1.
func TestDistinctUnderRetraction(t *testing.T) {
	op := NewDistinct[zset.IntKey, zset.StringVal]()
	item := zset.ItemFrom(zset.IntKey(1), zset.StringVal("v"))

	out := op.Step(stream(kv(zset.IntKey(1), zset.StringVal("v"), 2)))
	require.Equal(t, map[zset.Item[zset.IntKey, zset.StringVal]]algebra.Weight{item: 1}, contents(out))

	out = op.Step(stream(kv(zset.IntKey(1), zset.StringVal("v"), -1)))
	require.True(t, out.IsEmpty(), "indicator still 1, no change expected")

	out = op.Step(stream(kv(zset.IntKey(1), zset.StringVal("v"), -1)))
	require.Equal(t, map[zset.Item[zset.IntKey, zset.StringVal]]algebra.Weight{item: -1}, contents(out))
}

// TestDistinctIdempotent checks distinct ∘ distinct = distinct over
// random tick sequences.
func TestDistinctIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		once := NewDistinct[zset.IntKey, algebra.Unit]()
		first := NewDistinct[zset.IntKey, algebra.Unit]()
		second := NewDistinct[zset.IntKey, algebra.Unit]()

		ticks := rapid.IntRange(1, 8).Draw(t, "ticks")
		for i := 0; i < ticks; i++ {
			var rows []zset.Entry[zset.IntKey, algebra.Unit, algebra.FlatTime]
			n := rapid.IntRange(0, 4).Draw(t, "rows")
			for j := 0; j < n; j++ {
				w := rapid.Int64Range(-2, 2).Draw(t, "w")
				if w == 0 {
					continue
				}
				rows = append(rows, kv(zset.IntKey(rapid.Int64Range(0, 4).Draw(t, "k")), algebra.Unit{}, w))
			}
			in := stream(rows...)
			require.Equal(t, contents(once.Step(in)), contents(second.Step(first.Step(in))))
		}
	})
}

func TestAggregateEmitsOnlyChangedKeys(t *testing.T) {
	op := NewAggregate[zset.IntKey, zset.IntKey](Sum[zset.IntKey]())

	out := op.Step(stream(
		kv(zset.IntKey(1), zset.IntKey(10), 1),
		kv(zset.IntKey(2), zset.IntKey(5), 1),
	))
	require.Equal(t, map[zset.Item[zset.IntKey, zset.IntKey]]algebra.Weight{
		zset.ItemFrom(zset.IntKey(1), zset.IntKey(10)): 1,
		zset.ItemFrom(zset.IntKey(2), zset.IntKey(5)):  1,
	}, contents(out))

	// Touch only key 1: its sum is retracted and re-emitted; key 2 is
	// silent.
	out = op.Step(stream(kv(zset.IntKey(1), zset.IntKey(7), 1)))
	require.Equal(t, map[zset.Item[zset.IntKey, zset.IntKey]]algebra.Weight{
		zset.ItemFrom(zset.IntKey(1), zset.IntKey(10)): -1,
		zset.ItemFrom(zset.IntKey(1), zset.IntKey(17)): 1,
	}, contents(out))

	// Retract everything under key 1: the group disappears.
	out = op.Step(stream(
		kv(zset.IntKey(1), zset.IntKey(10), -1),
		kv(zset.IntKey(1), zset.IntKey(7), -1),
	))
	require.Equal(t, map[zset.Item[zset.IntKey, zset.IntKey]]algebra.Weight{
		zset.ItemFrom(zset.IntKey(1), zset.IntKey(17)): -1,
	}, contents(out))
}

func TestAggregateCountSumsMultiplicity(t *testing.T) {
	op := NewAggregate[zset.IntKey, zset.StringVal](Count[zset.StringVal]())
	out := op.Step(stream(kv(zset.IntKey(3), zset.StringVal("x"), 2)))
	require.Equal(t, map[zset.Item[zset.IntKey, zset.IntKey]]algebra.Weight{
		zset.ItemFrom(zset.IntKey(3), zset.IntKey(2)): 1,
	}, contents(out))
}
