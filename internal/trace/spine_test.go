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
	"github.com/cockroachdb/ivm/internal/cursor"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/stretchr/testify/require"
)

func nt(epoch, iter uint64) algebra.NestedTime {
	return algebra.NestedTime{Epoch: epoch, Iter: iter}
}

func frontier(ts ...algebra.NestedTime) zset.Antichain[algebra.NestedTime] {
	return zset.NewAntichain(ts...)
}

func row(k int64, v string, t algebra.NestedTime, w int64) zset.Entry[zset.IntKey, zset.StringVal, algebra.NestedTime] {
	return zset.Entry[zset.IntKey, zset.StringVal, algebra.NestedTime]{
		Item:   zset.ItemFrom(zset.IntKey(k), zset.StringVal(v)),
		Time:   t,
		Weight: algebra.Weight(w),
	}
}

func sealedBatch(lower, upper algebra.NestedTime, rows ...zset.Entry[zset.IntKey, zset.StringVal, algebra.NestedTime]) *zset.Batch[zset.IntKey, zset.StringVal, algebra.NestedTime] {
	b := zset.NewBuilder[zset.IntKey, zset.StringVal, algebra.NestedTime](len(rows))
	for _, r := range rows {
		b.Push(r)
	}
	return b.Done(frontier(lower), frontier(upper))
}

func TestSpineAccumulatesAcrossInserts(t *testing.T) {
	s := New[zset.IntKey, zset.StringVal, algebra.NestedTime]()

	s.Insert(sealedBatch(nt(0, 0), nt(0, 1), row(1, "a", nt(0, 0), 1)))
	s.Insert(sealedBatch(nt(0, 1), nt(0, 2), row(1, "a", nt(0, 1), 1)))
	s.Insert(sealedBatch(nt(0, 2), nt(0, 3), row(2, "b", nt(0, 2), 5)))

	fuel := 1000
	s.Exert(&fuel)

	final := s.Consolidate()
	require.Equal(t, 2, final.Len())

	c := cursor.Over(final)
	require.True(t, c.KeyValid())
	require.Equal(t, zset.IntKey(1), c.Key())
}

func TestSpineDirtyFlagTracksNonEmptyWork(t *testing.T) {
	s := New[zset.IntKey, zset.StringVal, algebra.NestedTime]()
	require.False(t, s.Dirty())

	s.Insert(zset.Empty[zset.IntKey, zset.StringVal, algebra.NestedTime](frontier(nt(0, 0)), frontier(nt(0, 1))))
	require.False(t, s.Dirty(), "an empty batch must not mark the trace dirty")

	s.Insert(sealedBatch(nt(0, 1), nt(0, 2), row(1, "a", nt(0, 1), 1)))
	require.True(t, s.Dirty())

	s.ClearDirtyFlag()
	require.False(t, s.Dirty())
}

func TestSpineCursorSeesPreMergePairDuringProgressiveMerge(t *testing.T) {
	s := New[zset.IntKey, zset.StringVal, algebra.NestedTime]()
	s.Insert(sealedBatch(nt(0, 0), nt(0, 1), row(1, "a", nt(0, 0), 1)))
	s.Insert(sealedBatch(nt(0, 1), nt(0, 2), row(2, "b", nt(0, 1), 1)))

	// Only one unit of fuel: the merger at level 0 exists but has not
	// finished, so Cursor must still present both keys.
	tiny := 1
	s.Exert(&tiny)

	cur := s.Cursor()
	var keys []zset.IntKey
	for cur.KeyValid() {
		keys = append(keys, cur.Key())
		cur.StepKey()
	}
	require.ElementsMatch(t, []zset.IntKey{1, 2}, keys)
}

func TestSpineRecedeToCollapsesDistinctTimes(t *testing.T) {
	s := New[zset.IntKey, zset.StringVal, algebra.NestedTime]()
	s.Insert(sealedBatch(nt(0, 0), nt(0, 1), row(1, "a", nt(0, 0), 1)))
	s.Insert(sealedBatch(nt(0, 1), nt(0, 2), row(1, "a", nt(0, 1), 1)))

	fuel := 1000
	s.Exert(&fuel)

	front := frontier(nt(0, 0))
	s.RecedeTo(front)
	s.RecedeTo(front) // idempotent in content

	final := s.Consolidate()
	require.Equal(t, 1, final.Len())
	require.Equal(t, algebra.Weight(2), final.Entries()[0].Weight)
}
