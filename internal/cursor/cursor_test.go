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
	"testing"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/stretchr/testify/require"
)

func mkBatch(t *testing.T, rows ...zset.Entry[zset.IntKey, zset.IntKey, algebra.NestedTime]) *zset.Batch[zset.IntKey, zset.IntKey, algebra.NestedTime] {
	t.Helper()
	b := zset.NewBatcher[zset.IntKey, zset.IntKey, algebra.NestedTime]()
	for _, r := range rows {
		b.Add(r)
	}
	return b.Seal(zset.NewAntichain[algebra.NestedTime](), zset.NewAntichain(algebra.NestedTime{Epoch: 10}))
}

func row(k, v int64, epoch uint64, w algebra.Weight) zset.Entry[zset.IntKey, zset.IntKey, algebra.NestedTime] {
	return zset.Entry[zset.IntKey, zset.IntKey, algebra.NestedTime]{
		Item:   zset.ItemFrom(zset.IntKey(k), zset.IntKey(v)),
		Time:   algebra.NestedTime{Epoch: epoch},
		Weight: w,
	}
}

func TestBatchCursorWalksKeysAndValues(t *testing.T) {
	b := mkBatch(t, row(1, 10, 0, 1), row(1, 20, 0, 1), row(2, 10, 0, 1))
	c := Over(b)

	var seen [][2]int64
	for c.KeyValid() {
		for c.ValValid() {
			seen = append(seen, [2]int64{int64(c.Key()), int64(c.Val())})
			c.StepVal()
		}
		c.StepKey()
	}
	require.Equal(t, [][2]int64{{1, 10}, {1, 20}, {2, 10}}, seen)
}

func TestBatchCursorSeek(t *testing.T) {
	b := mkBatch(t, row(1, 0, 0, 1), row(3, 0, 0, 1), row(5, 0, 0, 1))
	c := Over(b)
	c.SeekKey(3)
	require.True(t, c.KeyValid())
	require.Equal(t, zset.IntKey(3), c.Key())

	c.SeekKey(4)
	require.True(t, c.KeyValid())
	require.Equal(t, zset.IntKey(5), c.Key())

	c.SeekKey(6)
	require.False(t, c.KeyValid())
}

func TestGroupCursorProjectsValues(t *testing.T) {
	b := mkBatch(t, row(1, 10, 0, 1), row(1, 20, 0, 1))
	base := Over(b)
	require.True(t, base.KeyValid())
	require.Equal(t, zset.IntKey(1), base.Key())

	g := NewGroup[zset.IntKey, zset.IntKey, algebra.NestedTime](base, zset.NewAntichain(algebra.NestedTime{Epoch: 10}))
	var vals []int64
	for g.KeyValid() {
		vals = append(vals, int64(g.Key()))
		g.StepKey()
	}
	require.Equal(t, []int64{10, 20}, vals)
}

func TestMergeCoalescesAcrossSources(t *testing.T) {
	b1 := mkBatch(t, row(1, 0, 0, 2))
	b2 := mkBatch(t, row(1, 0, 0, -2), row(2, 0, 0, 1))
	m := NewMerge[zset.IntKey, zset.IntKey, algebra.NestedTime](Over(b1), Over(b2))

	require.True(t, m.KeyValid())
	require.Equal(t, zset.IntKey(1), m.Key())
	require.True(t, m.ValValid())
	require.Equal(t, algebra.Weight(0), m.Weight())

	m.StepKey()
	require.True(t, m.KeyValid())
	require.Equal(t, zset.IntKey(2), m.Key())
	require.Equal(t, algebra.Weight(1), m.Weight())
}

func TestCollectBatchRoundTrips(t *testing.T) {
	b := mkBatch(t, row(1, 10, 0, 1), row(2, 5, 3, 2))
	c := Over(b)
	out := CollectBatch[zset.IntKey, zset.IntKey, algebra.NestedTime](c, b.Lower(), b.Upper())
	require.Equal(t, b.Entries(), out.Entries())
}
