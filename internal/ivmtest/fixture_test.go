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

package ivmtest

import (
	"testing"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/operator"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/stretchr/testify/require"
)

func avgRow(part string, at int64, agg operator.NullInt64) zset.Item[zset.StringVal, operator.WinRow[operator.NullInt64]] {
	return zset.ItemFrom(zset.StringVal(part), operator.WinRow[operator.NullInt64]{At: at, Agg: agg})
}

// TestRollingAverageEndToEnd drives the partitioned-average scenario
// through the full multi-worker runtime: each row reports the mean of
// its partition's rows in the preceding 150 time units, NULL when
// that span is empty.
func TestRollingAverageEndToEnd(t *testing.T) {
	f, cleanup, err := NewFixture()
	require.NoError(t, err)
	defer cleanup()

	f.Rows.Push(zset.StringVal("A"), operator.Timed[zset.IntKey]{At: 0, Payload: 10}, 1)
	f.Rows.Push(zset.StringVal("A"), operator.Timed[zset.IntKey]{At: 100, Payload: 20}, 1)
	f.Rows.Push(zset.StringVal("A"), operator.Timed[zset.IntKey]{At: 200, Payload: 30}, 1)
	f.Rows.Push(zset.StringVal("B"), operator.Timed[zset.IntKey]{At: 50, Payload: 5}, 1)

	out, err := f.Step()
	require.NoError(t, err)

	got := make(map[zset.Item[zset.StringVal, operator.WinRow[operator.NullInt64]]]algebra.Weight)
	for _, e := range out.Entries() {
		got[e.Item] = e.Weight
	}
	require.Equal(t, map[zset.Item[zset.StringVal, operator.WinRow[operator.NullInt64]]]algebra.Weight{
		avgRow("A", 0, operator.NullInt64{}):                          1,
		avgRow("A", 100, operator.NullInt64{Int64: 10, Valid: true}):  1,
		avgRow("A", 200, operator.NullInt64{Int64: 20, Valid: true}):  1,
		avgRow("B", 50, operator.NullInt64{}):                         1,
	}, got)

	// A late retraction flows through as a delta on the next tick.
	f.Rows.Push(zset.StringVal("A"), operator.Timed[zset.IntKey]{At: 0, Payload: 10}, -1)
	out, err = f.Step()
	require.NoError(t, err)
	got = make(map[zset.Item[zset.StringVal, operator.WinRow[operator.NullInt64]]]algebra.Weight)
	for _, e := range out.Entries() {
		got[e.Item] = e.Weight
	}
	require.Equal(t, map[zset.Item[zset.StringVal, operator.WinRow[operator.NullInt64]]]algebra.Weight{
		avgRow("A", 0, operator.NullInt64{}):                         -1,
		avgRow("A", 100, operator.NullInt64{Int64: 10, Valid: true}): -1,
		avgRow("A", 100, operator.NullInt64{}):                       1,
	}, got)

	require.NoError(t, f.Runtime.Kill())
}
