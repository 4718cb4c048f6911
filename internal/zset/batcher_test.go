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
	"testing"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/stretchr/testify/require"
)

func entry(k int64, t uint64, w algebra.Weight) Entry[IntKey, algebra.Unit, algebra.NestedTime] {
	return Entry[IntKey, algebra.Unit, algebra.NestedTime]{
		Item:   ItemFrom[IntKey, algebra.Unit](IntKey(k), algebra.Unit{}),
		Time:   algebra.NestedTime{Epoch: t},
		Weight: w,
	}
}

func TestBatcherConsolidatesAndDropsZero(t *testing.T) {
	b := NewBatcher[IntKey, algebra.Unit, algebra.NestedTime]()
	b.Add(entry(1, 0, 2))
	b.Add(entry(1, 0, -2))
	b.Add(entry(2, 0, 3))
	b.Add(entry(2, 0, 4))

	batch := b.Seal(NewAntichain[algebra.NestedTime](), NewAntichain(algebra.NestedTime{Epoch: 1}))
	require.Equal(t, 1, batch.Len())
	require.Equal(t, IntKey(2), batch.Entries()[0].Key)
	require.Equal(t, algebra.Weight(7), batch.Entries()[0].Weight)
}

func TestBuilderRejectsOutOfOrder(t *testing.T) {
	builder := NewBuilder[IntKey, algebra.Unit, algebra.NestedTime](2)
	builder.Push(entry(2, 0, 1))
	require.Panics(t, func() {
		builder.Push(entry(1, 0, 1))
	})
}

func TestRecedeToCoalesces(t *testing.T) {
	b := NewBatcher[IntKey, algebra.Unit, algebra.NestedTime]()
	b.Add(entry(1, 5, 1))
	b.Add(entry(1, 6, 1))
	batch := b.Seal(NewAntichain[algebra.NestedTime](), NewAntichain(algebra.NestedTime{Epoch: 7}))

	frontier := NewAntichain(algebra.NestedTime{Epoch: 3})
	receded := RecedeTo(batch, frontier)
	require.Equal(t, 1, receded.Len())
	require.Equal(t, algebra.Weight(2), receded.Entries()[0].Weight)
	require.Equal(t, uint64(3), receded.Entries()[0].Time.Epoch)
}

func TestRecedeToAtUpperIsNoopOnContent(t *testing.T) {
	b := NewBatcher[IntKey, algebra.Unit, algebra.NestedTime]()
	b.Add(entry(1, 2, 1))
	b.Add(entry(2, 3, 1))
	upper := NewAntichain(algebra.NestedTime{Epoch: 10})
	batch := b.Seal(NewAntichain[algebra.NestedTime](), upper)

	receded := RecedeTo(batch, NewAntichain(algebra.NestedTime{Epoch: 10}))
	require.Equal(t, batch.Len(), receded.Len())
	for i, e := range batch.Entries() {
		require.Equal(t, e.Time, receded.Entries()[i].Time)
		require.Equal(t, e.Weight, receded.Entries()[i].Weight)
	}
}
