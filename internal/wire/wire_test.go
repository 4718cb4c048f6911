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

package wire

import (
	"testing"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testBatch() *zset.Batch[zset.IntKey, zset.StringVal, algebra.NestedTime] {
	b := zset.NewBuilder[zset.IntKey, zset.StringVal, algebra.NestedTime](3)
	b.Push(zset.Entry[zset.IntKey, zset.StringVal, algebra.NestedTime]{
		Item: zset.ItemFrom(zset.IntKey(-5), zset.StringVal("neg")), Time: algebra.NestedTime{Epoch: 1}, Weight: -2,
	})
	b.Push(zset.Entry[zset.IntKey, zset.StringVal, algebra.NestedTime]{
		Item: zset.ItemFrom(zset.IntKey(1), zset.StringVal("a")), Time: algebra.NestedTime{Epoch: 1, Iter: 3}, Weight: 1,
	})
	b.Push(zset.Entry[zset.IntKey, zset.StringVal, algebra.NestedTime]{
		Item: zset.ItemFrom(zset.IntKey(1), zset.StringVal("b")), Time: algebra.NestedTime{Epoch: 2}, Weight: 7,
	})
	return b.Done(
		zset.NewAntichain(algebra.NestedTime{Epoch: 1}),
		zset.NewAntichain(algebra.NestedTime{Epoch: 3}),
	)
}

func TestBatchRoundTrip(t *testing.T) {
	src := testBatch()
	buf := EncodeBatch(src, Int64[zset.IntKey](), String[zset.StringVal](), NestedTime())

	got, err := DecodeBatch(buf, Int64[zset.IntKey](), String[zset.StringVal](), NestedTime())
	require.NoError(t, err)
	require.Equal(t, src.Entries(), got.Entries())
	require.Equal(t, src.Lower().Elements(), got.Lower().Elements())
	require.Equal(t, src.Upper().Elements(), got.Upper().Elements())
}

func TestUnitShapesEncodeToNothing(t *testing.T) {
	b := zset.NewBuilder[zset.IntKey, algebra.Unit, algebra.FlatTime](1)
	b.Push(zset.Entry[zset.IntKey, algebra.Unit, algebra.FlatTime]{
		Item: zset.ItemFrom(zset.IntKey(9), algebra.Unit{}), Weight: 1,
	})
	f := zset.NewAntichain(algebra.FlatTime{})
	src := b.Done(f, f)

	buf := EncodeBatch(src, Int64[zset.IntKey](), Unit(), FlatTime())
	got, err := DecodeBatch(buf, Int64[zset.IntKey](), Unit(), FlatTime())
	require.NoError(t, err)
	require.Equal(t, src.Entries(), got.Entries())
}

func TestDecodeRejectsCorruption(t *testing.T) {
	buf := EncodeBatch(testBatch(), Int64[zset.IntKey](), String[zset.StringVal](), NestedTime())

	// A short read loses the tail of the message.
	_, err := DecodeBatch(buf[:len(buf)-3], Int64[zset.IntKey](), String[zset.StringVal](), NestedTime())
	require.Error(t, err)
	var ioErr *ivmerrors.IoError
	require.True(t, errors.As(err, &ioErr))

	// An empty buffer is missing its version tag.
	_, err = DecodeBatch(nil, Int64[zset.IntKey](), String[zset.StringVal](), NestedTime())
	require.Error(t, err)

	// A bumped version tag is rejected outright.
	bad := EncodeBatch(testBatch(), Int64[zset.IntKey](), String[zset.StringVal](), NestedTime())
	bad[1]++ // the fixed32 version payload follows the one-byte tag
	_, err = DecodeBatch(bad, Int64[zset.IntKey](), String[zset.StringVal](), NestedTime())
	require.Error(t, err)
}
