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

package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/trace"
	"github.com/cockroachdb/ivm/internal/wire"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func seedSpine(t *testing.T) *trace.Spine[zset.IntKey, zset.StringVal, algebra.NestedTime] {
	t.Helper()
	s := trace.New[zset.IntKey, zset.StringVal, algebra.NestedTime]()
	for i := uint64(0); i < 3; i++ {
		b := zset.NewBuilder[zset.IntKey, zset.StringVal, algebra.NestedTime](1)
		b.Push(zset.Entry[zset.IntKey, zset.StringVal, algebra.NestedTime]{
			Item:   zset.ItemFrom(zset.IntKey(int64(i)), zset.StringVal("v")),
			Time:   algebra.NestedTime{Epoch: i},
			Weight: 1,
		})
		s.Insert(b.Done(
			zset.NewAntichain(algebra.NestedTime{Epoch: i}),
			zset.NewAntichain(algebra.NestedTime{Epoch: i + 1}),
		))
	}
	return s
}

func spineContents(
	s *trace.Spine[zset.IntKey, zset.StringVal, algebra.NestedTime],
) map[zset.IntKey]algebra.Weight {
	out := make(map[zset.IntKey]algebra.Weight)
	c := s.Cursor()
	for c.KeyValid() {
		out[c.Key()] = c.Weight()
		c.StepKey()
	}
	return out
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	src := seedSpine(t)
	require.NoError(t, SaveSpine(ctx, store, src,
		wire.Int64[zset.IntKey](), wire.String[zset.StringVal](), wire.NestedTime()))

	restored, err := LoadSpine[zset.IntKey, zset.StringVal, algebra.NestedTime](ctx, store,
		wire.Int64[zset.IntKey](), wire.String[zset.StringVal](), wire.NestedTime())
	require.NoError(t, err)
	require.Equal(t, spineContents(src), spineContents(restored))
}

func TestFileStoreLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, SaveSpine(ctx, store, seedSpine(t),
		wire.Int64[zset.IntKey](), wire.String[zset.StringVal](), wire.NestedTime()))

	// One {level}-{seq}.bin per resident batch plus the manifest.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Contains(t, names, "manifest")
	m, err := store.ReadManifest(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, m.Entries)
	for _, e := range m.Entries {
		require.Contains(t, names, filepath.Base(store.batchPath(e.Level, e.Seq)))
	}
}

func TestLoadDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, SaveSpine(ctx, store, seedSpine(t),
		wire.Int64[zset.IntKey](), wire.String[zset.StringVal](), wire.NestedTime()))

	// Flip a byte in one persisted batch.
	m, err := store.ReadManifest(ctx)
	require.NoError(t, err)
	victim := store.batchPath(m.Entries[0].Level, m.Entries[0].Seq)
	data, err := os.ReadFile(victim)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(victim, data, 0644))

	_, err = LoadSpine[zset.IntKey, zset.StringVal, algebra.NestedTime](ctx, store,
		wire.Int64[zset.IntKey](), wire.String[zset.StringVal](), wire.NestedTime())
	require.Error(t, err)
	var ioErr *ivmerrors.IoError
	require.True(t, errors.As(err, &ioErr))
}

func TestMissingManifestIsIoError(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.ReadManifest(ctx)
	require.Error(t, err)
	var ioErr *ivmerrors.IoError
	require.True(t, errors.As(err, &ioErr))
}

func TestChaosInjectsErrChaos(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	// Probability one: every call fails with ErrChaos.
	chaotic := WithChaos(store, 1)
	chaosErr := chaotic.WriteBatch(ctx, 0, 0, nil)
	require.True(t, errors.Is(chaosErr, ErrChaos))

	// Probability zero: the delegate is returned unwrapped.
	require.Same(t, Store(store), WithChaos(store, 0))
}
