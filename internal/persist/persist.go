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

// Package persist contains the optional trace-snapshot feature: a
// spine's resident batches can be mirrored into a backing store (a
// directory of files, or one of several SQL products) and a spine can
// be rebuilt from the store's manifest.
package persist

import (
	"context"
	"hash/crc32"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/trace"
	"github.com/cockroachdb/ivm/internal/wire"
	"github.com/cockroachdb/ivm/internal/zset"
	"google.golang.org/protobuf/encoding/protowire"
)

// ManifestEntry names one persisted batch and carries enough
// information to validate its payload on the way back in.
type ManifestEntry struct {
	Level    int
	Seq      int
	Bytes    int
	Checksum uint32
}

// Manifest lists the persisted batches in insertion order, oldest
// first within each level.
type Manifest struct {
	Entries []ManifestEntry
}

// Store is a durable home for one spine's snapshot. Implementations:
// FileStore, PGStore, SQLStore.
type Store interface {
	// WriteBatch persists an encoded batch under (level, seq),
	// replacing any previous occupant.
	WriteBatch(ctx context.Context, level, seq int, data []byte) error
	// ReadBatch retrieves the payload stored under (level, seq).
	ReadBatch(ctx context.Context, level, seq int) ([]byte, error)
	// WriteManifest atomically replaces the manifest.
	WriteManifest(ctx context.Context, m *Manifest) error
	// ReadManifest retrieves the current manifest.
	ReadManifest(ctx context.Context) (*Manifest, error)
}

// SaveSpine mirrors a spine's resident batches into the store and
// rewrites the manifest. In-progress merges are represented by their
// pre-merge inputs, so a save is always a consistent view.
func SaveSpine[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	ctx context.Context, store Store, s *trace.Spine[K, V, T],
	kc wire.Codec[K], vc wire.Codec[V], tc wire.Codec[T],
) error {
	m := &Manifest{}
	for level, batches := range s.Snapshot() {
		for seq, b := range batches {
			data := wire.EncodeBatch(b, kc, vc, tc)
			if err := store.WriteBatch(ctx, level, seq, data); err != nil {
				batchWriteErrors.Inc()
				return err
			}
			batchesWritten.Inc()
			m.Entries = append(m.Entries, ManifestEntry{
				Level:    level,
				Seq:      seq,
				Bytes:    len(data),
				Checksum: crc32.ChecksumIEEE(data),
			})
		}
	}
	return store.WriteManifest(ctx, m)
}

// LoadSpine rebuilds a spine from the store's manifest, verifying
// every payload's length and checksum.
func LoadSpine[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	ctx context.Context, store Store,
	kc wire.Codec[K], vc wire.Codec[V], tc wire.Codec[T],
) (*trace.Spine[K, V, T], error) {
	m, err := store.ReadManifest(ctx)
	if err != nil {
		return nil, err
	}
	var levels [][]*zset.Batch[K, V, T]
	for _, entry := range m.Entries {
		data, err := store.ReadBatch(ctx, entry.Level, entry.Seq)
		if err != nil {
			batchReadErrors.Inc()
			return nil, err
		}
		if len(data) != entry.Bytes {
			return nil, ivmerrors.NewIoError("short read")
		}
		if crc32.ChecksumIEEE(data) != entry.Checksum {
			return nil, ivmerrors.NewIoError("checksum mismatch")
		}
		b, err := wire.DecodeBatch(data, kc, vc, tc)
		if err != nil {
			return nil, err
		}
		for entry.Level >= len(levels) {
			levels = append(levels, nil)
		}
		levels[entry.Level] = append(levels[entry.Level], b)
		batchesRead.Inc()
	}
	return trace.FromSnapshot(levels), nil
}

// Manifest wire form: a format tag followed by one packed entry per
// batch.
const (
	manifestVersion = protowire.Number(1)
	manifestEntry   = protowire.Number(2)
)

// EncodeManifest serializes a manifest for storage.
func EncodeManifest(m *Manifest) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, manifestVersion, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, wire.FormatVersion)
	for _, e := range m.Entries {
		var entry []byte
		entry = protowire.AppendVarint(entry, uint64(e.Level))
		entry = protowire.AppendVarint(entry, uint64(e.Seq))
		entry = protowire.AppendVarint(entry, uint64(e.Bytes))
		entry = protowire.AppendFixed32(entry, e.Checksum)
		buf = protowire.AppendTag(buf, manifestEntry, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry)
	}
	return buf
}

// DecodeManifest parses a manifest produced by EncodeManifest.
func DecodeManifest(buf []byte) (*Manifest, error) {
	m := &Manifest{}
	sawVersion := false
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, ivmerrors.NewIoError("corrupt manifest")
		}
		buf = buf[n:]
		switch num {
		case manifestVersion:
			v, n := protowire.ConsumeFixed32(buf)
			if n < 0 {
				return nil, ivmerrors.NewIoError("corrupt manifest")
			}
			if v != wire.FormatVersion {
				return nil, ivmerrors.NewIoError("unsupported manifest version")
			}
			sawVersion = true
			buf = buf[n:]
		case manifestEntry:
			raw, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, ivmerrors.NewIoError("corrupt manifest")
			}
			var e ManifestEntry
			level, a := protowire.ConsumeVarint(raw)
			if a < 0 {
				return nil, ivmerrors.NewIoError("corrupt manifest entry")
			}
			seq, b := protowire.ConsumeVarint(raw[a:])
			if b < 0 {
				return nil, ivmerrors.NewIoError("corrupt manifest entry")
			}
			size, c := protowire.ConsumeVarint(raw[a+b:])
			if c < 0 {
				return nil, ivmerrors.NewIoError("corrupt manifest entry")
			}
			sum, d := protowire.ConsumeFixed32(raw[a+b+c:])
			if d < 0 {
				return nil, ivmerrors.NewIoError("corrupt manifest entry")
			}
			e.Level, e.Seq, e.Bytes, e.Checksum = int(level), int(seq), int(size), sum
			m.Entries = append(m.Entries, e)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, ivmerrors.NewIoError("corrupt manifest")
			}
			buf = buf[n:]
		}
	}
	if !sawVersion {
		return nil, ivmerrors.NewIoError("corrupt manifest")
	}
	return m, nil
}
