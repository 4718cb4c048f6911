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

// Package wire contains the portable binary encoding of records,
// timestamps, and batches, expressed as protobuf wire-format messages
// with a leading format tag as the version discriminant. It backs the
// optional persistence feature; in-process exchange passes batches by
// reference and never serializes.
package wire

import (
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/zset"
	"google.golang.org/protobuf/encoding/protowire"
)

// FormatVersion is the leading tag of every encoded batch. Decoders
// reject anything else.
const FormatVersion uint32 = 1

// A Codec writes and reads one record type. Append extends buf with
// the value's encoding; Consume parses one value from the front of
// buf and reports the number of bytes read.
type Codec[T any] struct {
	Append  func(buf []byte, v T) []byte
	Consume func(buf []byte) (T, int, error)
}

func consumeErr[T any](msg string) (T, int, error) {
	var zero T
	return zero, 0, ivmerrors.NewIoError(msg)
}

// Int64 encodes any int64-shaped record as a zig-zag varint.
func Int64[T ~int64]() Codec[T] {
	return Codec[T]{
		Append: func(buf []byte, v T) []byte {
			return protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(v)))
		},
		Consume: func(buf []byte) (T, int, error) {
			u, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return consumeErr[T]("truncated varint")
			}
			return T(protowire.DecodeZigZag(u)), n, nil
		},
	}
}

// String encodes any string-shaped record as length-prefixed bytes.
func String[T ~string]() Codec[T] {
	return Codec[T]{
		Append: func(buf []byte, v T) []byte {
			return protowire.AppendBytes(buf, []byte(v))
		},
		Consume: func(buf []byte) (T, int, error) {
			b, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return consumeErr[T]("truncated bytes")
			}
			return T(b), n, nil
		},
	}
}

// Unit encodes the empty value axis of an un-indexed Z-set as zero
// bytes.
func Unit() Codec[algebra.Unit] {
	return Codec[algebra.Unit]{
		Append:  func(buf []byte, _ algebra.Unit) []byte { return buf },
		Consume: func([]byte) (algebra.Unit, int, error) { return algebra.Unit{}, 0, nil },
	}
}

// FlatTime encodes the unit lattice as zero bytes.
func FlatTime() Codec[algebra.FlatTime] {
	return Codec[algebra.FlatTime]{
		Append:  func(buf []byte, _ algebra.FlatTime) []byte { return buf },
		Consume: func([]byte) (algebra.FlatTime, int, error) { return algebra.FlatTime{}, 0, nil },
	}
}

// NestedTime encodes an (epoch, iteration) pair as two plain varints,
// the "tuple of lattice coordinates" form.
func NestedTime() Codec[algebra.NestedTime] {
	return Codec[algebra.NestedTime]{
		Append: func(buf []byte, v algebra.NestedTime) []byte {
			buf = protowire.AppendVarint(buf, v.Epoch)
			return protowire.AppendVarint(buf, v.Iter)
		},
		Consume: func(buf []byte) (algebra.NestedTime, int, error) {
			epoch, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return consumeErr[algebra.NestedTime]("truncated epoch")
			}
			iter, m := protowire.ConsumeVarint(buf[n:])
			if m < 0 {
				return consumeErr[algebra.NestedTime]("truncated iteration")
			}
			return algebra.NestedTime{Epoch: epoch, Iter: iter}, n + m, nil
		},
	}
}

// Field numbers of the batch message.
const (
	fieldVersion = protowire.Number(1)
	fieldLower   = protowire.Number(2)
	fieldUpper   = protowire.Number(3)
	fieldEntry   = protowire.Number(4)
)

// Field numbers of the entry sub-message.
const (
	entryKey    = protowire.Number(1)
	entryVal    = protowire.Number(2)
	entryTime   = protowire.Number(3)
	entryWeight = protowire.Number(4)
)

// EncodeBatch serializes a batch: the format tag, the two bounding
// antichains, then every row in its sorted order.
func EncodeBatch[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	b *zset.Batch[K, V, T], kc Codec[K], vc Codec[V], tc Codec[T],
) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, fieldVersion, protowire.Fixed32Type)
	buf = protowire.AppendFixed32(buf, FormatVersion)

	buf = appendAntichain(buf, fieldLower, b.Lower(), tc)
	buf = appendAntichain(buf, fieldUpper, b.Upper(), tc)

	for _, e := range b.Entries() {
		var entry []byte
		entry = protowire.AppendTag(entry, entryKey, protowire.BytesType)
		entry = protowire.AppendBytes(entry, kc.Append(nil, e.Key))
		entry = protowire.AppendTag(entry, entryVal, protowire.BytesType)
		entry = protowire.AppendBytes(entry, vc.Append(nil, e.Val))
		entry = protowire.AppendTag(entry, entryTime, protowire.BytesType)
		entry = protowire.AppendBytes(entry, tc.Append(nil, e.Time))
		entry = protowire.AppendTag(entry, entryWeight, protowire.VarintType)
		entry = protowire.AppendVarint(entry, protowire.EncodeZigZag(int64(e.Weight)))

		buf = protowire.AppendTag(buf, fieldEntry, protowire.BytesType)
		buf = protowire.AppendBytes(buf, entry)
	}
	return buf
}

func appendAntichain[T algebra.LatticeOrdered[T]](
	buf []byte, field protowire.Number, a zset.Antichain[T], tc Codec[T],
) []byte {
	for _, t := range a.Elements() {
		buf = protowire.AppendTag(buf, field, protowire.BytesType)
		buf = protowire.AppendBytes(buf, tc.Append(nil, t))
	}
	return buf
}

// DecodeBatch parses a batch previously produced by EncodeBatch.
func DecodeBatch[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	buf []byte, kc Codec[K], vc Codec[V], tc Codec[T],
) (*zset.Batch[K, V, T], error) {
	builder := zset.NewBuilder[K, V, T](0)
	lower := zset.NewAntichain[T]()
	upper := zset.NewAntichain[T]()
	sawVersion := false

	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, ivmerrors.NewIoError("truncated tag")
		}
		buf = buf[n:]
		switch num {
		case fieldVersion:
			if typ != protowire.Fixed32Type {
				return nil, ivmerrors.NewIoError("malformed version field")
			}
			v, n := protowire.ConsumeFixed32(buf)
			if n < 0 {
				return nil, ivmerrors.NewIoError("truncated version")
			}
			if v != FormatVersion {
				return nil, ivmerrors.NewIoError("unsupported format version")
			}
			sawVersion = true
			buf = buf[n:]
		case fieldLower, fieldUpper:
			raw, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, ivmerrors.NewIoError("truncated antichain")
			}
			t, m, err := tc.Consume(raw)
			if err != nil {
				return nil, err
			}
			if m != len(raw) {
				return nil, ivmerrors.NewIoError("trailing antichain bytes")
			}
			if num == fieldLower {
				lower = lower.Insert(t)
			} else {
				upper = upper.Insert(t)
			}
			buf = buf[n:]
		case fieldEntry:
			raw, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return nil, ivmerrors.NewIoError("truncated entry")
			}
			e, err := decodeEntry(raw, kc, vc, tc)
			if err != nil {
				return nil, err
			}
			builder.Push(e)
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return nil, ivmerrors.NewIoError("malformed field")
			}
			buf = buf[n:]
		}
	}
	if !sawVersion {
		return nil, ivmerrors.NewIoError("missing format version")
	}
	return builder.Done(lower, upper), nil
}

func decodeEntry[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	buf []byte, kc Codec[K], vc Codec[V], tc Codec[T],
) (zset.Entry[K, V, T], error) {
	var e zset.Entry[K, V, T]
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return e, ivmerrors.NewIoError("truncated entry tag")
		}
		buf = buf[n:]
		switch num {
		case entryKey, entryVal, entryTime:
			raw, n := protowire.ConsumeBytes(buf)
			if n < 0 {
				return e, ivmerrors.NewIoError("truncated entry field")
			}
			var err error
			switch num {
			case entryKey:
				e.Key, _, err = kc.Consume(raw)
			case entryVal:
				e.Val, _, err = vc.Consume(raw)
			case entryTime:
				e.Time, _, err = tc.Consume(raw)
			}
			if err != nil {
				return e, err
			}
			buf = buf[n:]
		case entryWeight:
			u, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return e, ivmerrors.NewIoError("truncated weight")
			}
			e.Weight = algebra.Weight(protowire.DecodeZigZag(u))
			buf = buf[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, buf)
			if n < 0 {
				return e, ivmerrors.NewIoError("malformed entry field")
			}
			buf = buf[n:]
		}
	}
	return e, nil
}
