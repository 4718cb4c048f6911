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
	"encoding/binary"
	"hash/fnv"
)

// IntKey is a minimal Ordered[IntKey] implementation used by this
// module's tests and by the demonstration circuit. It is not
// otherwise load-bearing.
type IntKey int64

// CompareTo implements algebra.Ordered[IntKey].
func (k IntKey) CompareTo(other IntKey) int {
	switch {
	case k < other:
		return -1
	case k > other:
		return 1
	default:
		return 0
	}
}

// Hash64 returns a stable shard-routing hash via FNV-1a over the
// key's little-endian bytes.
func (k IntKey) Hash64() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	h.Write(buf[:])
	return h.Sum64()
}

// StringVal is the string-valued analogue of IntKey.
type StringVal string

// CompareTo implements algebra.Ordered[StringVal].
func (s StringVal) CompareTo(other StringVal) int {
	switch {
	case s < other:
		return -1
	case s > other:
		return 1
	default:
		return 0
	}
}

// Hash64 returns a stable shard-routing hash via FNV-1a.
func (s StringVal) Hash64() uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
