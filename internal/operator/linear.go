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
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
)

// Map transforms every (key, value) pair of a batch through f,
// re-consolidating since distinct inputs may map to the same output
// pair. Cost is linear in batch size.
func Map[K1 algebra.Ordered[K1], V1 algebra.Ordered[V1], K2 algebra.Ordered[K2], V2 algebra.Ordered[V2]](
	in Stream[K1, V1], f func(k K1, v V1) (K2, V2),
) Stream[K2, V2] {
	batcher := zset.NewBatcher[K2, V2, algebra.FlatTime]()
	for _, e := range in.Entries() {
		k2, v2 := f(e.Key, e.Val)
		batcher.Add(zset.Entry[K2, V2, algebra.FlatTime]{Item: zset.ItemFrom(k2, v2), Time: algebra.FlatTime{}, Weight: e.Weight})
	}
	f2 := flatFrontier()
	return batcher.Seal(f2, f2)
}

// MapIndex re-derives a batch's key from its existing (key, value)
// pair, leaving the value untouched. It is Map specialized to the
// common "re-index by a projection of the current row" case.
func MapIndex[K1 algebra.Ordered[K1], V algebra.Ordered[V], K2 algebra.Ordered[K2]](
	in Stream[K1, V], keyOf func(k K1, v V) K2,
) Stream[K2, V] {
	return Map[K1, V, K2, V](in, func(k K1, v V) (K2, V) { return keyOf(k, v), v })
}

// Filter keeps only rows satisfying pred. Filtering a sorted sequence
// stays sorted, so this is a single linear Builder pass with no
// re-sort required.
func Filter[K algebra.Ordered[K], V algebra.Ordered[V]](in Stream[K, V], pred func(k K, v V) bool) Stream[K, V] {
	builder := zset.NewBuilder[K, V, algebra.FlatTime](in.Len())
	builder.Strict = false
	for _, e := range in.Entries() {
		if pred(e.Key, e.Val) {
			builder.Push(e)
		}
	}
	f := flatFrontier()
	return builder.Done(f, f)
}
