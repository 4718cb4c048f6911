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
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
)

// CollectBatch drains a cursor, in its current key/value ordering,
// into a new Batch with the given interval: collecting a cursor over
// a batch reproduces that batch, and collecting a merged cursor is
// how a logical union becomes a single physical batch.
func CollectBatch[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	c Cursor[K, V, T], lower, upper zset.Antichain[T],
) *zset.Batch[K, V, T] {
	builder := zset.NewBuilder[K, V, T](0)
	for c.KeyValid() {
		for c.ValValid() {
			c.MapTimes(func(t T, w algebra.Weight) {
				builder.Push(zset.Entry[K, V, T]{
					Item:   zset.ItemFrom(c.Key(), c.Val()),
					Time:   t,
					Weight: w,
				})
			})
			c.StepVal()
		}
		c.StepKey()
	}
	return builder.Done(lower, upper)
}
