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

import "github.com/cockroachdb/ivm/internal/algebra"

// RecedeTo implements recede-to-frontier compaction: every
// row's time is replaced by its meet with the frontier, and rows that
// collide under the new times are re-coalesced (weights summed, zero
// results dropped). The returned batch's lower bound is also receded,
// but its upper bound is left untouched: receding can only ever pull
// times backward, so the set of times that could newly appear is
// bounded above by the original upper antichain.
func RecedeTo[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	b *Batch[K, V, T], frontier Antichain[T],
) *Batch[K, V, T] {
	if b.IsEmpty() {
		return b
	}

	receded := make([]Entry[K, V, T], len(b.entries))
	for i, e := range b.entries {
		e.Time = frontier.Meet(e.Time)
		receded[i] = e
	}
	consolidated := Consolidate(receded)

	newLower := NewAntichain[T]()
	for _, t := range b.lower.Elements() {
		newLower = newLower.Insert(frontier.Meet(t))
	}
	return &Batch[K, V, T]{entries: consolidated, lower: newLower, upper: b.upper}
}
