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

// Package cursor defines the uniform navigation contract over a batch
// or a trace's merged view: a two-level ordered iteration, outer over
// keys and inner over values, with a time/weight history folded at
// each (key, value) position.
package cursor

import (
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
)

// Cursor is the uniform navigation contract over timed, weighted
// collections: BatchCursor (over a single batch's rows), Merge
// (a k-way merge over several cursors), and Group (a derived cursor
// projecting one key's values as its own keys).
type Cursor[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] interface {
	// KeyValid reports whether the cursor is currently positioned on
	// a key.
	KeyValid() bool
	// ValValid reports whether the cursor is currently positioned on
	// a value within the current key.
	ValValid() bool
	// Key returns the current key. Precondition: KeyValid().
	Key() K
	// Val returns the current value. Precondition: ValValid().
	Val() V
	// StepKey advances to the next key, which may invalidate the
	// cursor if none remains.
	StepKey()
	// StepVal advances to the next value within the current key,
	// which may invalidate the inner position if none remains.
	StepVal()
	// SeekKey advances the outer position until the current key is
	// greater than or equal to k.
	SeekKey(k K)
	// SeekVal advances the inner position until the current value is
	// greater than or equal to v.
	SeekVal(v V)
	// RewindKeys resets the outer iterator to the first key.
	RewindKeys()
	// RewindVals resets the inner iterator to the first value of the
	// current key.
	RewindVals()
	// MapTimes invokes f once for every (time, weight) pair recorded
	// at the current (key, value) position.
	MapTimes(f func(t T, w algebra.Weight))
	// MapTimesThrough is MapTimes restricted to times dominated by
	// upper, i.e. time <= every element of upper.
	MapTimesThrough(upper zset.Antichain[T], f func(t T, w algebra.Weight))
	// Weight sums the weights recorded at the current position. It
	// is meaningful whenever the caller does not care which
	// timestamp a weight belongs to — canonically when T is
	// algebra.FlatTime — but is defined for any T as the total
	// weight across all times.
	Weight() algebra.Weight
}

// LastKeySeeker is implemented by cursors that can jump directly to
// their maximum key. It is optional: derived cursors such as Group
// have no cheap way to know their final position and leave it
// unimplemented.
type LastKeySeeker[K any] interface {
	LastKey() (K, bool)
}

// FoldTimesThrough folds over the (time, weight) history at a
// cursor's current position, restricted to times dominated by upper.
// It is a free function rather than an interface method because Go
// does not permit generic methods with their own type parameter.
func FoldTimesThrough[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T], A any](
	c Cursor[K, V, T], upper zset.Antichain[T], init A, fold func(acc A, t T, w algebra.Weight) A,
) A {
	acc := init
	c.MapTimesThrough(upper, func(t T, w algebra.Weight) {
		acc = fold(acc, t, w)
	})
	return acc
}
