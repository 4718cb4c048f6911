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

// Package zset contains the Z-set batch representation: an immutable,
// sorted, time-bounded collection of (key, value, time, weight)
// tuples, plus the two assemblers (Builder and Batcher) used to
// construct one.
package zset

import "github.com/cockroachdb/ivm/internal/algebra"

// Antichain is a set of mutually incomparable timestamps describing
// the frontier of a batch's time interval. In this module's two
// shipped lattices (algebra.FlatTime and algebra.NestedTime) the
// frontier never needs more than a single representative element
// because both lattices are effectively totally ordered for the
// purposes of batch bookkeeping, but the type keeps its plural shape
// so that a future lattice with genuine incomparable elements (e.g. a
// product of more than one nested clock) does not require touching
// every call site.
type Antichain[T algebra.LatticeOrdered[T]] struct {
	elements []T
}

// NewAntichain returns the antichain formed by the given elements,
// with redundant (dominated) elements removed.
func NewAntichain[T algebra.LatticeOrdered[T]](elements ...T) Antichain[T] {
	a := Antichain[T]{}
	for _, e := range elements {
		a = a.Insert(e)
	}
	return a
}

// Insert adds t to the antichain, discarding it if some existing
// element already dominates it, and discarding any existing elements
// that t dominates.
func (a Antichain[T]) Insert(t T) Antichain[T] {
	for _, e := range a.elements {
		if e.LessEqual(t) {
			// t is dominated by (or equal to) an existing element.
			return a
		}
	}
	kept := a.elements[:0:0]
	for _, e := range a.elements {
		if !t.LessEqual(e) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, t)
	return Antichain[T]{elements: kept}
}

// LessEqualTime reports whether every element of the antichain is
// less-equal to t, i.e. whether t lies at or beyond the frontier.
func (a Antichain[T]) LessEqualTime(t T) bool {
	for _, e := range a.elements {
		if !e.LessEqual(t) {
			return false
		}
	}
	return true
}

// Dominates reports whether t is strictly beyond every element of the
// frontier: equivalent to "t is not less-equal to any antichain
// element".
func (a Antichain[T]) Dominates(t T) bool {
	for _, e := range a.elements {
		if t.LessEqual(e) {
			return false
		}
	}
	return true
}

// Meet folds t through every element of the antichain via the
// lattice's pairwise Meet, used by recede-to-frontier to push a time
// back to the frontier.
func (a Antichain[T]) Meet(t T) T {
	if len(a.elements) == 0 {
		return t
	}
	acc := a.elements[0]
	for _, e := range a.elements[1:] {
		acc = acc.Meet(e)
	}
	return acc.Meet(t)
}

// Elements returns the antichain's representative timestamps.
func (a Antichain[T]) Elements() []T {
	return a.elements
}

// IsEmpty reports whether the antichain has no elements, representing
// the frontier at negative infinity (used only for the lower bound of
// the very first batch in a trace).
func (a Antichain[T]) IsEmpty() bool {
	return len(a.elements) == 0
}
