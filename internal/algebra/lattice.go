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

package algebra

// A Lattice is a bounded join-semilattice timestamp: it supports a
// pairwise least upper bound (Join), a pairwise greatest lower bound
// (Meet), and a total "less-equal" comparison induced by the product
// order. Types implementing Lattice[T] instantiate T with themselves
// so that Join/Meet/LessEqual compose without boxing.
type Lattice[T any] interface {
	// Join returns the least upper bound of the receiver and other.
	Join(other T) T
	// Meet returns the greatest lower bound of the receiver and other.
	Meet(other T) T
	// LessEqual reports whether the receiver precedes or equals other
	// in the product order.
	LessEqual(other T) bool
	// IsMinimum reports whether the receiver is the lattice's least
	// element.
	IsMinimum() bool
}

// Equal reports whether a and b denote the same point in the lattice,
// i.e. a <= b and b <= a.
func Equal[T Lattice[T]](a, b T) bool {
	return a.LessEqual(b) && b.LessEqual(a)
}

// Ordered is implemented by record keys and values: a type capable of
// a total order comparison, used to keep batches sorted and to drive
// cursor seeks. CompareTo must return a negative number, zero, or a
// positive number as the receiver is less than, equal to, or greater
// than other.
type Ordered[T any] interface {
	CompareTo(other T) int
}

// LatticeOrdered is the constraint satisfied by every timestamp type
// this module ships: a lattice that is additionally totally ordered,
// so that batches can keep their rows in a single sorted sequence
// while still supporting Join/Meet/LessEqual for recede-to-frontier
// and frontier comparisons.
type LatticeOrdered[T any] interface {
	Lattice[T]
	Ordered[T]
}

// Unit is the trivial Ordered value used as the inner (value) axis of
// an un-indexed Z-set, where a batch's "item shape" is a bare key.
type Unit struct{}

// CompareTo implements Ordered[Unit]; all Unit values are equal.
func (Unit) CompareTo(Unit) int { return 0 }
