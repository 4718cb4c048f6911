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

// FlatTime is the unit lattice `()`: the canonical timestamp for flat
// (non-nested) circuits. There is exactly one value, it is its own
// minimum, and it is comparable-equal to itself.
type FlatTime struct{}

var _ Lattice[FlatTime] = FlatTime{}

// Join implements Lattice[FlatTime].
func (FlatTime) Join(FlatTime) FlatTime { return FlatTime{} }

// Meet implements Lattice[FlatTime].
func (FlatTime) Meet(FlatTime) FlatTime { return FlatTime{} }

// LessEqual implements Lattice[FlatTime]; always true.
func (FlatTime) LessEqual(FlatTime) bool { return true }

// IsMinimum implements Lattice[FlatTime]; always true.
func (FlatTime) IsMinimum() bool { return true }

// CompareTo implements Ordered[FlatTime]; all FlatTime values are
// equal.
func (FlatTime) CompareTo(FlatTime) int { return 0 }

// NestedTime is a (outer epoch, inner iteration) pair, the canonical
// timestamp for a circuit nested one level deep under a delay
// operator. Comparison is by the product order: a <= b iff both
// coordinates of a are <= the corresponding coordinate of b.
type NestedTime struct {
	Epoch uint64
	Iter  uint64
}

var _ Lattice[NestedTime] = NestedTime{}

// Join implements Lattice[NestedTime] as the coordinatewise maximum.
func (t NestedTime) Join(other NestedTime) NestedTime {
	return NestedTime{Epoch: max64(t.Epoch, other.Epoch), Iter: max64(t.Iter, other.Iter)}
}

// Meet implements Lattice[NestedTime] as the coordinatewise minimum.
func (t NestedTime) Meet(other NestedTime) NestedTime {
	return NestedTime{Epoch: min64(t.Epoch, other.Epoch), Iter: min64(t.Iter, other.Iter)}
}

// LessEqual implements Lattice[NestedTime].
func (t NestedTime) LessEqual(other NestedTime) bool {
	return t.Epoch <= other.Epoch && t.Iter <= other.Iter
}

// IsMinimum implements Lattice[NestedTime].
func (t NestedTime) IsMinimum() bool {
	return t.Epoch == 0 && t.Iter == 0
}

// CompareTo gives NestedTime a total order for use as a map/sort key,
// outer epoch first. This is a refinement of the product order used
// only where a single linear order is required (e.g. sorting a
// batch's rows); it is not itself the lattice order.
func (t NestedTime) CompareTo(other NestedTime) int {
	if t.Epoch != other.Epoch {
		if t.Epoch < other.Epoch {
			return -1
		}
		return 1
	}
	switch {
	case t.Iter < other.Iter:
		return -1
	case t.Iter > other.Iter:
		return 1
	default:
		return 0
	}
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
