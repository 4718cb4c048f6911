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

import "github.com/cockroachdb/ivm/internal/algebra"

// Pair is the (L-value, R-value) item shape an incremental join
// emits. Ordering is L first, then R, so matches emit in (L-key,
// L-val, R-val) ascending order: the L-key ordering falls out of the
// surrounding batch's key order, and this type supplies the rest.
type Pair[L algebra.Ordered[L], R algebra.Ordered[R]] struct {
	L L
	R R
}

// CompareTo implements algebra.Ordered[Pair[L, R]].
func (p Pair[L, R]) CompareTo(other Pair[L, R]) int {
	if c := p.L.CompareTo(other.L); c != 0 {
		return c
	}
	return p.R.CompareTo(other.R)
}
