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

// Group is a derived value-group view: given a base cursor
// positioned on some key, it exposes
// the base's values as its own keys, with a unit-valued inner axis.
// StepKey on the group cursor is StepVal on the base; MapTimes clips
// histories to the antichain supplied at construction time.
type Group[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	base        Cursor[K, V, T]
	clip        zset.Antichain[T]
	consumedVal bool
}

var _ Cursor[algebra.Unit, algebra.Unit, algebra.FlatTime] = (*Group[algebra.Unit, algebra.Unit, algebra.FlatTime])(nil)

// NewGroup constructs a Group cursor over base's current key, clipping
// every time history to clip. base must already be positioned
// (KeyValid) on the key whose values the group cursor will walk.
func NewGroup[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	base Cursor[K, V, T], clip zset.Antichain[T],
) *Group[K, V, T] {
	base.RewindVals()
	return &Group[K, V, T]{base: base, clip: clip}
}

func (g *Group[K, V, T]) KeyValid() bool { return g.base.ValValid() }
func (g *Group[K, V, T]) ValValid() bool { return g.base.ValValid() && !g.consumedVal }

func (g *Group[K, V, T]) Key() V          { return g.base.Val() }
func (g *Group[K, V, T]) Val() algebra.Unit { return algebra.Unit{} }

func (g *Group[K, V, T]) StepKey() {
	g.base.StepVal()
	g.consumedVal = false
}

func (g *Group[K, V, T]) StepVal() { g.consumedVal = true }

func (g *Group[K, V, T]) SeekKey(v V) {
	g.base.SeekVal(v)
	g.consumedVal = false
}

func (g *Group[K, V, T]) SeekVal(algebra.Unit) {}

func (g *Group[K, V, T]) RewindKeys() {
	g.base.RewindVals()
	g.consumedVal = false
}

func (g *Group[K, V, T]) RewindVals() { g.consumedVal = false }

func (g *Group[K, V, T]) MapTimes(f func(t T, w algebra.Weight)) {
	g.MapTimesThrough(g.clip, f)
}

func (g *Group[K, V, T]) MapTimesThrough(upper zset.Antichain[T], f func(t T, w algebra.Weight)) {
	if !g.ValValid() {
		return
	}
	g.base.MapTimesThrough(g.clip, func(t T, w algebra.Weight) {
		if dominatedBy(upper, t) {
			f(t, w)
		}
	})
}

func (g *Group[K, V, T]) Weight() algebra.Weight {
	var w algebra.Weight
	g.MapTimes(func(_ T, weight algebra.Weight) { w = w.Add(weight) })
	return w
}
