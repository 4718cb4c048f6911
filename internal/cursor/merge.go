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
	"sort"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/zset"
)

// Merge is a k-way merge over several cursors, presenting their union
// as a single Cursor that returns each distinct (key, value) once,
// with weights at equal times summed across sources. Used by a
// trace's Cursor() method to present the logical union of every
// resident batch.
type Merge[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	sources []Cursor[K, V, T]

	keyActive []int
	curKey    K
	keyValid  bool

	valActive []int
	curVal    V
	valValid  bool
}

var _ Cursor[algebra.Unit, algebra.Unit, algebra.FlatTime] = (*Merge[algebra.Unit, algebra.Unit, algebra.FlatTime])(nil)

// NewMerge returns a cursor over the union of sources, positioned at
// the first key.
func NewMerge[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](sources ...Cursor[K, V, T]) *Merge[K, V, T] {
	m := &Merge[K, V, T]{sources: sources}
	m.RewindKeys()
	return m
}

func (m *Merge[K, V, T]) recomputeKey() {
	m.keyActive = m.keyActive[:0]
	m.keyValid = false
	var min K
	for i, s := range m.sources {
		if !s.KeyValid() {
			continue
		}
		k := s.Key()
		if !m.keyValid || k.CompareTo(min) < 0 {
			min = k
			m.keyValid = true
			m.keyActive = m.keyActive[:0]
			m.keyActive = append(m.keyActive, i)
		} else if k.CompareTo(min) == 0 {
			m.keyActive = append(m.keyActive, i)
		}
	}
	m.curKey = min
}

func (m *Merge[K, V, T]) recomputeVal() {
	m.valActive = m.valActive[:0]
	m.valValid = false
	var min V
	for _, i := range m.keyActive {
		s := m.sources[i]
		if !s.ValValid() {
			continue
		}
		v := s.Val()
		if !m.valValid || v.CompareTo(min) < 0 {
			min = v
			m.valValid = true
			m.valActive = m.valActive[:0]
			m.valActive = append(m.valActive, i)
		} else if v.CompareTo(min) == 0 {
			m.valActive = append(m.valActive, i)
		}
	}
	m.curVal = min
}

func (m *Merge[K, V, T]) KeyValid() bool { return m.keyValid }
func (m *Merge[K, V, T]) ValValid() bool { return m.valValid }
func (m *Merge[K, V, T]) Key() K         { return m.curKey }
func (m *Merge[K, V, T]) Val() V         { return m.curVal }

func (m *Merge[K, V, T]) StepKey() {
	for _, i := range m.keyActive {
		m.sources[i].StepKey()
	}
	m.recomputeKey()
	m.recomputeVal()
}

func (m *Merge[K, V, T]) StepVal() {
	for _, i := range m.valActive {
		m.sources[i].StepVal()
	}
	m.recomputeVal()
}

func (m *Merge[K, V, T]) SeekKey(k K) {
	for _, s := range m.sources {
		s.SeekKey(k)
	}
	m.recomputeKey()
	m.recomputeVal()
}

func (m *Merge[K, V, T]) SeekVal(v V) {
	for _, i := range m.keyActive {
		m.sources[i].SeekVal(v)
	}
	m.recomputeVal()
}

func (m *Merge[K, V, T]) RewindKeys() {
	for _, s := range m.sources {
		s.RewindKeys()
	}
	m.recomputeKey()
	m.recomputeVal()
}

func (m *Merge[K, V, T]) RewindVals() {
	for _, i := range m.keyActive {
		m.sources[i].RewindVals()
	}
	m.recomputeVal()
}

type timeWeight[T any] struct {
	t T
	w algebra.Weight
}

// collect gathers the (time, weight) history across every source
// currently sharing the merge's (key, value) position, sorts it by
// time, and then coalesces entries that land on the same time,
// summing weights and dropping zero results, so the result is emitted
// in strictly ascending time order.
func (m *Merge[K, V, T]) collect() []timeWeight[T] {
	var raw []timeWeight[T]
	for _, i := range m.valActive {
		m.sources[i].MapTimes(func(t T, w algebra.Weight) {
			raw = append(raw, timeWeight[T]{t: t, w: w})
		})
	}
	if len(raw) == 0 {
		return nil
	}
	sort.Slice(raw, func(a, b int) bool { return raw[a].t.CompareTo(raw[b].t) < 0 })
	out := raw[:0:0]
	i := 0
	for i < len(raw) {
		j := i + 1
		w := raw[i].w
		for j < len(raw) && raw[j].t.CompareTo(raw[i].t) == 0 {
			w = w.Add(raw[j].w)
			j++
		}
		if !w.IsZero() {
			out = append(out, timeWeight[T]{t: raw[i].t, w: w})
		}
		i = j
	}
	return out
}

func (m *Merge[K, V, T]) MapTimes(f func(t T, w algebra.Weight)) {
	for _, tw := range m.collect() {
		f(tw.t, tw.w)
	}
}

func (m *Merge[K, V, T]) MapTimesThrough(upper zset.Antichain[T], f func(t T, w algebra.Weight)) {
	for _, tw := range m.collect() {
		if dominatedBy(upper, tw.t) {
			f(tw.t, tw.w)
		}
	}
}

func (m *Merge[K, V, T]) Weight() algebra.Weight {
	var w algebra.Weight
	for _, tw := range m.collect() {
		w = w.Add(tw.w)
	}
	return w
}
