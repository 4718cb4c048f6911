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
	"github.com/cockroachdb/ivm/internal/trace"
	"github.com/cockroachdb/ivm/internal/util/msort"
	"github.com/cockroachdb/ivm/internal/zset"
)

// Timed is the value shape the rolling window consumes: an event time
// paired with a payload. Ordering is by time first, so a partition's
// values iterate in event-time order.
type Timed[P algebra.Ordered[P]] struct {
	At      int64
	Payload P
}

// CompareTo implements algebra.Ordered[Timed[P]].
func (t Timed[P]) CompareTo(other Timed[P]) int {
	switch {
	case t.At < other.At:
		return -1
	case t.At > other.At:
		return 1
	default:
		return t.Payload.CompareTo(other.Payload)
	}
}

// WinRow is the value shape the rolling window emits: the input row's
// event time paired with the aggregate over its window.
type WinRow[O algebra.Ordered[O]] struct {
	At  int64
	Agg O
}

// CompareTo implements algebra.Ordered[WinRow[O]].
func (r WinRow[O]) CompareTo(other WinRow[O]) int {
	switch {
	case r.At < other.At:
		return -1
	case r.At > other.At:
		return 1
	default:
		return r.Agg.CompareTo(other.Agg)
	}
}

// RelRange expresses a window relative to a row's own event time t:
// the inclusive span [t-Before, t-After]. With After > 0 the row
// itself is excluded from its own window.
type RelRange struct {
	Before int64
	After  int64
}

// windowFor returns the absolute span covered by the window of a row
// at time t.
func (r RelRange) windowFor(t int64) msort.Range {
	return msort.Range{Lo: t - r.Before, Hi: t - r.After}
}

// affectedBy returns the span of event times whose windows could be
// altered by a change at time t: a row at time s sees t iff s lies in
// [t+After, t+Before], widened here to [t-Before, t+Before] so the
// changed row's own (possibly new) output is recomputed too.
func (r RelRange) affectedBy(t int64) msort.Range {
	return msort.Range{Lo: t - r.Before, Hi: t + r.Before}
}

// NullInt64 mirrors the shape of database/sql's NullInt64: an int64
// aggregate that is NULL when the window holds no qualifying row.
type NullInt64 struct {
	Int64 int64
	Valid bool
}

// CompareTo implements algebra.Ordered[NullInt64]; NULL sorts first.
func (n NullInt64) CompareTo(other NullInt64) int {
	switch {
	case !n.Valid && !other.Valid:
		return 0
	case !n.Valid:
		return -1
	case !other.Valid:
		return 1
	case n.Int64 < other.Int64:
		return -1
	case n.Int64 > other.Int64:
		return 1
	default:
		return 0
	}
}

// Average aggregates int64 payloads into their mean. The accumulator
// is a (sum, count) pair; an empty window finalizes to NULL rather
// than zero, matching the SQL convention for a window with no rows.
func Average[V ~int64]() Aggregation[V, SumCount, NullInt64] {
	return Aggregation[V, SumCount, NullInt64]{
		Zero: SumCount{},
		Lift: func(v V, w algebra.Weight) SumCount {
			return SumCount{Sum: satMul(int64(v), int64(w)), Count: int64(w)}
		},
		Combine: func(a, b SumCount) SumCount {
			return SumCount{Sum: satAdd(a.Sum, b.Sum), Count: satAdd(a.Count, b.Count)}
		},
		Finalize: func(acc SumCount) NullInt64 {
			if acc.Count == 0 {
				return NullInt64{}
			}
			return NullInt64{Int64: acc.Sum / acc.Count, Valid: true}
		},
	}
}

// Window is the partitioned rolling window aggregate: for every input
// row (partition, (t, payload)) it emits (partition, (t, agg)) where
// agg aggregates the payloads of the partition's rows whose event
// times fall in [t-Before, t-After]. Each tick touches only the rows
// whose windows a delta could have altered; everything else stands.
type Window[K algebra.Ordered[K], P algebra.Ordered[P], A any, O algebra.Ordered[O]] struct {
	rng    RelRange
	agg    Aggregation[P, A, O]
	input  *trace.Spine[K, Timed[P], algebra.NestedTime]
	output *trace.Spine[K, WinRow[O], algebra.NestedTime]
	tick   uint64
}

// NewWindow returns a Window operator over the given relative range
// and aggregation.
func NewWindow[K algebra.Ordered[K], P algebra.Ordered[P], A any, O algebra.Ordered[O]](
	rng RelRange, agg Aggregation[P, A, O],
) *Window[K, P, A, O] {
	return &Window[K, P, A, O]{
		rng:    rng,
		agg:    agg,
		input:  trace.New[K, Timed[P], algebra.NestedTime](),
		output: trace.New[K, WinRow[O], algebra.NestedTime](),
	}
}

// timedRow is one resident (event time, payload) row of a partition
// with its accumulated net weight.
type timedRow[P algebra.Ordered[P]] struct {
	val Timed[P]
	w   algebra.Weight
}

// Step ingests delta and returns the change in the window outputs:
// retractions of rows whose windows went stale plus insertions of
// their recomputed values.
func (op *Window[K, P, A, O]) Step(delta Stream[K, Timed[P]]) Stream[K, WinRow[O]] {
	lower, upper := nextTick(&op.tick)

	// Group the delta's rows by partition and collect, per partition,
	// the union of event-time spans its changes could affect.
	type affected struct {
		key    K
		ranges []msort.Range
	}
	var parts []affected
	for _, e := range delta.Entries() {
		if n := len(parts); n > 0 && parts[n-1].key.CompareTo(e.Key) == 0 {
			parts[n-1].ranges = append(parts[n-1].ranges, op.rng.affectedBy(e.Val.At))
		} else {
			parts = append(parts, affected{key: e.Key, ranges: []msort.Range{op.rng.affectedBy(e.Val.At)}})
		}
	}

	op.input.Insert(stampNested(delta, lower, upper))
	fuel := fuelFor(delta.Len())
	op.input.Exert(&fuel)

	out := zset.NewBatcher[K, WinRow[O], algebra.FlatTime]()
	in := op.input.Cursor()
	old := op.output.Cursor()

	for _, part := range parts {
		merged := msort.MergeRanges(part.ranges)

		// Retract every prior output whose event time the delta may
		// have invalidated; fresh values follow below.
		old.SeekKey(part.key)
		if old.KeyValid() && old.Key().CompareTo(part.key) == 0 {
			for old.ValValid() {
				row := old.Val()
				if msort.ContainsAny(merged, row.At) {
					if w := old.Weight(); !w.IsZero() {
						out.Add(zset.Entry[K, WinRow[O], algebra.FlatTime]{
							Item:   zset.ItemFrom(part.key, row),
							Weight: w.Negate(),
						})
					}
				}
				old.StepVal()
			}
		}

		// Materialize the partition's resident rows in event-time
		// order. The values of one key are already sorted by At, so
		// this is a single pass over the group.
		var rows []timedRow[P]
		in.SeekKey(part.key)
		if in.KeyValid() && in.Key().CompareTo(part.key) == 0 {
			for in.ValValid() {
				if w := in.Weight(); !w.IsZero() {
					rows = append(rows, timedRow[P]{val: in.Val(), w: w})
				}
				in.StepVal()
			}
		}

		// Recompute the window of every affected row with two edges
		// advancing monotonically in event-time order.
		left, right := 0, 0
		for _, r := range rows {
			if !msort.ContainsAny(merged, r.val.At) {
				continue
			}
			span := op.rng.windowFor(r.val.At)
			for left < len(rows) && rows[left].val.At < span.Lo {
				left++
			}
			if right < left {
				right = left
			}
			for right < len(rows) && rows[right].val.At <= span.Hi {
				right++
			}
			acc := op.agg.Zero
			for i := left; i < right; i++ {
				acc = op.agg.Combine(acc, op.agg.Lift(rows[i].val.Payload, rows[i].w))
			}
			out.Add(zset.Entry[K, WinRow[O], algebra.FlatTime]{
				Item:   zset.ItemFrom(part.key, WinRow[O]{At: r.val.At, Agg: op.agg.Finalize(acc)}),
				Weight: r.w,
			})
		}
	}

	f := flatFrontier()
	result := out.Seal(f, f)
	op.output.Insert(stampNested(result, lower, upper))
	return result
}

// Dirty reports whether the operator has unconsumed work.
func (op *Window[K, P, A, O]) Dirty() bool { return op.input.Dirty() || op.output.Dirty() }

// ClearDirtyFlag resets the operator's dirty flags.
func (op *Window[K, P, A, O]) ClearDirtyFlag() {
	op.input.ClearDirtyFlag()
	op.output.ClearDirtyFlag()
}
