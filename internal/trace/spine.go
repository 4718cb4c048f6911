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

package trace

import (
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/cursor"
	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/util/notify"
	"github.com/cockroachdb/ivm/internal/zset"
	log "github.com/sirupsen/logrus"
)

// level holds one LSM level of a spine: idle batches in FIFO order
// (oldest first) and at most one in-progress Merger over the two
// oldest batches taken from that list. Batches that arrive while a
// merge runs wait in the list; the list itself is not capped at two.
type level[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	batches []*zset.Batch[K, V, T]
	merger  *Merger[K, V, T]
}

// Spine is the trace data structure: an
// ordered, contiguous collection of batches organized into
// exponentially-sized levels, merged progressively under a fuel
// budget. It owns its internal structure exclusively; batches
// themselves remain shared, immutable snapshots that may also be held
// by cursors or by other mergers.
type Spine[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]] struct {
	levels []*level[K, V, T]
	dirty  *notify.Var[bool]

	// upper is the frontier of the most recent insert; the next
	// batch's lower bound must match it so that the resident
	// intervals stay contiguous.
	upper    zset.Antichain[T]
	anyBatch bool
}

// New returns an empty spine.
func New[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]]() *Spine[K, V, T] {
	return &Spine[K, V, T]{dirty: notify.New(false)}
}

// Insert appends batch at level 0. The lower bound of batch must
// equal the spine's current upper bound; a violation is a scheduling
// bug and panics with a SchedulerError, which the worker runtime
// converts into a poisoned tick.
func (s *Spine[K, V, T]) Insert(batch *zset.Batch[K, V, T]) {
	if s.anyBatch && !frontiersEqual(s.upper, batch.Lower()) {
		panic(ivmerrors.NewSchedulerError("batch lower bound does not meet the trace's upper bound"))
	}
	s.upper = batch.Upper()
	s.anyBatch = true

	spineBatchesInserted.Inc()
	if !batch.IsEmpty() {
		s.dirty.Update(func(bool) bool { return true })
	}
	s.insertAt(0, batch)
}

// frontiersEqual reports whether two antichains describe the same
// frontier: every element of one has an equal element in the other.
func frontiersEqual[T algebra.LatticeOrdered[T]](a, b zset.Antichain[T]) bool {
	if len(a.Elements()) != len(b.Elements()) {
		return false
	}
	for _, e := range a.Elements() {
		found := false
		for _, f := range b.Elements() {
			if algebra.Equal(e, f) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Spine[K, V, T]) insertAt(levelIdx int, batch *zset.Batch[K, V, T]) {
	for levelIdx >= len(s.levels) {
		s.levels = append(s.levels, &level[K, V, T]{})
	}
	lvl := s.levels[levelIdx]
	lvl.batches = append(lvl.batches, batch)
	if lvl.merger == nil && len(lvl.batches) >= 2 {
		a, b := lvl.batches[0], lvl.batches[1]
		rest := append([]*zset.Batch[K, V, T]{}, lvl.batches[2:]...)
		lvl.batches = rest
		lvl.merger = NewMerger(a, b)
		log.WithFields(log.Fields{"level": levelIdx}).Trace("scheduled spine merge")
	}
}

// Exert performs up to *fuel units of progressive merge work, spread
// across levels from the bottom up so that promotions produced within
// one call can themselves make further progress in the same call.
func (s *Spine[K, V, T]) Exert(fuel *int) {
	for i := 0; i < len(s.levels) && *fuel > 0; i++ {
		lvl := s.levels[i]
		if lvl.merger == nil {
			continue
		}
		before := *fuel
		done := lvl.merger.Work(fuel)
		spineMergeFuelSpent.Add(float64(before - *fuel))
		if done {
			merged := lvl.merger.Done()
			lvl.merger = nil
			spineMergesCompleted.Inc()
			s.insertAt(i+1, merged)
		}
	}
}

// Consolidate forces every outstanding merge to completion and
// returns the single remaining batch, which is empty if the trace has
// no content.
func (s *Spine[K, V, T]) Consolidate() *zset.Batch[K, V, T] {
	// Drain every in-progress merger with an effectively unlimited
	// fuel grant; a merger only ever consumes fuel proportional to
	// its own two inputs, so the total work here is bounded by the
	// trace's total resident size.
	hugeFuel := 1 << 30
	for {
		s.Exert(&hugeFuel)
		stillMerging := false
		for _, lvl := range s.levels {
			if lvl.merger != nil {
				stillMerging = true
				break
			}
		}
		if !stillMerging {
			break
		}
	}

	batcher := zset.NewBatcher[K, V, T]()
	var lowers, uppers []zset.Antichain[T]
	haveAny := false
	for _, lvl := range s.levels {
		for _, b := range lvl.batches {
			batcher.AddBatch(b)
			lowers = append(lowers, b.Lower())
			uppers = append(uppers, b.Upper())
			haveAny = true
		}
	}
	result := batcher.Seal(meetAll(lowers), joinAll(uppers))

	// Replace all levels with the single consolidated batch so that
	// subsequent inserts/merges start from a clean, minimal state.
	s.levels = nil
	if haveAny {
		s.insertAt(0, result)
	}
	return result
}

// meetAll folds Meet across every element of every antichain in
// frontiers. Level order does not imply time order (a level's
// residents may be newer than another level's), so the trace's true
// lower frontier must be computed this way rather than by taking
// whichever batch is encountered first.
func meetAll[T algebra.LatticeOrdered[T]](frontiers []zset.Antichain[T]) zset.Antichain[T] {
	var acc T
	first := true
	for _, f := range frontiers {
		for _, e := range f.Elements() {
			if first {
				acc = e
				first = false
			} else {
				acc = acc.Meet(e)
			}
		}
	}
	if first {
		return zset.Antichain[T]{}
	}
	return zset.NewAntichain(acc)
}

// joinAll is meetAll's dual, used to compute the trace's true upper
// frontier.
func joinAll[T algebra.LatticeOrdered[T]](frontiers []zset.Antichain[T]) zset.Antichain[T] {
	var acc T
	first := true
	for _, f := range frontiers {
		for _, e := range f.Elements() {
			if first {
				acc = e
				first = false
			} else {
				acc = acc.Join(e)
			}
		}
	}
	if first {
		return zset.Antichain[T]{}
	}
	return zset.NewAntichain(acc)
}

// RecedeTo pushes back the timestamps of every resident batch to the
// given frontier. Because receding
// only ever rewrites a batch's lower bound (never its upper bound),
// the trace's interval-contiguity invariant holds automatically after
// the operation: recede_to is idempotent in content for a fixed
// frontier, so calling it twice in a row with the same frontier
// produces the same result as calling it once.
func (s *Spine[K, V, T]) RecedeTo(frontier zset.Antichain[T]) {
	// Drain in-flight merges first: a merger's two inputs were
	// captured before receding, so we must not let them interleave
	// with a half-receded batch.
	hugeFuel := 1 << 30
	for {
		s.Exert(&hugeFuel)
		stillMerging := false
		for _, lvl := range s.levels {
			if lvl.merger != nil {
				stillMerging = true
				break
			}
		}
		if !stillMerging {
			break
		}
	}

	changed := false
	for _, lvl := range s.levels {
		for i, b := range lvl.batches {
			if b.IsEmpty() {
				continue
			}
			receded := zset.RecedeTo(b, frontier)
			lvl.batches[i] = receded
			changed = true
		}
	}
	if changed {
		spineRecedeCount.Inc()
		s.dirty.Update(func(bool) bool { return true })
	}
}

// Cursor returns a cursor over the logical union of every resident
// batch, implemented as a k-way merge.
func (s *Spine[K, V, T]) Cursor() cursor.Cursor[K, V, T] {
	var sources []cursor.Cursor[K, V, T]
	for _, lvl := range s.levels {
		if lvl.merger != nil {
			a, b := lvl.merger.Inputs()
			sources = append(sources, cursor.Over(a), cursor.Over(b))
			continue
		}
		for _, b := range lvl.batches {
			sources = append(sources, cursor.Over(b))
		}
	}
	return cursor.NewMerge(sources...)
}

// Snapshot returns the resident batches grouped by level, bottom
// level first. In-progress merges contribute their pre-merge inputs,
// the same view a concurrently-acquired cursor observes, so a
// snapshot never captures a partial merge.
func (s *Spine[K, V, T]) Snapshot() [][]*zset.Batch[K, V, T] {
	out := make([][]*zset.Batch[K, V, T], len(s.levels))
	for i, lvl := range s.levels {
		if lvl.merger != nil {
			a, b := lvl.merger.Inputs()
			out[i] = append(out[i], a, b)
		}
		out[i] = append(out[i], lvl.batches...)
	}
	return out
}

// FromSnapshot rebuilds a spine from batches grouped by level, as
// returned by Snapshot. Levels holding two or more batches have their
// merges rescheduled.
func FromSnapshot[K algebra.Ordered[K], V algebra.Ordered[V], T algebra.LatticeOrdered[T]](
	levels [][]*zset.Batch[K, V, T],
) *Spine[K, V, T] {
	s := New[K, V, T]()
	var uppers []zset.Antichain[T]
	for i, batches := range levels {
		for _, b := range batches {
			s.insertAt(i, b)
			uppers = append(uppers, b.Upper())
			s.anyBatch = true
		}
	}
	if s.anyBatch {
		s.upper = joinAll(uppers)
	}
	return s
}

// Dirty reports whether the trace has had non-empty work (an insert
// of a non-empty batch, or a recede_to over at least one non-empty
// batch) since the flag was last cleared.
func (s *Spine[K, V, T]) Dirty() bool {
	v, _ := s.dirty.Get()
	return v
}

// ClearDirtyFlag resets the dirty flag to false.
func (s *Spine[K, V, T]) ClearDirtyFlag() {
	s.dirty.Update(func(bool) bool { return false })
}
