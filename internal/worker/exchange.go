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

package worker

import (
	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/circuit"
	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/operator"
	"github.com/cockroachdb/ivm/internal/zset"
)

// exchangeMesh is the shared channel fabric of one named exchange: one
// bounded channel per (sender, receiver) pair, preserving FIFO per
// pair with no ordering across senders. Capacity follows
// Config.ExchangeDepth, providing natural backpressure.
type exchangeMesh[K algebra.Ordered[K], V algebra.Ordered[V]] struct {
	chans [][]chan operator.Stream[K, V]
}

func newExchangeMesh[K algebra.Ordered[K], V algebra.Ordered[V]](workers, depth int) *exchangeMesh[K, V] {
	chans := make([][]chan operator.Stream[K, V], workers)
	for from := range chans {
		chans[from] = make([]chan operator.Stream[K, V], workers)
		for to := range chans[from] {
			chans[from][to] = make(chan operator.Stream[K, V], depth)
		}
	}
	return &exchangeMesh[K, V]{chans: chans}
}

// Exchange wires a re-sharding boundary into a shard's circuit: each
// tick, the batch on the in port is split by key hash, the pieces are
// routed to their owning workers, and the pieces arriving from every
// worker are merged onto the returned port. All shards referencing
// one name share a single mesh, so every worker must reach its
// exchange node once per tick or its peers would stall.
func Exchange[K RoutableKey[K], V algebra.Ordered[V]](
	s *Shard, name string, src *circuit.Node, in *circuit.Port[operator.Stream[K, V]],
) (*circuit.Node, *circuit.Port[operator.Stream[K, V]], error) {
	rt := s.rt
	workers := len(rt.shards)
	m := rt.mesh(name, func() any {
		return newExchangeMesh[K, V](workers, rt.cfg.ExchangeDepth)
	}).(*exchangeMesh[K, V])

	out := &circuit.Port[operator.Stream[K, V]]{}
	me := s.idx
	node := s.Builder().Add("exchange-"+name, func() (bool, error) {
		// Split the local batch into one piece per destination.
		pieces := make([]*zset.Batcher[K, V, algebra.FlatTime], workers)
		for i := range pieces {
			pieces[i] = zset.NewBatcher[K, V, algebra.FlatTime]()
		}
		batch := in.Get()
		for _, e := range batch.Entries() {
			pieces[int(e.Key.Hash64()%uint64(workers))].Add(e)
		}

		f := zset.NewAntichain(algebra.FlatTime{})
		for to := 0; to < workers; to++ {
			piece := pieces[to].Seal(f, f)
			if !piece.IsEmpty() {
				exchangeRowsSent.Add(float64(piece.Len()))
			}
			select {
			case m.chans[me][to] <- piece:
			case <-rt.abortCh():
				return false, ivmerrors.NewRuntimeError("exchange send after shutdown")
			}
		}

		// Gather one piece from every sender, including ourselves.
		merged := zset.NewBatcher[K, V, algebra.FlatTime]()
		for from := 0; from < workers; from++ {
			select {
			case piece := <-m.chans[from][me]:
				merged.AddBatch(piece)
				exchangeRowsReceived.Add(float64(piece.Len()))
			case <-rt.abortCh():
				return false, ivmerrors.NewRuntimeError("exchange receive after shutdown")
			}
		}
		result := merged.Seal(f, f)
		out.Set(result)
		return !result.IsEmpty(), nil
	}, src)
	return node, out, nil
}
