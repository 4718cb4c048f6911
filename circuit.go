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

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/ivm/internal/algebra"
	"github.com/cockroachdb/ivm/internal/circuit"
	"github.com/cockroachdb/ivm/internal/operator"
	"github.com/cockroachdb/ivm/internal/persist"
	"github.com/cockroachdb/ivm/internal/util/stopper"
	"github.com/cockroachdb/ivm/internal/wire"
	"github.com/cockroachdb/ivm/internal/worker"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protowire"
)

// outputRow is one printed line of an output delta.
type outputRow struct {
	part   string
	at     int64
	agg    string
	weight int64
}

// demo owns the running circuit and its driver-side handles,
// abstracting over the aggregate the user selected.
type demo struct {
	rt   *worker.Runtime
	push func(line string) error
	step func() error
	kill func() error
}

// newDemo assembles the rolling-aggregate circuit selected by the
// --aggregate flag.
func newDemo(cfg *worker.Config, snapCfg *persist.Config) (*demo, func(), error) {
	rng := operator.RelRange{Before: *before, After: *after}
	out := bufio.NewWriter(os.Stdout)

	storeCtx := stopper.WithContext(context.Background())
	store, storeCleanup, err := persist.ProvideStore(storeCtx, snapCfg)
	if err != nil {
		return nil, nil, err
	}

	switch *aggregate {
	case "avg":
		rt, cleanup, err := worker.NewRuntime(context.Background(), cfg,
			averageCircuit(rng))
		if err != nil {
			storeCleanup()
			return nil, nil, err
		}
		cleanups := func() {
			cleanup()
			storeCleanup()
		}
		rows, err := worker.InputOf[zset.StringVal, operator.Timed[zset.IntKey]](rt, "rows")
		if err != nil {
			cleanups()
			return nil, nil, err
		}
		outs, err := worker.OutputOf[zset.StringVal, operator.WinRow[operator.NullInt64]](rt, "out")
		if err != nil {
			cleanups()
			return nil, nil, err
		}
		// The materialized view of all output deltas so far; mirrored
		// into the snapshot store at shutdown when one is configured.
		materialized := operator.NewIntegrate[zset.StringVal, operator.WinRow[operator.NullInt64]]()
		return &demo{
			rt:   rt,
			push: pushRow(rows),
			step: func() error {
				if err := rt.Step(); err != nil {
					return err
				}
				delta := outs.Consolidate()
				materialized.Step(delta)
				var printed []outputRow
				for _, e := range delta.Entries() {
					agg := "NULL"
					if e.Val.Agg.Valid {
						agg = fmt.Sprintf("%d", e.Val.Agg.Int64)
					}
					printed = append(printed, outputRow{
						part: string(e.Key), at: e.Val.At, agg: agg, weight: int64(e.Weight),
					})
				}
				printDelta(out, printed)
				return nil
			},
			kill: func() error {
				if store != nil {
					if err := persist.SaveSpine(storeCtx, store, materialized.Trace(),
						wire.String[zset.StringVal](), winRowCodec(), wire.NestedTime()); err != nil {
						return err
					}
				}
				return rt.Kill()
			},
		}, cleanups, nil
	case "count":
		if store != nil {
			log.Warn("snapshots are only taken of the avg materialization")
		}
		rt, cleanup, err := worker.NewRuntime(context.Background(), cfg,
			countCircuit(rng))
		if err != nil {
			storeCleanup()
			return nil, nil, err
		}
		cleanups := func() {
			cleanup()
			storeCleanup()
		}
		rows, err := worker.InputOf[zset.StringVal, operator.Timed[zset.IntKey]](rt, "rows")
		if err != nil {
			cleanups()
			return nil, nil, err
		}
		outs, err := worker.OutputOf[zset.StringVal, operator.WinRow[zset.IntKey]](rt, "out")
		if err != nil {
			cleanups()
			return nil, nil, err
		}
		return &demo{
			rt:   rt,
			push: pushRow(rows),
			step: func() error {
				if err := rt.Step(); err != nil {
					return err
				}
				var printed []outputRow
				for _, e := range outs.Consolidate().Entries() {
					printed = append(printed, outputRow{
						part: string(e.Key), at: e.Val.At,
						agg: fmt.Sprintf("%d", int64(e.Val.Agg)), weight: int64(e.Weight),
					})
				}
				printDelta(out, printed)
				return nil
			},
			kill: rt.Kill,
		}, cleanups, nil
	default:
		storeCleanup()
		return nil, nil, errors.Errorf("unknown aggregate %q", *aggregate)
	}
}

// winRowCodec serializes a (time, nullable aggregate) output row: the
// event time as a zig-zag varint, then a validity byte, then the
// value.
func winRowCodec() wire.Codec[operator.WinRow[operator.NullInt64]] {
	return wire.Codec[operator.WinRow[operator.NullInt64]]{
		Append: func(buf []byte, v operator.WinRow[operator.NullInt64]) []byte {
			buf = protowire.AppendVarint(buf, protowire.EncodeZigZag(v.At))
			if v.Agg.Valid {
				buf = append(buf, 1)
				return protowire.AppendVarint(buf, protowire.EncodeZigZag(v.Agg.Int64))
			}
			return append(buf, 0)
		},
		Consume: func(buf []byte) (operator.WinRow[operator.NullInt64], int, error) {
			var row operator.WinRow[operator.NullInt64]
			at, n := protowire.ConsumeVarint(buf)
			if n < 0 {
				return row, 0, errors.New("truncated row time")
			}
			row.At = protowire.DecodeZigZag(at)
			if n >= len(buf) {
				return row, 0, errors.New("truncated row validity")
			}
			valid := buf[n]
			n++
			if valid == 0 {
				return row, n, nil
			}
			v, m := protowire.ConsumeVarint(buf[n:])
			if m < 0 {
				return row, 0, errors.New("truncated row value")
			}
			row.Agg = operator.NullInt64{Int64: protowire.DecodeZigZag(v), Valid: true}
			return row, n + m, nil
		},
	}
}

// pushRow parses and routes one input line into the sharded input.
func pushRow(
	rows *worker.InputHandle[zset.StringVal, operator.Timed[zset.IntKey]],
) func(line string) error {
	return func(line string) error {
		part, at, amount, weight, err := parseRow(line)
		if err != nil {
			return err
		}
		rows.Push(zset.StringVal(part),
			operator.Timed[zset.IntKey]{At: at, Payload: zset.IntKey(amount)},
			algebra.Weight(weight))
		return nil
	}
}

// averageCircuit wires input -> rolling average -> output on each
// worker.
func averageCircuit(rng operator.RelRange) worker.BuildFn {
	return func(s *worker.Shard) error {
		in, inPort, err := worker.Input[zset.StringVal, operator.Timed[zset.IntKey]](s, "rows")
		if err != nil {
			return err
		}
		win := operator.NewWindow[zset.StringVal, zset.IntKey](rng, operator.Average[zset.IntKey]())
		outPort := &circuit.Port[operator.Stream[zset.StringVal, operator.WinRow[operator.NullInt64]]]{}
		wn := s.Builder().Add("window", func() (bool, error) {
			delta := win.Step(inPort.Get())
			outPort.Set(delta)
			return !delta.IsEmpty(), nil
		}, in)
		_, err = worker.Output(s, "out", wn, outPort)
		return err
	}
}

// countCircuit is averageCircuit with the count aggregate, whose
// empty windows report 0 rather than NULL.
func countCircuit(rng operator.RelRange) worker.BuildFn {
	return func(s *worker.Shard) error {
		in, inPort, err := worker.Input[zset.StringVal, operator.Timed[zset.IntKey]](s, "rows")
		if err != nil {
			return err
		}
		win := operator.NewWindow[zset.StringVal, zset.IntKey](rng, operator.Count[zset.IntKey]())
		outPort := &circuit.Port[operator.Stream[zset.StringVal, operator.WinRow[zset.IntKey]]]{}
		wn := s.Builder().Add("window", func() (bool, error) {
			delta := win.Step(inPort.Get())
			outPort.Set(delta)
			return !delta.IsEmpty(), nil
		}, in)
		_, err = worker.Output(s, "out", wn, outPort)
		return err
	}
}
