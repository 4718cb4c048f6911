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

// Package ivmtest provides a self-contained multi-worker circuit
// fixture for integration tests: a partitioned rolling-average
// pipeline behind the driver-side input and output handles. One can
// be constructed by calling NewFixture or by incorporating TestSet
// into a Wire provider set.
package ivmtest

import (
	"github.com/cockroachdb/ivm/internal/circuit"
	"github.com/cockroachdb/ivm/internal/operator"
	"github.com/cockroachdb/ivm/internal/util/stopper"
	"github.com/cockroachdb/ivm/internal/worker"
	"github.com/cockroachdb/ivm/internal/zset"
	"github.com/google/wire"
)

// TestSet is used by Wire.
var TestSet = wire.NewSet(
	ProvideConfig,
	ProvideRuntime,
	ProvideFixture,
	worker.ProvideStopper,
)

// Fixture holds a running rolling-average circuit and its handles.
type Fixture struct {
	Context *stopper.Context
	Config  *worker.Config
	Runtime *worker.Runtime

	Rows     *worker.InputHandle[zset.StringVal, operator.Timed[zset.IntKey]]
	Averages *worker.OutputHandle[zset.StringVal, operator.WinRow[operator.NullInt64]]
}

// Step advances the circuit one tick and returns the consolidated
// output delta.
func (f *Fixture) Step() (operator.Stream[zset.StringVal, operator.WinRow[operator.NullInt64]], error) {
	if err := f.Runtime.Step(); err != nil {
		return nil, err
	}
	return f.Averages.Consolidate(), nil
}

// WindowRange is the relative window every fixture circuit uses: the
// 150 time units strictly preceding each row.
var WindowRange = operator.RelRange{Before: 150, After: 1}

// ProvideConfig is called by Wire and returns a three-worker
// configuration.
func ProvideConfig() *worker.Config {
	return &worker.Config{Workers: 3}
}

// ProvideRuntime is called by Wire to build the rolling-average
// circuit on every worker.
func ProvideRuntime(ctx *stopper.Context, config *worker.Config) (*worker.Runtime, func(), error) {
	rt, err := worker.Build(ctx, config, AverageCircuit(WindowRange))
	if err != nil {
		return nil, nil, err
	}
	return rt, func() { _ = rt.Kill() }, nil
}

// ProvideFixture is called by Wire.
func ProvideFixture(
	ctx *stopper.Context, config *worker.Config, rt *worker.Runtime,
) (*Fixture, error) {
	rows, err := worker.InputOf[zset.StringVal, operator.Timed[zset.IntKey]](rt, "rows")
	if err != nil {
		return nil, err
	}
	averages, err := worker.OutputOf[zset.StringVal, operator.WinRow[operator.NullInt64]](rt, "averages")
	if err != nil {
		return nil, err
	}
	return &Fixture{
		Context:  ctx,
		Config:   config,
		Runtime:  rt,
		Rows:     rows,
		Averages: averages,
	}, nil
}

// AverageCircuit returns a worker build function wiring an input of
// (partition, (time, amount)) rows through a partitioned rolling
// average into an output named "averages".
func AverageCircuit(rng operator.RelRange) worker.BuildFn {
	return func(s *worker.Shard) error {
		in, inPort, err := worker.Input[zset.StringVal, operator.Timed[zset.IntKey]](s, "rows")
		if err != nil {
			return err
		}
		win := operator.NewWindow[zset.StringVal, zset.IntKey](rng, operator.Average[zset.IntKey]())
		outPort := &circuit.Port[operator.Stream[zset.StringVal, operator.WinRow[operator.NullInt64]]]{}
		wn := s.Builder().Add("window", func() (bool, error) {
			out := win.Step(inPort.Get())
			outPort.Set(out)
			return !out.IsEmpty(), nil
		}, in)
		_, err = worker.Output(s, "averages", wn, outPort)
		return err
	}
}
