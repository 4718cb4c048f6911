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
	"context"

	"github.com/cockroachdb/ivm/internal/util/stopper"
	"github.com/google/wire"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideStopper,
	ProvideRuntime,
)

// BuildFn assembles one worker's copy of the circuit. It is invoked
// once per worker at runtime construction.
type BuildFn func(s *Shard) error

// ProvideStopper is called by Wire to derive the runtime's lifetime
// context.
func ProvideStopper(ctx context.Context) *stopper.Context {
	return stopper.WithContext(ctx)
}

// ProvideRuntime is called by Wire to construct the multi-worker
// runtime. The returned cleanup kills the runtime, waiting for any
// in-progress tick.
func ProvideRuntime(ctx *stopper.Context, config *Config, build BuildFn) (*Runtime, func(), error) {
	if err := config.Preflight(); err != nil {
		return nil, nil, err
	}
	rt, err := Build(ctx, config, build)
	if err != nil {
		return nil, nil, err
	}
	return rt, func() { _ = rt.Kill() }, nil
}
