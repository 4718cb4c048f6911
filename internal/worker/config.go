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
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Config contains the user-visible configuration for running a
// multi-worker circuit.
type Config struct {
	Workers       int
	ExchangeDepth int
	MaxPasses     int
	KillTimeout   time.Duration
}

// Bind registers flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.IntVar(
		&c.Workers,
		"workers",
		1,
		"the number of parallel workers executing copies of the circuit")
	flags.IntVar(
		&c.ExchangeDepth,
		"exchangeDepth",
		1,
		"the capacity of each inter-worker exchange channel")
	flags.IntVar(
		&c.MaxPasses,
		"maxPasses",
		1024,
		"a fixed-point pass bound; validated only, since nested circuits take their bound from circuit.Builder.Nested")
	flags.DurationVar(
		&c.KillTimeout,
		"killTimeout",
		10*time.Second,
		"the length of time to wait for in-progress ticks when killing the runtime")
}

// Preflight validates the configuration and fills in defaults for
// unset values.
func (c *Config) Preflight() error {
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Workers < 0 {
		return errors.New("workers must be positive")
	}
	if c.ExchangeDepth == 0 {
		c.ExchangeDepth = 1
	}
	if c.ExchangeDepth < 0 {
		return errors.New("exchangeDepth must be positive")
	}
	if c.MaxPasses == 0 {
		c.MaxPasses = 1024
	}
	if c.MaxPasses < 0 {
		return errors.New("maxPasses must be positive")
	}
	if c.KillTimeout == 0 {
		c.KillTimeout = 10 * time.Second
	}
	return nil
}
