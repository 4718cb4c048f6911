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

// Package ivmerrors defines the enumerated error kinds the runtime
// reports: SchedulerError, RuntimeError, and (persistence feature
// only) IoError. Every error returned from Step()/Kill() is
// one of these, wrapped with github.com/pkg/errors so that
// errors.Is/errors.As keep working through the wrapping.
package ivmerrors

import "github.com/pkg/errors"

// SchedulerError reports a failure to reach a fixed point, a batch
// whose lower bound does not equal the trace's current upper bound,
// or an attempted cycle lacking a delay operator.
type SchedulerError struct {
	msg string
}

func (e *SchedulerError) Error() string { return "scheduler: " + e.msg }

// NewSchedulerError wraps msg as a *SchedulerError.
func NewSchedulerError(msg string) error {
	return errors.WithStack(&SchedulerError{msg: msg})
}

// RuntimeError reports a worker panic propagated to the driver, an
// exchange-channel send after shutdown, or a poisoned input handle.
type RuntimeError struct {
	msg string
}

func (e *RuntimeError) Error() string { return "runtime: " + e.msg }

// NewRuntimeError wraps msg as a *RuntimeError.
func NewRuntimeError(msg string) error {
	return errors.WithStack(&RuntimeError{msg: msg})
}

// IoError reports a corrupt manifest, a checksum mismatch, or a short
// read in the optional persistence feature.
type IoError struct {
	msg string
}

func (e *IoError) Error() string { return "io: " + e.msg }

// NewIoError wraps msg as an *IoError.
func NewIoError(msg string) error {
	return errors.WithStack(&IoError{msg: msg})
}

// ErrPoisoned is returned by Step()/Kill() once the runtime has
// recorded a prior fault: subsequent calls return the same error
// without side effects.
var ErrPoisoned = errors.New("runtime is poisoned by a prior error")
