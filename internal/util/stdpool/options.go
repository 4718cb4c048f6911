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

package stdpool

import (
	"database/sql"
	"time"

	"github.com/cockroachdb/ivm/internal/types"
	"github.com/cockroachdb/ivm/internal/util/stopper"
)

// Option abstracts over the features and knobs of the various pool
// types. An option is applied to every value in the pool-construction
// chain that it knows how to improve.
type Option interface{ option() }

// TestControls allows testing code to intercept the database
// connection lifecycle.
type TestControls struct {
	WaitForStartup bool
}

func (*TestControls) option() {}

type maxPoolSize struct{ size int }

func (*maxPoolSize) option() {}

// WithPoolSize caps the number of open database connections.
func WithPoolSize(size int) Option {
	return &maxPoolSize{size: size}
}

// attachOptions applies every option that targets tgt's type.
func attachOptions(tgt any, options []Option) {
	for _, opt := range options {
		switch o := opt.(type) {
		case *TestControls:
			if dst, ok := tgt.(*TestControls); ok {
				*dst = *o
			}
		case *maxPoolSize:
			if db, ok := tgt.(*sql.DB); ok {
				db.SetMaxOpenConns(o.size)
			}
		}
	}
}

// returnOrStop invokes fn and returns its result; on error it returns
// the zero pool and a nil cleanup. The returned cleanup stops ctx,
// which signals the pool's background goroutines, and waits briefly
// for them.
func returnOrStop[P types.AnyPool](
	ctx *stopper.Context, fn func(ctx *stopper.Context) (P, error),
) (P, func(), error) {
	ret, err := fn(ctx)
	if err != nil {
		var zero P
		return zero, nil, err
	}
	return ret, func() { _ = ctx.Stop(time.Second) }, nil
}
