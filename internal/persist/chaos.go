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

package persist

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
)

// ErrChaos is the error that will be injected by the WithChaos
// wrapper in this package.
var ErrChaos = errors.New("chaos")

// WithChaos returns a wrapper around a Store that will inject errors
// at various points throughout the execution, for testing callers'
// fault handling. The store is returned unwrapped if prob is less
// than or equal to zero.
func WithChaos(delegate Store, prob float32) Store {
	if prob <= 0 {
		return delegate
	}
	return &chaosStore{delegate: delegate, prob: prob}
}

// This could include a *rand.Rand, but as soon as we start calling
// methods from multiple goroutines, there's no hope of repeatable
// behavior.
type chaosStore struct {
	delegate Store
	prob     float32
}

var _ Store = (*chaosStore)(nil)

func doChaos(method string) error {
	return errors.WithMessage(ErrChaos, method)
}

func (s *chaosStore) WriteBatch(ctx context.Context, level, seq int, data []byte) error {
	if rand.Float32() < s.prob {
		return doChaos("WriteBatch")
	}
	return s.delegate.WriteBatch(ctx, level, seq, data)
}

func (s *chaosStore) ReadBatch(ctx context.Context, level, seq int) ([]byte, error) {
	if rand.Float32() < s.prob {
		return nil, doChaos("ReadBatch")
	}
	return s.delegate.ReadBatch(ctx, level, seq)
}

func (s *chaosStore) WriteManifest(ctx context.Context, m *Manifest) error {
	if rand.Float32() < s.prob {
		return doChaos("WriteManifest")
	}
	return s.delegate.WriteManifest(ctx, m)
}

func (s *chaosStore) ReadManifest(ctx context.Context) (*Manifest, error) {
	if rand.Float32() < s.prob {
		return nil, doChaos("ReadManifest")
	}
	return s.delegate.ReadManifest(ctx)
}
