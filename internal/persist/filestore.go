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
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/pkg/errors"
)

// FileStore lays a trace snapshot out as a directory holding one
// {level}-{seq}.bin file per resident batch plus a manifest file.
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the backing directory if necessary.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) batchPath(level, seq int) string {
	return filepath.Join(f.dir, fmt.Sprintf("%d-%d.bin", level, seq))
}

// WriteBatch implements Store.
func (f *FileStore) WriteBatch(_ context.Context, level, seq int, data []byte) error {
	return errors.WithStack(os.WriteFile(f.batchPath(level, seq), data, 0644))
}

// ReadBatch implements Store.
func (f *FileStore) ReadBatch(_ context.Context, level, seq int) ([]byte, error) {
	data, err := os.ReadFile(f.batchPath(level, seq))
	if err != nil {
		return nil, ivmerrors.NewIoError(err.Error())
	}
	return data, nil
}

// WriteManifest implements Store. The manifest is written to a
// temporary file and renamed into place so that a crash mid-write
// leaves the previous manifest intact.
func (f *FileStore) WriteManifest(_ context.Context, m *Manifest) error {
	tmp := filepath.Join(f.dir, "manifest.tmp")
	if err := os.WriteFile(tmp, EncodeManifest(m), 0644); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp, filepath.Join(f.dir, "manifest")))
}

// ReadManifest implements Store.
func (f *FileStore) ReadManifest(_ context.Context) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, "manifest"))
	if err != nil {
		return nil, ivmerrors.NewIoError(err.Error())
	}
	return DecodeManifest(data)
}
