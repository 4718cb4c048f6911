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

	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PGStore mirrors a trace snapshot into a CockroachDB or PostgreSQL
// cluster through the native pgx driver. Batches land in one table
// keyed by (level, seq); the manifest is a singleton row in a second
// table.
type PGStore struct {
	pool   *types.StagingPool
	prefix string
}

var _ Store = (*PGStore)(nil)

// NewPGStore creates the backing tables if necessary. The prefix
// names the table pair, allowing several spines to share a database.
func NewPGStore(ctx context.Context, pool *types.StagingPool, prefix string) (*PGStore, error) {
	s := &PGStore{pool: pool, prefix: prefix}
	for _, schema := range []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_batches (
level INT NOT NULL,
seq INT NOT NULL,
payload BYTEA NOT NULL,
PRIMARY KEY (level, seq)
)`, prefix),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_manifest (
id INT PRIMARY KEY,
payload BYTEA NOT NULL
)`, prefix),
	} {
		if _, err := pool.Exec(ctx, schema); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return s, nil
}

// WriteBatch implements Store.
func (s *PGStore) WriteBatch(ctx context.Context, level, seq int, data []byte) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`UPSERT INTO %s_batches (level, seq, payload) VALUES ($1, $2, $3)`, s.prefix),
		level, seq, data)
	if err == nil {
		return nil
	}
	// UPSERT is CockroachDB-specific; fall back to the standard
	// conflict clause on PostgreSQL.
	_, err = s.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s_batches (level, seq, payload) VALUES ($1, $2, $3)
ON CONFLICT (level, seq) DO UPDATE SET payload = excluded.payload`, s.prefix),
		level, seq, data)
	return errors.WithStack(err)
}

// ReadBatch implements Store.
func (s *PGStore) ReadBatch(ctx context.Context, level, seq int) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT payload FROM %s_batches WHERE level = $1 AND seq = $2`, s.prefix),
		level, seq).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ivmerrors.NewIoError(fmt.Sprintf("no batch at level %d seq %d", level, seq))
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// WriteManifest implements Store. The delete-and-insert pair runs in
// a transaction so readers never observe a missing manifest.
func (s *PGStore) WriteManifest(ctx context.Context, m *Manifest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s_manifest WHERE id = 0`, s.prefix)); err != nil {
		return errors.WithStack(err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s_manifest (id, payload) VALUES (0, $1)`, s.prefix),
		EncodeManifest(m)); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(tx.Commit(ctx))
}

// ReadManifest implements Store.
func (s *PGStore) ReadManifest(ctx context.Context) (*Manifest, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT payload FROM %s_manifest WHERE id = 0`, s.prefix)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ivmerrors.NewIoError("no manifest")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return DecodeManifest(data)
}
