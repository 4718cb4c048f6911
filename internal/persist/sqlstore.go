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
	"database/sql"
	"fmt"

	"github.com/cockroachdb/ivm/internal/ivmerrors"
	"github.com/cockroachdb/ivm/internal/types"
	"github.com/pkg/errors"
)

// SQLStore mirrors a trace snapshot through the standard library's
// driver model, making the persistence feature pluggable across the
// products stdpool can open (PostgreSQL via lib/pq, MySQL and MariaDB
// via go-sql-driver). Dialect differences are limited to the blob
// column type, the upsert statement and placeholder style.
type SQLStore struct {
	pool   *types.TargetPool
	prefix string
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates the backing tables if necessary.
func NewSQLStore(ctx context.Context, pool *types.TargetPool, prefix string) (*SQLStore, error) {
	blob := "BYTEA"
	if !pool.Product.ExpandPlaceholders() {
		blob = "LONGBLOB"
	}
	s := &SQLStore{pool: pool, prefix: prefix}
	for _, schema := range []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_batches (
level INT NOT NULL,
seq INT NOT NULL,
payload %s NOT NULL,
PRIMARY KEY (level, seq)
)`, prefix, blob),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_manifest (
id INT PRIMARY KEY,
payload %s NOT NULL
)`, prefix, blob),
	} {
		if _, err := pool.ExecContext(ctx, schema); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return s, nil
}

// upsertBatch returns the dialect-appropriate batch upsert statement.
func (s *SQLStore) upsertBatch() string {
	if s.pool.Product.ExpandPlaceholders() {
		return fmt.Sprintf(`INSERT INTO %s_batches (level, seq, payload) VALUES ($1, $2, $3)
ON CONFLICT (level, seq) DO UPDATE SET payload = excluded.payload`, s.prefix)
	}
	return fmt.Sprintf(`REPLACE INTO %s_batches (level, seq, payload) VALUES (?, ?, ?)`, s.prefix)
}

// WriteBatch implements Store.
func (s *SQLStore) WriteBatch(ctx context.Context, level, seq int, data []byte) error {
	_, err := s.pool.ExecContext(ctx, s.upsertBatch(), level, seq, data)
	return errors.WithStack(err)
}

// ReadBatch implements Store.
func (s *SQLStore) ReadBatch(ctx context.Context, level, seq int) ([]byte, error) {
	q := fmt.Sprintf(`SELECT payload FROM %s_batches WHERE level = $1 AND seq = $2`, s.prefix)
	if !s.pool.Product.ExpandPlaceholders() {
		q = fmt.Sprintf(`SELECT payload FROM %s_batches WHERE level = ? AND seq = ?`, s.prefix)
	}
	var data []byte
	err := s.pool.QueryRowContext(ctx, q, level, seq).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ivmerrors.NewIoError(fmt.Sprintf("no batch at level %d seq %d", level, seq))
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// WriteManifest implements Store.
func (s *SQLStore) WriteManifest(ctx context.Context, m *Manifest) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s_manifest WHERE id = 0`, s.prefix)); err != nil {
		return errors.WithStack(err)
	}
	insert := fmt.Sprintf(`INSERT INTO %s_manifest (id, payload) VALUES (0, $1)`, s.prefix)
	if !s.pool.Product.ExpandPlaceholders() {
		insert = fmt.Sprintf(`INSERT INTO %s_manifest (id, payload) VALUES (0, ?)`, s.prefix)
	}
	if _, err := tx.ExecContext(ctx, insert, EncodeManifest(m)); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(tx.Commit())
}

// ReadManifest implements Store.
func (s *SQLStore) ReadManifest(ctx context.Context) (*Manifest, error) {
	q := fmt.Sprintf(`SELECT payload FROM %s_manifest WHERE id = 0`, s.prefix)
	var data []byte
	err := s.pool.QueryRowContext(ctx, q).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ivmerrors.NewIoError("no manifest")
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return DecodeManifest(data)
}
