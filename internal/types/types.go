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

// Package types contains data types and interfaces shared between the
// optional trace-persistence backends. The goal of placing the types
// into this package is to make it easy to swap the SQL products a
// trace snapshot is mirrored into.
package types

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Product identifies a database product.
type Product int

//go:generate go run golang.org/x/tools/cmd/stringer -type=Product

const (
	// ProductUnknown identifies an uninitialized Product.
	ProductUnknown Product = iota
	// ProductCockroachDB identifies CockroachDB.
	ProductCockroachDB
	// ProductMariaDB identifies MariaDB.
	ProductMariaDB
	// ProductMySQL identifies MySQL.
	ProductMySQL
	// ProductPostgreSQL identifies PostgreSQL.
	ProductPostgreSQL
)

// ExpandPlaceholders reports whether the product's SQL dialect uses
// ordinal ($1) rather than positional (?) statement placeholders.
func (p Product) ExpandPlaceholders() bool {
	switch p {
	case ProductCockroachDB, ProductPostgreSQL:
		return true
	default:
		return false
	}
}

// PoolInfo describes a database connection pool.
type PoolInfo struct {
	ConnectionString string
	Product          Product
	Version          string
}

// Info returns the pool's metadata and allows PoolInfo to be embedded
// into the concrete pool types below.
func (i *PoolInfo) Info() *PoolInfo { return i }

// AnyPool is implemented by all of the pool types in this package.
type AnyPool interface {
	Info() *PoolInfo
}

// StagingQuerier is implemented by pgxpool.Pool, pgx.Conn, and
// pgx.Tx, allowing callers to be indifferent to transaction scope.
type StagingQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StagingPool is a connection to a CockroachDB or PostgreSQL cluster,
// accessed through the native pgx driver.
type StagingPool struct {
	*pgxpool.Pool
	PoolInfo

	noCopy noCopy
}

// TargetQuerier is implemented by sql.DB and sql.Tx, allowing callers
// to be indifferent to transaction scope.
type TargetQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TargetPool is a connection to a database reached through the
// standard library's driver model.
type TargetPool struct {
	*sql.DB
	PoolInfo

	noCopy noCopy
}

var (
	_ AnyPool        = (*StagingPool)(nil)
	_ AnyPool        = (*TargetPool)(nil)
	_ StagingQuerier = (*StagingPool)(nil)
	_ TargetQuerier  = (*TargetPool)(nil)
)

// noCopy may be embedded into structs which must not be copied after
// first use. See https://golang.org/issues/8005#issuecomment-190753527
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
