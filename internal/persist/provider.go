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
	"net/url"
	"strings"

	"github.com/cockroachdb/ivm/internal/util/stdpool"
	"github.com/cockroachdb/ivm/internal/util/stopper"
	"github.com/google/wire"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Set is used by Wire.
var Set = wire.NewSet(
	ProvideStore,
)

// Config selects a snapshot store backend.
type Config struct {
	// Snapshot names the backing store: a directory path or file://
	// URL for the file layout, or a postgresql://, pq:// or mysql://
	// connection string for a SQL-backed store. Empty disables the
	// feature.
	Snapshot string
	// Prefix names the table pair used by the SQL-backed stores.
	Prefix string
}

// Bind registers flags.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(
		&c.Snapshot,
		"snapshot",
		"",
		"a directory or database connection string to mirror the materialization into")
	flags.StringVar(
		&c.Prefix,
		"snapshotPrefix",
		"ivm",
		"the table-name prefix used by database-backed snapshots")
}

// Preflight validates the configuration.
func (c *Config) Preflight() error {
	if c.Snapshot != "" && c.Prefix == "" {
		return errors.New("snapshotPrefix unset")
	}
	return nil
}

// ProvideStore is called by Wire to open the configured snapshot
// store. A nil Store (with nil error) means the feature is disabled.
func ProvideStore(ctx *stopper.Context, config *Config) (Store, func(), error) {
	if err := config.Preflight(); err != nil {
		return nil, nil, err
	}
	noop := func() {}
	if config.Snapshot == "" {
		return nil, noop, nil
	}

	u, err := url.Parse(config.Snapshot)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		dir := config.Snapshot
		if u != nil && u.Scheme == "file" {
			dir = u.Path
		}
		store, err := NewFileStore(dir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	}

	switch {
	case strings.HasPrefix(u.Scheme, "postgres"):
		pool, cleanup, err := stdpool.OpenPgxAsStaging(ctx, config.Snapshot)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewPGStore(ctx, pool, config.Prefix)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return store, cleanup, nil
	case u.Scheme == "pq":
		// lib/pq expects the canonical postgres:// scheme.
		u.Scheme = "postgres"
		pool, cleanup, err := stdpool.OpenPostgresAsTarget(ctx, u.String())
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQLStore(ctx, pool, config.Prefix)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return store, cleanup, nil
	case u.Scheme == "mysql":
		pool, cleanup, err := stdpool.OpenMySQLAsTarget(ctx, config.Snapshot)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQLStore(ctx, pool, config.Prefix)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return store, cleanup, nil
	default:
		return nil, nil, errors.Errorf("unsupported snapshot scheme %q", u.Scheme)
	}
}
