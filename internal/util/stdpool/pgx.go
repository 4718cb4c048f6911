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
	"strings"

	"github.com/cockroachdb/ivm/internal/types"
	"github.com/cockroachdb/ivm/internal/util/stopper"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// OpenPgxAsStaging opens a pgx connection pool to a CockroachDB or
// PostgreSQL cluster.
func OpenPgxAsStaging(
	ctx *stopper.Context, connectString string, options ...Option,
) (*types.StagingPool, func(), error) {
	return returnOrStop(ctx, func(ctx *stopper.Context) (*types.StagingPool, error) {
		cfg, err := pgxpool.ParseConfig(connectString)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ret := &types.StagingPool{
			Pool: pool,
			PoolInfo: types.PoolInfo{
				ConnectionString: connectString,
				Product:          types.ProductCockroachDB,
			},
		}

		ctx.Go(func() error {
			<-ctx.Stopping()
			pool.Close()
			return nil
		})

		if err := ret.QueryRow(ctx, "SELECT version();").Scan(&ret.Version); err != nil {
			return nil, errors.Wrap(err, "could not query version")
		}
		if !strings.Contains(ret.Version, "CockroachDB") {
			ret.Product = types.ProductPostgreSQL
		}
		log.Infof("Version %s", ret.Version)

		return ret, nil
	})
}
