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
	"strings"

	"github.com/cockroachdb/ivm/internal/types"
	"github.com/cockroachdb/ivm/internal/util/stopper"
	_ "github.com/lib/pq" // register driver
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// OpenPostgresAsTarget opens a database/sql connection to a
// PostgreSQL-compatible server through the lib/pq driver.
func OpenPostgresAsTarget(
	ctx *stopper.Context, connectString string, options ...Option,
) (*types.TargetPool, func(), error) {
	return returnOrStop(ctx, func(ctx *stopper.Context) (*types.TargetPool, error) {
		connector, err := sql.Open("postgres", connectString)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		ret := &types.TargetPool{
			DB: connector,
			PoolInfo: types.PoolInfo{
				ConnectionString: connectString,
				Product:          types.ProductPostgreSQL,
			},
		}

		ctx.Go(func() error {
			<-ctx.Stopping()
			if err := ret.Close(); err != nil {
				log.WithError(errors.WithStack(err)).Warn("could not close database connection")
			}
			return nil
		})

		if err := ret.Ping(); err != nil {
			return nil, errors.Wrap(err, "could not ping the database")
		}
		if err := ret.QueryRow("SELECT version();").Scan(&ret.Version); err != nil {
			return nil, errors.Wrap(err, "could not query version")
		}
		if strings.Contains(ret.Version, "CockroachDB") {
			ret.Product = types.ProductCockroachDB
		}
		log.Infof("Version %s", ret.Version)
		attachOptions(ret.DB, options)

		return ret, nil
	})
}
