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

package worker

import (
	"github.com/cockroachdb/ivm/internal/util/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ivm_step_duration_seconds",
		Help:    "the length of time it took to run one tick across all workers",
		Buckets: metrics.LatencyBuckets,
	})
	workerTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ivm_worker_tick_duration_seconds",
		Help:    "the length of time one worker took to advance its circuit",
		Buckets: metrics.LatencyBuckets,
	}, metrics.WorkerLabels)
	workerTickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_worker_tick_errors_total",
		Help: "the number of ticks aborted by a worker fault",
	})

	exchangeRowsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_exchange_rows_sent_total",
		Help: "the number of rows routed into the exchange fabric",
	})
	exchangeRowsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_exchange_rows_received_total",
		Help: "the number of rows received from the exchange fabric",
	})
)
