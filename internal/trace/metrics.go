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

package trace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	spineBatchesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_spine_batches_inserted_total",
		Help: "the number of batches inserted into any spine",
	})
	spineMergeFuelSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_spine_merge_fuel_spent_total",
		Help: "the number of fuel units consumed by progressive spine merges",
	})
	spineMergesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_spine_merges_completed_total",
		Help: "the number of level merges completed",
	})
	spineRecedeCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ivm_spine_recede_total",
		Help: "the number of recede_to calls that receded at least one non-empty batch",
	})
)
