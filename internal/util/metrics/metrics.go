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

// Package metrics contains common support code for our prometheus
// metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LatencyBuckets is a default collection of histogram buckets for
// tick- and merge-latency measurements, spanning one tenth of a
// millisecond through ten seconds.
var LatencyBuckets = prometheus.ExponentialBuckets(1e-4, 10, 6)

// WorkerLabels is the label set applied to per-worker metric vectors.
var WorkerLabels = []string{"worker"}
