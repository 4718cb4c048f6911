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

package msort

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeRanges(t *testing.T) {
	tcs := []struct {
		name string
		in   []Range
		out  []Range
	}{
		{"empty", nil, nil},
		{"single", []Range{{0, 10}}, []Range{{0, 10}}},
		{"overlap", []Range{{0, 10}, {5, 20}}, []Range{{0, 20}}},
		{"abut", []Range{{0, 10}, {11, 20}}, []Range{{0, 20}}},
		{"disjoint", []Range{{20, 30}, {0, 10}}, []Range{{0, 10}, {20, 30}}},
		{"inverted dropped", []Range{{10, 0}, {1, 2}}, []Range{{1, 2}}},
		{"contained", []Range{{0, 100}, {10, 20}}, []Range{{0, 100}}},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeRanges(tc.in)
			if len(tc.out) == 0 {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tc.out, got)
		})
	}
}

func TestContainsAny(t *testing.T) {
	merged := MergeRanges([]Range{{0, 10}, {20, 30}})
	require.True(t, ContainsAny(merged, 0))
	require.True(t, ContainsAny(merged, 10))
	require.False(t, ContainsAny(merged, 15))
	require.True(t, ContainsAny(merged, 20))
	require.False(t, ContainsAny(merged, 31))
	require.False(t, ContainsAny(nil, 5))
}
