// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package common

// DisjointIndexGroup names one destination slot (an existing chunk index,
// or -1 for a new chunk) and the slice of items routed to it.
type DisjointIndexGroup[T any] struct {
	Index int // -1 means "new"
	Items []T
}

// GroupByIndex partitions sorted items into contiguous runs sharing the same
// key, preserving input order within each run. It underlies the bulk
// ingestion chunk-partitioning step (§4.3): samples are grouped by
// destination chunk index before any chunk is touched, so the groups can
// then be merged in parallel via disjoint &mut-equivalent access.
func GroupByIndex[T any](items []T, keyOf func(T) int) []DisjointIndexGroup[T] {
	if len(items) == 0 {
		return nil
	}
	var groups []DisjointIndexGroup[T]
	start := 0
	curKey := keyOf(items[0])
	for i := 1; i < len(items); i++ {
		k := keyOf(items[i])
		if k != curKey {
			groups = append(groups, DisjointIndexGroup[T]{Index: curKey, Items: items[start:i]})
			start = i
			curKey = k
		}
	}
	groups = append(groups, DisjointIndexGroup[T]{Index: curKey, Items: items[start:]})
	return groups
}
