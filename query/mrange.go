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

package query

import (
	"sort"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

// SeriesResult pairs one matched series with its RANGE result.
type SeriesResult struct {
	Series  *series.TimeSeries
	Samples []chunk.Sample
}

// GroupBy configures MRANGE's per-label grouping/reduction stage, per §4.5
// step 3: partition candidates by the value of Label, then per group merge
// sorted per-series sample iterators, reducing colliding timestamps with
// Reducer.
type GroupBy struct {
	Label   string
	Reducer series.Aggregator
}

// labelOf resolves the grouping key for one series: the value of its
// GroupBy.Label label, or "" if the series does not carry it.
func (g GroupBy) labelOf(s *series.TimeSeries) string {
	for _, l := range s.Labels {
		if l.Name.String() == g.Label {
			return l.Value.String()
		}
	}
	return ""
}

// Group is one MRANGE output group: either a single ungrouped series
// result, or the merged/reduced result of every series sharing a label
// value.
type Group struct {
	Key     string // groupby label value; empty when GroupBy is unset
	Samples []chunk.Sample
}

// MRange resolves candidates, runs RANGE over each, and optionally folds
// results into label-value groups.
func MRange(candidates []*series.TimeSeries, start, end int64, opts RangeOptions, groupBy *GroupBy) []Group {
	results := make([]SeriesResult, 0, len(candidates))
	for _, s := range candidates {
		results = append(results, SeriesResult{Series: s, Samples: Range(s, start, end, opts)})
	}
	if groupBy == nil {
		out := make([]Group, len(results))
		for i, r := range results {
			out[i] = Group{Samples: r.Samples}
		}
		return out
	}
	return groupResults(results, *groupBy)
}

func groupResults(results []SeriesResult, g GroupBy) []Group {
	byKey := make(map[string][][]chunk.Sample)
	var keys []string
	for _, r := range results {
		key := g.labelOf(r.Series)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], r.Samples)
	}
	sort.Strings(keys)

	out := make([]Group, 0, len(keys))
	for _, key := range keys {
		out = append(out, Group{Key: key, Samples: mergeReduce(byKey[key], g.Reducer)})
	}
	return out
}

// mergeReduce merges N ascending, per-series sample sequences into one
// ascending sequence, reducing samples that share a timestamp with
// reducer.
func mergeReduce(seqs [][]chunk.Sample, reducer series.Aggregator) []chunk.Sample {
	idx := make([]int, len(seqs))
	var out []chunk.Sample
	for {
		ts, any := int64(0), false
		for i, seq := range seqs {
			if idx[i] >= len(seq) {
				continue
			}
			if !any || seq[idx[i]].Timestamp < ts {
				ts = seq[idx[i]].Timestamp
				any = true
			}
		}
		if !any {
			break
		}
		var state series.AggregatorState
		for i, seq := range seqs {
			for idx[i] < len(seq) && seq[idx[i]].Timestamp == ts {
				state.Add(seq[idx[i]].Value)
				idx[i]++
			}
		}
		if v, ok := state.Result(reducer); ok {
			out = append(out, chunk.Sample{Timestamp: ts, Value: v})
		}
	}
	return out
}
