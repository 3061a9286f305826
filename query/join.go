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
	"math"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

// JoinType selects the row-matching semantics of Join, per spec.md §4.5.
type JoinType uint8

const (
	JoinInner JoinType = iota
	JoinFull
	JoinLeft
	JoinRight
	JoinSemi
	JoinAnti
	JoinAsOf
)

// AsOfStrategy selects how an AsOf join picks the right sample for a given
// left timestamp.
type AsOfStrategy uint8

const (
	AsOfBackward AsOfStrategy = iota
	AsOfForward
	AsOfNearest
)

// AsOfOptions configures an AsOf join.
type AsOfOptions struct {
	Strategy        AsOfStrategy
	ToleranceMillis int64
	AllowExactMatch bool
}

// Row is one output row of a join: either side may be absent.
type Row struct {
	Timestamp int64
	Left      float64
	HasLeft   bool
	Right     float64
	HasRight  bool
}

// JoinOptions configures Join's optional reduce/aggregate stage.
type JoinOptions struct {
	Type    JoinType
	AsOf    AsOfOptions
	Reducer *series.Aggregator // optional: folds (l,r) into one value
	Bucket  *BucketSpec        // optional: only legal with Reducer, or Semi/Anti
}

// Join merges two ascending sample sequences per JoinOptions.Type.
func Join(left, right []chunk.Sample, opts JoinOptions) []Row {
	var rows []Row
	switch opts.Type {
	case JoinInner:
		rows = joinInner(left, right)
	case JoinFull:
		rows = joinFull(left, right)
	case JoinLeft:
		rows = joinLeft(left, right)
	case JoinRight:
		rows = joinRight(left, right)
	case JoinSemi:
		rows = joinSemi(left, right)
	case JoinAnti:
		rows = joinAnti(left, right)
	case JoinAsOf:
		rows = joinAsOf(left, right, opts.AsOf)
	}
	return applyReducer(rows, opts)
}

func joinInner(left, right []chunk.Sample) []Row {
	var out []Row
	i, j := 0, 0
	for i < len(left) && j < len(right) {
		switch {
		case left[i].Timestamp == right[j].Timestamp:
			out = append(out, Row{Timestamp: left[i].Timestamp, Left: left[i].Value, HasLeft: true, Right: right[j].Value, HasRight: true})
			i++
			j++
		case left[i].Timestamp < right[j].Timestamp:
			i++
		default:
			j++
		}
	}
	return out
}

func joinFull(left, right []chunk.Sample) []Row {
	var out []Row
	i, j := 0, 0
	for i < len(left) || j < len(right) {
		switch {
		case j >= len(right) || (i < len(left) && left[i].Timestamp < right[j].Timestamp):
			out = append(out, Row{Timestamp: left[i].Timestamp, Left: left[i].Value, HasLeft: true})
			i++
		case i >= len(left) || right[j].Timestamp < left[i].Timestamp:
			out = append(out, Row{Timestamp: right[j].Timestamp, Right: right[j].Value, HasRight: true})
			j++
		default:
			out = append(out, Row{Timestamp: left[i].Timestamp, Left: left[i].Value, HasLeft: true, Right: right[j].Value, HasRight: true})
			i++
			j++
		}
	}
	return out
}

func joinLeft(left, right []chunk.Sample) []Row {
	out := make([]Row, 0, len(left))
	j := 0
	for _, l := range left {
		for j < len(right) && right[j].Timestamp < l.Timestamp {
			j++
		}
		row := Row{Timestamp: l.Timestamp, Left: l.Value, HasLeft: true}
		if j < len(right) && right[j].Timestamp == l.Timestamp {
			row.Right, row.HasRight = right[j].Value, true
		}
		out = append(out, row)
	}
	return out
}

func joinRight(left, right []chunk.Sample) []Row {
	out := make([]Row, 0, len(right))
	i := 0
	for _, r := range right {
		for i < len(left) && left[i].Timestamp < r.Timestamp {
			i++
		}
		row := Row{Timestamp: r.Timestamp, Right: r.Value, HasRight: true}
		if i < len(left) && left[i].Timestamp == r.Timestamp {
			row.Left, row.HasLeft = left[i].Value, true
		}
		out = append(out, row)
	}
	return out
}

func joinSemi(left, right []chunk.Sample) []Row {
	var out []Row
	j := 0
	for _, l := range left {
		for j < len(right) && right[j].Timestamp < l.Timestamp {
			j++
		}
		if j < len(right) && right[j].Timestamp == l.Timestamp {
			out = append(out, Row{Timestamp: l.Timestamp, Left: l.Value, HasLeft: true})
		}
	}
	return out
}

func joinAnti(left, right []chunk.Sample) []Row {
	var out []Row
	j := 0
	for _, l := range left {
		for j < len(right) && right[j].Timestamp < l.Timestamp {
			j++
		}
		if !(j < len(right) && right[j].Timestamp == l.Timestamp) {
			out = append(out, Row{Timestamp: l.Timestamp, Left: l.Value, HasLeft: true})
		}
	}
	return out
}

// joinAsOf implements spec.md §4.5's per-left windowed AsOf match: for each
// left timestamp, find the right sample within the strategy's window
// (ts-tolerance<=rt<=ts for Backward, ts<=rt<=ts+tolerance for Forward, or
// minimal |ts-rt| within tolerance for Nearest), excluding rt==ts unless
// AllowExactMatch.
func joinAsOf(left, right []chunk.Sample, opts AsOfOptions) []Row {
	out := make([]Row, 0, len(left))
	for _, l := range left {
		row := Row{Timestamp: l.Timestamp, Left: l.Value, HasLeft: true}
		if idx, ok := findAsOf(right, l.Timestamp, opts); ok {
			row.Right, row.HasRight = right[idx].Value, true
		}
		out = append(out, row)
	}
	return out
}

func findAsOf(right []chunk.Sample, ts int64, opts AsOfOptions) (int, bool) {
	switch opts.Strategy {
	case AsOfBackward:
		lo, hi := ts-opts.ToleranceMillis, ts
		best := -1
		for i, r := range right {
			if r.Timestamp < lo {
				continue
			}
			if r.Timestamp > hi {
				break
			}
			if r.Timestamp == ts && !opts.AllowExactMatch {
				continue
			}
			best = i
		}
		return best, best >= 0
	case AsOfForward:
		lo, hi := ts, ts+opts.ToleranceMillis
		for i, r := range right {
			if r.Timestamp < lo {
				continue
			}
			if r.Timestamp > hi {
				break
			}
			if r.Timestamp == ts && !opts.AllowExactMatch {
				continue
			}
			return i, true
		}
		return -1, false
	default: // AsOfNearest
		best, bestDiff := -1, int64(math.MaxInt64)
		for i, r := range right {
			diff := r.Timestamp - ts
			if diff < 0 {
				diff = -diff
			}
			if diff > opts.ToleranceMillis {
				continue
			}
			if r.Timestamp == ts && !opts.AllowExactMatch {
				continue
			}
			if diff < bestDiff {
				best, bestDiff = i, diff
			}
		}
		return best, best >= 0
	}
}

func applyReducer(rows []Row, opts JoinOptions) []Row {
	if opts.Reducer == nil {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		var state series.AggregatorState
		if r.HasLeft {
			state.Add(r.Left)
		}
		if r.HasRight {
			state.Add(r.Right)
		}
		if v, ok := state.Result(*opts.Reducer); ok {
			out = append(out, Row{Timestamp: r.Timestamp, Left: v, HasLeft: true})
		}
	}
	return out
}
