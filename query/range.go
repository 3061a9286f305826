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
	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

// RangeOptions configures one RANGE query's iterator chain, per spec.md
// §4.5 step 3: chunk-range -> timestamp filter -> value filter -> bucket
// aggregator -> count cutoff.
type RangeOptions struct {
	TimestampFilter series.TimestampFilter
	ValueFilter     *series.ValueFilter
	Bucket          *BucketSpec
	Count           int // 0 means unlimited
}

// Range resolves the effective [start,end] against the series' retention
// floor, then runs the iterator chain.
func Range(s *series.TimeSeries, start, end int64, opts RangeOptions) []chunk.Sample {
	start = clampToRetention(s, start)
	if start > end {
		return nil
	}
	samples := s.GetRangeFiltered(start, end, opts.TimestampFilter, opts.ValueFilter)
	if opts.Bucket != nil {
		samples = Bucketize(samples, *opts.Bucket)
	}
	if opts.Count > 0 && len(samples) > opts.Count {
		samples = samples[:opts.Count]
	}
	return samples
}

// clampToRetention raises start to the series' retention floor (LastSample
// timestamp minus RetentionMillis), matching §4.5 step 2 "start is clamped
// to min_ts".
func clampToRetention(s *series.TimeSeries, start int64) int64 {
	if s.RetentionMillis <= 0 {
		return start
	}
	minTS := s.LastSample.Timestamp - s.RetentionMillis
	if start < minTS {
		return minTS
	}
	return start
}
