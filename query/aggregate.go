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

// Package query implements the RANGE/MRANGE/JOIN planner: sample iteration
// chains over one or many series, bucket aggregation, and two-series joins.
package query

import (
	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

// BucketTimestamp selects which edge of a window labels its emitted sample.
type BucketTimestamp uint8

const (
	BucketStart BucketTimestamp = iota
	BucketMid
	BucketEnd
)

// BucketSpec configures the aggregation stage of a RANGE/MRANGE iteration
// chain, per spec.md §4.5.
type BucketSpec struct {
	Duration    int64
	Aligned     bool
	TimestampAt BucketTimestamp
	Aggregator  series.Aggregator
	EmitEmpty   bool // EMPTY option: emit NaN for windows with no samples
}

func bucketStartFor(ts, duration int64, aligned bool) int64 {
	if !aligned {
		return ts
	}
	if duration <= 0 {
		return ts
	}
	q := ts / duration
	if ts < 0 && ts%duration != 0 {
		q--
	}
	return q * duration
}

func (b BucketSpec) labelFor(start int64) int64 {
	switch b.TimestampAt {
	case BucketMid:
		return start + b.Duration/2
	case BucketEnd:
		return start + b.Duration
	default:
		return start
	}
}

// Bucketize folds an ascending sample sequence into aligned windows of
// BucketSpec.Duration, applying the configured Aggregator per window. The
// first window is anchored to the first sample's timestamp unless Aligned
// is set, in which case windows align to multiples of Duration.
func Bucketize(samples []chunk.Sample, spec BucketSpec) []chunk.Sample {
	if spec.Duration <= 0 || len(samples) == 0 {
		return samples
	}
	var out []chunk.Sample
	var state series.AggregatorState
	bucketStart := bucketStartFor(samples[0].Timestamp, spec.Duration, spec.Aligned)
	bucketEnd := bucketStart + spec.Duration

	flush := func() {
		if v, ok := state.Result(spec.Aggregator); ok {
			out = append(out, chunk.Sample{Timestamp: spec.labelFor(bucketStart), Value: v})
		} else if spec.EmitEmpty {
			out = append(out, chunk.Sample{Timestamp: spec.labelFor(bucketStart), Value: chunk.NaN()})
		}
	}

	for _, s := range samples {
		for s.Timestamp >= bucketEnd {
			flush()
			state.Reset()
			bucketStart = bucketEnd
			bucketEnd = bucketStart + spec.Duration
		}
		state.Add(s.Value)
	}
	flush()
	return out
}
