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

package series

import (
	"math"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
)

// Aggregator names a downsampling/bucketizer function shared by compaction
// rules (this file) and the query planner's aggregation stage.
type Aggregator uint8

const (
	AggMin Aggregator = iota
	AggMax
	AggSum
	AggAvg
	AggCount
	AggFirst
	AggLast
	AggStdP
	AggStdS
	AggVarP
	AggVarS
	AggRange
)

// AggregatorState accumulates one bucket's worth of samples using Welford's
// method for the variance family, so Add is O(1) regardless of how many
// samples land in the bucket.
type AggregatorState struct {
	count      int64
	sum        float64
	min, max   float64
	first, last float64
	mean, m2   float64 // Welford accumulators for Var/Std
}

func (a *AggregatorState) Add(v float64) {
	if a.count == 0 {
		a.min, a.max, a.first = v, v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	a.last = v
	a.sum += v
	a.count++

	delta := v - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (v - a.mean)
}

func (a *AggregatorState) Reset() { *a = AggregatorState{} }

// Result finalizes the accumulated bucket for the given aggregator. ok is
// false for an empty bucket, matching spec.md §4.5's EMPTY handling.
func (a *AggregatorState) Result(agg Aggregator) (float64, bool) {
	if a.count == 0 {
		return 0, false
	}
	switch agg {
	case AggMin:
		return a.min, true
	case AggMax:
		return a.max, true
	case AggSum:
		return a.sum, true
	case AggAvg:
		return a.sum / float64(a.count), true
	case AggCount:
		return float64(a.count), true
	case AggFirst:
		return a.first, true
	case AggLast:
		return a.last, true
	case AggRange:
		return a.max - a.min, true
	case AggVarP:
		if a.count == 0 {
			return 0, false
		}
		return a.m2 / float64(a.count), true
	case AggVarS:
		if a.count < 2 {
			return 0, true
		}
		return a.m2 / float64(a.count-1), true
	case AggStdP:
		if a.count == 0 {
			return 0, false
		}
		return math.Sqrt(a.m2 / float64(a.count)), true
	case AggStdS:
		if a.count < 2 {
			return 0, true
		}
		return math.Sqrt(a.m2 / float64(a.count-1)), true
	default:
		return 0, false
	}
}

// CompactionRule is a downsampling emitter owned by a source series: it
// buckets the source's samples into bucket_duration windows and, once a
// bucket closes, emits one aggregated sample per window to DestID.
type CompactionRule struct {
	DestID         uint64
	BucketDuration int64 // milliseconds
	Aggregator     Aggregator
	AlignedStart   bool

	// BucketStart is the lower bound of the currently-open bucket; nil until
	// the first sample arrives. Its aggregator state is held back from
	// emission until the bucket closes (§4.3 step 5).
	BucketStart *int64
	State       AggregatorState
}

// bucketStartFor aligns ts down to its owning bucket's lower bound.
func (r *CompactionRule) bucketStartFor(ts int64) int64 {
	if r.BucketDuration <= 0 {
		return ts
	}
	if r.AlignedStart {
		return (ts / r.BucketDuration) * r.BucketDuration
	}
	return ts - (ts % r.BucketDuration)
}

// EmittedSample is one closed-bucket aggregate ready for insertion into the
// destination series via bulk.MergeSamples with DuplicatePolicyLast, per
// the "KeepLast" policy spec.md §4.3 step 5 mandates for compaction writes.
type EmittedSample struct {
	DestID uint64
	Sample chunk.Sample
}

// Run recomputes every bucket overlapping [touchedMin, touchedMax] from the
// source series' raw samples, holding back the bucket covering `now` (the
// open bucket) and emitting one aggregate per closed bucket that changed.
// It is idempotent: calling it again with the same inputs re-derives the
// same emissions, since buckets are recomputed from the raw range rather
// than updated incrementally.
func (r *CompactionRule) Run(src *TimeSeries, touchedMin, touchedMax, now int64) []EmittedSample {
	if r.BucketDuration <= 0 {
		return nil
	}
	openBucket := r.bucketStartFor(now)
	firstBucket := r.bucketStartFor(touchedMin)
	lastBucket := r.bucketStartFor(touchedMax)

	var out []EmittedSample
	for bs := firstBucket; bs <= lastBucket; bs += r.BucketDuration {
		if bs == openBucket {
			r.refreshOpenBucket(src, bs, now)
			continue
		}
		be := bs + r.BucketDuration - 1
		samples := src.GetRange(bs, be)
		if len(samples) == 0 {
			continue
		}
		var state AggregatorState
		for _, s := range samples {
			state.Add(s.Value)
		}
		v, ok := state.Result(r.Aggregator)
		if !ok {
			continue
		}
		out = append(out, EmittedSample{DestID: r.DestID, Sample: chunk.Sample{Timestamp: bs, Value: v}})
	}
	return out
}

// refreshOpenBucket recomputes (but does not emit) the currently-open
// bucket's aggregator state, so a later Run call that finds it closed can
// finalize from fresh state rather than stale partial data.
func (r *CompactionRule) refreshOpenBucket(src *TimeSeries, bs, now int64) {
	be := bs + r.BucketDuration - 1
	if be > now {
		be = now
	}
	var state AggregatorState
	for _, s := range src.GetRange(bs, be) {
		state.Add(s.Value)
	}
	r.BucketStart = &bs
	r.State = state
}
