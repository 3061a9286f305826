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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregatorStateBasics(t *testing.T) {
	var a AggregatorState
	_, ok := a.Result(AggAvg)
	require.False(t, ok, "empty bucket should report ok=false")

	for _, v := range []float64{1, 2, 3, 4} {
		a.Add(v)
	}
	min, _ := a.Result(AggMin)
	max, _ := a.Result(AggMax)
	sum, _ := a.Result(AggSum)
	avg, _ := a.Result(AggAvg)
	count, _ := a.Result(AggCount)
	first, _ := a.Result(AggFirst)
	last, _ := a.Result(AggLast)
	rng, _ := a.Result(AggRange)

	require.Equal(t, 1.0, min)
	require.Equal(t, 4.0, max)
	require.Equal(t, 10.0, sum)
	require.Equal(t, 2.5, avg)
	require.Equal(t, 4.0, count)
	require.Equal(t, 1.0, first)
	require.Equal(t, 4.0, last)
	require.Equal(t, 3.0, rng)
}

func TestAggregatorStateVariance(t *testing.T) {
	var a AggregatorState
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		a.Add(v)
	}
	varP, _ := a.Result(AggVarP)
	stdP, _ := a.Result(AggStdP)
	require.InDelta(t, 4.0, varP, 1e-9)
	require.InDelta(t, 2.0, stdP, 1e-9)
	require.InDelta(t, math.Sqrt(varP), stdP, 1e-9)
}

func TestCompactionRuleBucketAlignment(t *testing.T) {
	r := &CompactionRule{BucketDuration: 10000, AlignedStart: true}
	require.Equal(t, int64(0), r.bucketStartFor(5000))
	require.Equal(t, int64(10000), r.bucketStartFor(19999))
	require.Equal(t, int64(20000), r.bucketStartFor(20000))
}

func TestCompactionRuleRunHoldsBackOpenBucket(t *testing.T) {
	s := newTestSeries()
	for i := int64(0); i < 6; i++ {
		s.Add(i*1000, float64(i), nil)
	}
	r := &CompactionRule{DestID: 2, BucketDuration: 3000, Aggregator: AggSum, AlignedStart: true}
	emitted := r.Run(s, 0, 5000, 5000)

	// [0,3000) closes; [3000,6000) is the open bucket at now=5000 and must
	// not appear in emitted.
	require.Len(t, emitted, 1)
	require.Equal(t, int64(0), emitted[0].Sample.Timestamp)
	require.Equal(t, float64(0+1+2), emitted[0].Sample.Value)
	require.NotNil(t, r.BucketStart)
	require.Equal(t, int64(3000), *r.BucketStart)
}
