package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

func newTestSeries(t *testing.T, retentionMillis int64) *series.TimeSeries {
	t.Helper()
	s := series.New(1, nil, retentionMillis, chunk.Uncompressed, 4096, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyBlock}, series.Rounding{})
	require.NotNil(t, s)
	return s
}

func TestRangePlain(t *testing.T) {
	s := newTestSeries(t, 0)
	for _, sam := range []chunk.Sample{{1000, 1}, {2000, 2}, {3000, 3}} {
		s.Add(sam.Timestamp, sam.Value, nil)
	}
	got := Range(s, 1000, 3000, RangeOptions{})
	assert.Equal(t, []chunk.Sample{{1000, 1}, {2000, 2}, {3000, 3}}, got)
}

func TestRangeClampsToRetention(t *testing.T) {
	s := newTestSeries(t, 5000)
	for _, sam := range []chunk.Sample{{1000, 1}, {5000, 5}, {9000, 9}} {
		s.Add(sam.Timestamp, sam.Value, nil)
	}
	// retention floor = LastSample(9000) - 5000 = 4000
	got := Range(s, 0, 9000, RangeOptions{})
	assert.Equal(t, []chunk.Sample{{5000, 5}, {9000, 9}}, got)
}

func TestRangeCountCutoff(t *testing.T) {
	s := newTestSeries(t, 0)
	for _, sam := range []chunk.Sample{{1000, 1}, {2000, 2}, {3000, 3}} {
		s.Add(sam.Timestamp, sam.Value, nil)
	}
	got := Range(s, 1000, 3000, RangeOptions{Count: 2})
	assert.Equal(t, []chunk.Sample{{1000, 1}, {2000, 2}}, got)
}

func TestRangeValueFilter(t *testing.T) {
	s := newTestSeries(t, 0)
	for _, sam := range []chunk.Sample{{1000, 1}, {2000, 5}, {3000, 9}} {
		s.Add(sam.Timestamp, sam.Value, nil)
	}
	got := Range(s, 1000, 3000, RangeOptions{ValueFilter: &series.ValueFilter{Min: 2, Max: 6}})
	assert.Equal(t, []chunk.Sample{{2000, 5}}, got)
}

func TestBucketizeAlignedSum(t *testing.T) {
	samples := []chunk.Sample{{0, 1}, {1000, 2}, {3000, 3}, {4000, 4}}
	out := Bucketize(samples, BucketSpec{Duration: 3000, Aligned: true, Aggregator: series.AggSum})
	// bucket [0,3000): {0:1, 1000:2} sum=3; bucket [3000,6000): {3000:3, 4000:4} sum=7
	require.Len(t, out, 2)
	assert.Equal(t, chunk.Sample{Timestamp: 0, Value: 3}, out[0])
	assert.Equal(t, chunk.Sample{Timestamp: 3000, Value: 7}, out[1])
}

func TestBucketizeEmitEmptyNaN(t *testing.T) {
	samples := []chunk.Sample{{0, 1}, {6000, 6}}
	out := Bucketize(samples, BucketSpec{Duration: 3000, Aligned: true, Aggregator: series.AggAvg, EmitEmpty: true})
	require.Len(t, out, 3)
	assert.Equal(t, int64(0), out[0].Timestamp)
	assert.Equal(t, int64(3000), out[1].Timestamp)
	assert.True(t, out[1].Value != out[1].Value, "expected NaN for the empty middle bucket")
	assert.Equal(t, int64(6000), out[2].Timestamp)
}

func TestBucketizeTimestampAtEnd(t *testing.T) {
	samples := []chunk.Sample{{0, 1}, {1000, 3}}
	out := Bucketize(samples, BucketSpec{Duration: 3000, Aligned: true, TimestampAt: BucketEnd, Aggregator: series.AggAvg})
	require.Len(t, out, 1)
	assert.Equal(t, int64(3000), out[0].Timestamp)
	assert.Equal(t, 2.0, out[0].Value)
}
