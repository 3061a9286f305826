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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
)

func newTestSeries() *TimeSeries {
	return New(1, nil, 0, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyBlock}, Rounding{})
}

func TestSeriesAddAppendsInOrder(t *testing.T) {
	s := newTestSeries()
	for i, ts := range []int64{1000, 2000, 3000} {
		res := s.Add(ts, float64(i), nil)
		require.Equal(t, chunk.OutcomeOK, res.Outcome)
	}
	require.Equal(t, 3, s.TotalSamples)
	require.Equal(t, int64(1000), s.FirstTimestamp)
	require.Equal(t, int64(3000), s.LastSample.Timestamp)
	require.Equal(t, []chunk.Sample{{1000, 0}, {2000, 1}, {3000, 2}}, s.GetRange(0, 9999))
}

func TestSeriesAddOutOfOrderUpserts(t *testing.T) {
	s := newTestSeries()
	s.Add(1000, 1, nil)
	s.Add(3000, 3, nil)
	res := s.Add(2000, 2, nil)
	require.Equal(t, chunk.OutcomeOK, res.Outcome)
	require.Equal(t, []chunk.Sample{{1000, 1}, {2000, 2}, {3000, 3}}, s.GetRange(0, 9999))
}

func TestSeriesAddDuplicateBlocked(t *testing.T) {
	s := newTestSeries()
	s.Add(1000, 1, nil)
	res := s.Add(1000, 99, nil)
	require.Equal(t, chunk.OutcomeDuplicate, res.Outcome)
	require.Equal(t, float64(1), s.GetRange(0, 9999)[0].Value)
}

func TestSeriesSplitsOnFullChunk(t *testing.T) {
	s := New(1, nil, 0, chunk.Uncompressed, 48, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, Rounding{})
	for i := int64(0); i < 6; i++ {
		res := s.Add(i*1000, float64(i), nil)
		require.Equal(t, chunk.OutcomeOK, res.Outcome)
	}
	require.Greater(t, s.ChunkCount(), 1)
	require.Equal(t, 6, s.TotalSamples)
	got := s.GetRange(0, 9999)
	require.Len(t, got, 6)
	for i, sam := range got {
		require.Equal(t, int64(i)*1000, sam.Timestamp)
	}
}

func TestSeriesGetRangeFiltered(t *testing.T) {
	s := newTestSeries()
	for i := int64(0); i < 5; i++ {
		s.Add(i*1000, float64(i), nil)
	}
	got := s.GetRangeFiltered(0, 9999, TimestampFilter{1000, 3000}, nil)
	require.Equal(t, []chunk.Sample{{1000, 1}, {3000, 3}}, got)

	got = s.GetRangeFiltered(0, 9999, nil, &ValueFilter{Min: 2, Max: 3})
	require.Equal(t, []chunk.Sample{{2000, 2}, {3000, 3}}, got)
}

func TestSeriesRemoveRange(t *testing.T) {
	s := newTestSeries()
	for i := int64(0); i < 5; i++ {
		s.Add(i*1000, float64(i), nil)
	}
	removed := s.RemoveRange(1000, 3000)
	require.Equal(t, 3, removed)
	require.Equal(t, []chunk.Sample{{0, 0}, {4000, 4}}, s.GetRange(0, 9999))
	require.Equal(t, 2, s.TotalSamples)
}

func TestSeriesTrim(t *testing.T) {
	s := New(1, nil, 2500, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{}, Rounding{})
	for i := int64(0); i < 5; i++ {
		s.Add(i*1000, float64(i), nil)
	}
	removed := s.Trim()
	require.Equal(t, 2, removed)
	require.Equal(t, []chunk.Sample{{2000, 2}, {3000, 3}, {4000, 4}}, s.GetRange(0, 9999))
}

func TestSeriesIncrementSampleValue(t *testing.T) {
	s := newTestSeries()
	ts := int64(1000)
	res, err := s.IncrementSampleValue(&ts, 5, chunk.DuplicatePolicyConfig{})
	require.NoError(t, err)
	require.Equal(t, chunk.OutcomeOK, res.Outcome)
	require.Equal(t, float64(5), res.Sample.Value)

	res, err = s.IncrementSampleValue(&ts, 2, chunk.DuplicatePolicyConfig{})
	require.NoError(t, err)
	require.Equal(t, float64(7), res.Sample.Value)

	past := int64(500)
	_, err = s.IncrementSampleValue(&past, 1, chunk.DuplicatePolicyConfig{})
	require.Error(t, err)
}

func TestSeriesHasSamplesInRange(t *testing.T) {
	s := newTestSeries()
	s.Add(1000, 1, nil)
	s.Add(5000, 5, nil)
	require.True(t, s.HasSamplesInRange(900, 1100))
	require.False(t, s.HasSamplesInRange(2000, 3000))
}

func TestSeriesManyChunksUsesIndex(t *testing.T) {
	s := New(1, nil, 0, chunk.Uncompressed, 32, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyLast}, Rounding{})
	for i := int64(0); i < 200; i++ {
		res := s.Add(i*1000, float64(i), nil)
		require.Equal(t, chunk.OutcomeOK, res.Outcome)
	}
	require.Greater(t, s.ChunkCount(), chunkIndexThreshold)
	got := s.GetRange(50000, 60000)
	require.Len(t, got, 11)
	require.Equal(t, int64(50000), got[0].Timestamp)
	require.Equal(t, int64(60000), got[len(got)-1].Timestamp)
}
