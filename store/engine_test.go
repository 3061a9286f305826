package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/common"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

var testPool = common.NewInterner()

func newEngineSeries(e *Engine, labels series.Labels) *series.TimeSeries {
	id := e.NextSeriesID()
	return series.New(id, labels, 0, chunk.Uncompressed, 256, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyBlock}, series.Rounding{})
}

func TestEngineSetThenQueryThroughIndex(t *testing.T) {
	e := NewEngine(nil)
	labels := series.Labels{{Name: testPool.Intern([]byte("env")), Value: testPool.Intern([]byte("prod"))}}
	s := newEngineSeries(e, labels)
	e.Set(0, []byte("ts:a"), s)

	idx := e.Index(0)
	id, ok := idx.IDForKey([]byte("ts:a"))
	require.True(t, ok)
	assert.Equal(t, s.ID, id)
	assert.True(t, idx.PostingsForLabelValue("env", "prod").Contains(s.ID))
	assert.Equal(t, 1, e.SeriesCount(0))
}

func TestEngineDelRemovesFromIndexAndSeriesMap(t *testing.T) {
	e := NewEngine(nil)
	s := newEngineSeries(e, nil)
	e.Set(0, []byte("ts:a"), s)
	e.Del(0, []byte("ts:a"), s)

	assert.Equal(t, 0, e.SeriesCount(0))
	_, ok := e.Index(0).IDForKey([]byte("ts:a"))
	assert.False(t, ok)
}

func TestEngineSeriesBatchPaginatesAscendingByID(t *testing.T) {
	e := NewEngine(nil)
	var last *series.TimeSeries
	for i := 0; i < 5; i++ {
		s := newEngineSeries(e, nil)
		e.Set(0, []byte{byte(i)}, s)
		last = s
	}

	batch, next := e.SeriesBatch(0, 0, 2)
	require.Len(t, batch, 2)
	assert.Less(t, batch[0].ID, batch[1].ID)
	assert.Equal(t, batch[1].ID, next)

	batch2, next2 := e.SeriesBatch(0, next, 2)
	require.Len(t, batch2, 2)
	assert.Greater(t, batch2[0].ID, next)

	_ = last
	_, final := e.SeriesBatch(0, batch2[1].ID, 2)
	assert.Equal(t, uint64(0), final)
}

func TestEngineFlushDBEndClearsEverything(t *testing.T) {
	e := NewEngine(nil)
	s := newEngineSeries(e, nil)
	e.Set(2, []byte("ts:a"), s)
	e.FlushDBEnd(2)
	assert.Equal(t, 0, e.SeriesCount(2))
}

func TestEngineSwapDBExchangesState(t *testing.T) {
	e := NewEngine(nil)
	s0 := newEngineSeries(e, nil)
	e.Set(0, []byte("a"), s0)
	s1 := newEngineSeries(e, nil)
	e.Set(1, []byte("b"), s1)

	e.SwapDB(0, 1)

	assert.Equal(t, 1, e.SeriesCount(0))
	assert.Equal(t, 1, e.SeriesCount(1))
	_, ok := e.Index(0).IDForKey([]byte("b"))
	assert.True(t, ok)
	_, ok = e.Index(1).IDForKey([]byte("a"))
	assert.True(t, ok)
}

func TestEngineRenameToUpdatesIndexKey(t *testing.T) {
	e := NewEngine(nil)
	s := newEngineSeries(e, nil)
	e.Set(0, []byte("old"), s)
	e.RenameTo(0, []byte("new"), s)

	_, ok := e.Index(0).IDForKey([]byte("old"))
	assert.False(t, ok)
	id, ok := e.Index(0).IDForKey([]byte("new"))
	require.True(t, ok)
	assert.Equal(t, s.ID, id)
}
