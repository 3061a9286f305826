package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/index"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

type fakeDB struct {
	ids     []int32
	series  map[int32][]*series.TimeSeries
	indexes map[int32]*index.PostingIndex
	removed []int32
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		series:  make(map[int32][]*series.TimeSeries),
		indexes: make(map[int32]*index.PostingIndex),
	}
}

func (f *fakeDB) DBIDs() []int32 { return f.ids }

func (f *fakeDB) SeriesBatch(db int32, afterID uint64, limit int) ([]*series.TimeSeries, uint64) {
	all := f.series[db]
	var out []*series.TimeSeries
	for _, s := range all {
		if s.ID > afterID {
			out = append(out, s)
			if len(out) == limit {
				return out, s.ID
			}
		}
	}
	return out, 0
}

func (f *fakeDB) Index(db int32) *index.PostingIndex { return f.indexes[db] }

func (f *fakeDB) SeriesCount(db int32) int { return len(f.series[db]) }

func (f *fakeDB) RemoveDB(db int32) {
	f.removed = append(f.removed, db)
	delete(f.series, db)
	delete(f.indexes, db)
}

func newSeriesWithRetention(id uint64, retentionMillis int64, samples []chunk.Sample) *series.TimeSeries {
	s := series.New(id, nil, retentionMillis, chunk.Uncompressed, 4096, chunk.DuplicatePolicyConfig{Policy: chunk.DuplicatePolicyBlock}, series.Rounding{})
	for _, sam := range samples {
		s.Add(sam.Timestamp, sam.Value, nil)
	}
	return s
}

func TestRetentionTrimTaskTrimsEachBatch(t *testing.T) {
	db := newFakeDB()
	db.ids = []int32{0}
	s1 := newSeriesWithRetention(1, 5000, []chunk.Sample{{1000, 1}, {9000, 9}})
	s2 := newSeriesWithRetention(2, 5000, []chunk.Sample{{1000, 1}, {20000, 20}})
	db.series[0] = []*series.TimeSeries{s1, s2}

	task := NewRetentionTrimTask(db, 1)
	task.Run() // processes s1
	task.Run() // processes s2
	task.Run() // empty batch after s2: cursor wraps back to the start

	got := s1.GetRange(0, 100000)
	assert.Equal(t, []chunk.Sample{{9000, 9}}, got)
	got = s2.GetRange(0, 100000)
	assert.Equal(t, []chunk.Sample{{20000, 20}}, got)
}

func TestStaleIDGCTaskProcessesEachDB(t *testing.T) {
	db := newFakeDB()
	db.ids = []int32{0, 1}
	idx0, idx1 := index.New(), index.New()
	idx0.Index(1, []byte("k1"), [][2]string{{"env", "prod"}})
	idx0.MarkStale(1)
	db.indexes[0] = idx0
	db.indexes[1] = idx1

	task := NewStaleIDGCTask(db, 64)
	for i := 0; i < 2; i++ {
		task.Run()
	}

	got := idx0.PostingsForLabelValue("env", "prod")
	assert.True(t, got.IsEmpty())
}

func TestIndexOptimizeTaskRunsWithoutError(t *testing.T) {
	db := newFakeDB()
	db.ids = []int32{0}
	idx0 := index.New()
	idx0.AddPostingForLabelValue(1, "env", "prod")
	db.indexes[0] = idx0

	task := NewIndexOptimizeTask(db, 8)
	require.NotPanics(t, func() { task.Run() })
}

func TestUnusedDBCleanupRemovesEmptyDBs(t *testing.T) {
	db := newFakeDB()
	db.ids = []int32{0, 1}
	db.series[0] = []*series.TimeSeries{newSeriesWithRetention(1, 0, []chunk.Sample{{1000, 1}})}
	// db 1 has no series

	task := NewUnusedDBCleanupTask(db)
	task.Run()

	assert.Equal(t, []int32{1}, db.removed)
}
