package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexAndDrop(t *testing.T) {
	p := New()
	p.Index(1, []byte("series:1"), [][2]string{{"env", "prod"}})

	id, ok := p.IDForKey([]byte("series:1"))
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)

	key, ok := p.KeyForID(1)
	require.True(t, ok)
	assert.Equal(t, []byte("series:1"), key)

	got := p.AllPostings()
	assert.ElementsMatch(t, []uint64{1}, sortedSlice(got))

	p.Drop(1)
	_, ok = p.IDForKey([]byte("series:1"))
	assert.False(t, ok)
	got = p.AllPostings()
	assert.True(t, got.IsEmpty())
	got = p.PostingsForLabelValue("env", "prod")
	assert.True(t, got.IsEmpty())
}

func TestRenamePreservesBitmaps(t *testing.T) {
	p := New()
	p.Index(1, []byte("old"), [][2]string{{"env", "prod"}})

	p.Rename(1, []byte("new"))

	_, ok := p.IDForKey([]byte("old"))
	assert.False(t, ok)
	id, ok := p.IDForKey([]byte("new"))
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)

	got := p.PostingsForLabelValue("env", "prod")
	assert.ElementsMatch(t, []uint64{1}, sortedSlice(got))
}

func TestFlushClearsEverything(t *testing.T) {
	p := New()
	p.Index(1, []byte("k1"), [][2]string{{"env", "prod"}})
	p.MarkStale(1)

	p.Flush()

	got := p.AllPostings()
	assert.True(t, got.IsEmpty())
	_, ok := p.IDForKey([]byte("k1"))
	assert.False(t, ok)
	p.mu.RLock()
	assert.True(t, p.staleIDs.IsEmpty())
	p.mu.RUnlock()
}

func TestSwapExchangesState(t *testing.T) {
	a := New()
	a.Index(1, []byte("a1"), [][2]string{{"env", "prod"}})
	b := New()
	b.Index(2, []byte("b1"), [][2]string{{"env", "dev"}})

	Swap(a, b)

	id, ok := a.IDForKey([]byte("b1"))
	require.True(t, ok)
	assert.Equal(t, uint64(2), id)
	got := a.PostingsForLabelValue("env", "dev")
	assert.ElementsMatch(t, []uint64{2}, sortedSlice(got))

	id, ok = b.IDForKey([]byte("a1"))
	require.True(t, ok)
	assert.Equal(t, uint64(1), id)
	got = b.PostingsForLabelValue("env", "prod")
	assert.ElementsMatch(t, []uint64{1}, sortedSlice(got))
}
