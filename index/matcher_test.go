package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcherEqualEmptyMeansWithoutLabel(t *testing.T) {
	p := New()
	p.Index(1, []byte("k1"), [][2]string{{"env", "prod"}})
	p.Index(2, []byte("k2"), nil)

	m, err := NewMatcher("env", MatchEqual, "")
	require.NoError(t, err)
	got := PostingsForMatcher(p, m)
	assert.ElementsMatch(t, []uint64{2}, sortedSlice(got))
}

func TestMatcherNotEqualEmptyMeansHasLabel(t *testing.T) {
	p := New()
	p.Index(1, []byte("k1"), [][2]string{{"env", "prod"}})
	p.Index(2, []byte("k2"), nil)

	m, err := NewMatcher("env", MatchNotEqual, "")
	require.NoError(t, err)
	got := PostingsForMatcher(p, m)
	assert.ElementsMatch(t, []uint64{1}, sortedSlice(got))
}

func TestMatcherRegexEqualMatchingEmptyActsLikeWithoutLabel(t *testing.T) {
	p := New()
	p.Index(1, []byte("k1"), [][2]string{{"env", "prod"}})
	p.Index(2, []byte("k2"), nil)

	m, err := NewMatcher("env", MatchRegexEqual, "prod|")
	require.NoError(t, err)
	got := PostingsForMatcher(p, m)
	assert.ElementsMatch(t, []uint64{1, 2}, sortedSlice(got))
}

func TestMatcherRegexNotEqual(t *testing.T) {
	p := New()
	p.Index(1, []byte("k1"), [][2]string{{"env", "prod"}})
	p.Index(2, []byte("k2"), [][2]string{{"env", "dev"}})

	m, err := NewMatcher("env", MatchRegexNotEqual, "prod")
	require.NoError(t, err)
	got := PostingsForMatcher(p, m)
	assert.ElementsMatch(t, []uint64{2}, sortedSlice(got))
}

func TestMatchersOrAcrossGroups(t *testing.T) {
	p := New()
	p.Index(1, []byte("k1"), [][2]string{{"env", "prod"}, {"region", "us"}})
	p.Index(2, []byte("k2"), [][2]string{{"env", "dev"}, {"region", "eu"}})
	p.Index(3, []byte("k3"), [][2]string{{"env", "staging"}, {"region", "us"}})

	mProd, err := NewMatcher("env", MatchEqual, "prod")
	require.NoError(t, err)
	mEU, err := NewMatcher("region", MatchEqual, "eu")
	require.NoError(t, err)
	got := Matchers{{mProd}, {mEU}}.Resolve(p)
	assert.ElementsMatch(t, []uint64{1, 2}, sortedSlice(got))
}

func TestNewMatcherInvalidRegex(t *testing.T) {
	_, err := NewMatcher("env", MatchRegexEqual, "(")
	assert.Error(t, err)
}
