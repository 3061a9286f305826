package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/store"
)

func run(t *testing.T, engine *store.Engine, args ...string) string {
	t.Helper()
	root := newRootCmd(engine)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return buf.String()
}

func TestCreateAddGetRoundTrips(t *testing.T) {
	e := store.NewEngine(nil)
	out := run(t, e, "CREATE", "temp:room1", "--labels", "room=1,unit=celsius")
	assert.Contains(t, out, "OK")

	out = run(t, e, "ADD", "temp:room1", "1000", "21.5")
	assert.Contains(t, out, "OK 1000")

	out = run(t, e, "GET", "temp:room1")
	assert.Equal(t, "1000 21.5\n", out)
}

func TestRangeReturnsInsertedSamples(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "cpu:1")
	run(t, e, "ADDBULK", "cpu:1", "1000:1", "2000:2", "3000:3")

	out := run(t, e, "RANGE", "cpu:1", "0", "5000")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "cpu:1 1000 1", lines[0])
	assert.Equal(t, "cpu:1 3000 3", lines[2])
}

func TestRevRangeReversesOrder(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "cpu:1")
	run(t, e, "ADDBULK", "cpu:1", "1000:1", "2000:2")

	out := run(t, e, "REVRANGE", "cpu:1", "0", "5000")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "cpu:1 2000 2", lines[0])
}

func TestQueryAndCardUseLabelSelector(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "a", "--labels", "env=prod")
	run(t, e, "CREATE", "b", "--labels", "env=staging")

	out := run(t, e, "QUERY", "--match", "env=prod")
	assert.Equal(t, "a\n", out)

	out = run(t, e, "CARD", "--match", "env=prod")
	assert.Equal(t, "1\n", out)
}

func TestLabelNamesAndValues(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "a", "--labels", "env=prod,region=us")
	run(t, e, "CREATE", "b", "--labels", "env=staging,region=us")

	out := run(t, e, "LABELNAMES")
	assert.Equal(t, "env\nregion\n", out)

	out = run(t, e, "LABELVALUES", "env")
	assert.Equal(t, "prod\nstaging\n", out)
}

func TestDeleteRemovesSeries(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "a")
	run(t, e, "DEL", "a")

	root := newRootCmd(e)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"GET", "a"})
	require.Error(t, root.Execute())
	assert.Contains(t, buf.String(), "no such key")
}

func TestAlterUpdatesLabelsWithoutLeakingStalePostings(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "a", "--labels", "env=prod")
	run(t, e, "ALTER", "a", "--labels", "env=staging")

	out := run(t, e, "QUERY", "--match", "env=prod")
	assert.Empty(t, out)
	out = run(t, e, "QUERY", "--match", "env=staging")
	assert.Equal(t, "a\n", out)
}

func TestIncrByAccumulatesFromLastSample(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "counter")
	run(t, e, "ADD", "counter", "1000", "10")
	out := run(t, e, "INCRBY", "counter", "5", "2000")
	assert.Contains(t, out, "OK 2000")

	out = run(t, e, "GET", "counter")
	assert.Equal(t, "2000 15\n", out)
}

func TestJoinInner(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "left")
	run(t, e, "CREATE", "right")
	run(t, e, "ADDBULK", "left", "1000:1", "2000:2")
	run(t, e, "ADDBULK", "right", "1000:10", "3000:30")

	out := run(t, e, "JOIN", "left", "right", "0", "5000", "--type", "INNER")
	assert.Equal(t, "1000 1 10\n", out)
}

func TestAlterAddRuleThenDeleteRule(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "src")
	run(t, e, "CREATE", "dst")
	run(t, e, "ALTER", "src", "--add-rule", "dst:60000:avg")

	out := run(t, e, "INFO", "src")
	assert.Contains(t, out, "rules: 1")

	run(t, e, "DELETERULE", "src", "dst")
	out = run(t, e, "INFO", "src")
	assert.Contains(t, out, "rules: 0")
}

func TestCreateRejectsInvalidChunkSize(t *testing.T) {
	e := store.NewEngine(nil)
	root := newRootCmd(e)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs([]string{"CREATE", "a", "--chunk-size", "not-a-size"})
	assert.Error(t, root.Execute())
}

func TestStatsReportsSeriesCount(t *testing.T) {
	e := store.NewEngine(nil)
	run(t, e, "CREATE", "a")
	run(t, e, "CREATE", "b")

	out := run(t, e, "STATS")
	assert.Contains(t, out, "db[0].series: 2")
}
