package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
)

func TestSampleAddResultRoundTripsOk(t *testing.T) {
	r := chunk.AddResult{Outcome: chunk.OutcomeOK, Sample: chunk.Sample{Timestamp: 1000, Value: 3.5}}
	got, err := DecodeSampleAddResult(EncodeSampleAddResult(r))
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestSampleAddResultRoundTripsIgnored(t *testing.T) {
	r := chunk.AddResult{Outcome: chunk.OutcomeIgnored, LastTS: 5000}
	got, err := DecodeSampleAddResult(EncodeSampleAddResult(r))
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestSampleAddResultRoundTripsErrorMessage(t *testing.T) {
	r := chunk.AddResult{Outcome: chunk.OutcomeError, Err: assertError{"boom"}}
	got, err := DecodeSampleAddResult(EncodeSampleAddResult(r))
	require.NoError(t, err)
	assert.Equal(t, chunk.OutcomeError, got.Outcome)
	assert.EqualError(t, got.Err, "boom")
}

func TestSampleAddResultRoundTripsBareOutcomes(t *testing.T) {
	for _, outcome := range []chunk.AddOutcome{chunk.OutcomeDuplicate, chunk.OutcomeTooOld, chunk.OutcomeCapacityFull} {
		got, err := DecodeSampleAddResult(EncodeSampleAddResult(chunk.AddResult{Outcome: outcome}))
		require.NoError(t, err)
		assert.Equal(t, outcome, got.Outcome)
	}
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func TestRequestHeaderIsClusterHeaderShape(t *testing.T) {
	var h RequestHeader
	h.RequestID = 42
	encoded := h.Encode()
	assert.Len(t, encoded, 16)
}
