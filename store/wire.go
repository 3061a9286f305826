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

package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/cluster"
)

// RequestHeader/ResponseHeader are the fixed-length (request_id u64,
// msg_type u8, db i32, reserved u24) wire header of spec.md §6; request and
// response share the same shape and the same encoder as the fan-out runtime
// (cluster.Header), since both are the one wire format described there.
type RequestHeader = cluster.Header
type ResponseHeader = cluster.Header

// EncodeSampleAddResult serializes the shared reply shape of spec.md §6:
// Ok(sample) | Ignored(last_ts) | Duplicate | TooOld | CapacityFull |
// Error(static string), as a one-byte outcome tag plus a fixed or
// length-implicit payload.
func EncodeSampleAddResult(r chunk.AddResult) []byte {
	out := []byte{byte(r.Outcome)}
	switch r.Outcome {
	case chunk.OutcomeOK:
		var buf [16]byte
		binary.LittleEndian.PutUint64(buf[0:8], uint64(r.Sample.Timestamp))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(r.Sample.Value))
		out = append(out, buf[:]...)
	case chunk.OutcomeIgnored:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(r.LastTS))
		out = append(out, buf[:]...)
	case chunk.OutcomeError:
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		out = append(out, []byte(msg)...)
	}
	return out
}

// DecodeSampleAddResult is EncodeSampleAddResult's inverse.
func DecodeSampleAddResult(data []byte) (chunk.AddResult, error) {
	if len(data) == 0 {
		return chunk.AddResult{}, fmt.Errorf("store: empty sample-add-result payload")
	}
	outcome := chunk.AddOutcome(data[0])
	body := data[1:]
	switch outcome {
	case chunk.OutcomeOK:
		if len(body) < 16 {
			return chunk.AddResult{}, fmt.Errorf("store: short Ok payload: %d bytes", len(body))
		}
		ts := int64(binary.LittleEndian.Uint64(body[0:8]))
		v := math.Float64frombits(binary.LittleEndian.Uint64(body[8:16]))
		return chunk.AddResult{Outcome: outcome, Sample: chunk.Sample{Timestamp: ts, Value: v}}, nil
	case chunk.OutcomeIgnored:
		if len(body) < 8 {
			return chunk.AddResult{}, fmt.Errorf("store: short Ignored payload: %d bytes", len(body))
		}
		return chunk.AddResult{Outcome: outcome, LastTS: int64(binary.LittleEndian.Uint64(body))}, nil
	case chunk.OutcomeError:
		return chunk.AddResult{Outcome: outcome, Err: fmt.Errorf("%s", string(body))}, nil
	default:
		return chunk.AddResult{Outcome: outcome}, nil
	}
}
