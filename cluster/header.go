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

// Package cluster implements the label-driven query fan-out runtime: wire
// headers, scatter modes, per-request trackers, and the peer-side receiver
// dispatch table of spec.md §4.6.
package cluster

import (
	"encoding/binary"

	"github.com/ccollie/valkey-timeseries-sub001/common"
)

// MsgType tags a fan-out request/response pair's payload shape.
type MsgType uint8

const (
	MsgMGet MsgType = iota
	MsgMRange
	MsgCardinality
	MsgLabelNames
	MsgLabelValues
	MsgStats
	MsgSearchQuery
	MsgError
)

// HeaderSize is the fixed wire size of Header: u64 + u8 + i32 + u24 reserved.
const HeaderSize = 8 + 1 + 4 + 3

// Header is the fixed-length request/response envelope of spec.md §6:
// (request_id u64, msg_type u8, db i32, reserved u24), little-endian.
type Header struct {
	RequestID uint64
	Type      MsgType
	DB        int32
}

// Encode writes the header in its 16-byte wire layout.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], h.RequestID)
	buf[8] = byte(h.Type)
	binary.LittleEndian.PutUint32(buf[9:13], uint32(h.DB))
	// buf[13:16] stays zero: reserved.
	return buf
}

// DecodeHeader reads a Header from its wire layout.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, common.NewError(common.ErrSerialization, "short header: %d bytes", len(buf))
	}
	return Header{
		RequestID: binary.LittleEndian.Uint64(buf[0:8]),
		Type:      MsgType(buf[8]),
		DB:        int32(binary.LittleEndian.Uint32(buf[9:13])),
	}, nil
}

// ScatterMode selects which shards a fan-out request is sent to.
type ScatterMode uint8

const (
	ScatterPrimaryOnly ScatterMode = iota
	ScatterRandom
	ScatterReplicasOnly // test-only mode
)
