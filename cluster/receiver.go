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

package cluster

import (
	"context"

	"github.com/golang/snappy"

	"github.com/ccollie/valkey-timeseries-sub001/common"
)

// Handler executes one request type locally, using the same code path a
// standalone (non fan-out) call would use, and returns the reply payload.
type Handler func(ctx context.Context, db int32, payload []byte) ([]byte, error)

// Receiver is the peer-side dispatch table: look up the handler by message
// type, deserialize, execute, serialize, reply.
type Receiver struct {
	handlers map[MsgType]Handler
}

func NewReceiver() *Receiver {
	return &Receiver{handlers: make(map[MsgType]Handler)}
}

// Register installs the handler for one MsgType.
func (r *Receiver) Register(t MsgType, h Handler) {
	r.handlers[t] = h
}

// Dispatch decodes the header, runs the matching handler, and produces the
// header+payload to send back. Payloads are snappy-compressed on the wire;
// Dispatch transparently decompresses the request and compresses the reply.
func (r *Receiver) Dispatch(ctx context.Context, wire []byte) ([]byte, error) {
	if len(wire) < HeaderSize {
		return nil, common.NewError(common.ErrSerialization, "short message: %d bytes", len(wire))
	}
	header, err := DecodeHeader(wire[:HeaderSize])
	if err != nil {
		return nil, err
	}
	h, ok := r.handlers[header.Type]
	if !ok {
		return r.errorReply(header, common.NewError(common.ErrBadRequestID, "no handler for msg type %d", header.Type)), nil
	}

	payload, err := snappy.Decode(nil, wire[HeaderSize:])
	if err != nil {
		return r.errorReply(header, common.NewError(common.ErrSerialization, "%v", err)), nil
	}

	reply, err := h(ctx, header.DB, payload)
	if err != nil {
		ce, ok := err.(*common.Error)
		if !ok {
			ce = common.NewError(common.ErrInternal, "%v", err)
		}
		return r.errorReply(header, ce), nil
	}
	return encodeReply(header, reply), nil
}

func encodeReply(header Header, payload []byte) []byte {
	out := header.Encode()
	return append(out, snappy.Encode(nil, payload)...)
}

func (r *Receiver) errorReply(header Header, ce *common.Error) []byte {
	header.Type = MsgError
	body := append([]byte{byte(ce.Kind)}, []byte(ce.Msg)...)
	return encodeReply(header, body)
}
