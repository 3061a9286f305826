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

// Package common holds primitives shared across the time-series engine:
// error kinds, the string interner, id generation and small encoding helpers.
package common

import "fmt"

// ErrKind classifies engine errors from recoverable to fatal, per the
// command-facing error contract. Per-sample outcomes (Ignored, Duplicate,
// TooOld) are not ErrKinds; they are values of chunk.AddOutcome.
type ErrKind int

const (
	ErrInvalidArgument ErrKind = iota
	ErrKeyNotFound
	ErrKeyNotTimeSeries
	ErrDuplicateSeries
	ErrCapacityFull
	ErrChunkDecoding
	ErrChunkSplit
	ErrNodeUnreachable
	ErrTimeout
	ErrSerialization
	ErrKeyPermission
	ErrPermission
	ErrBadRequestID
	ErrInternal
)

func (k ErrKind) String() string {
	switch k {
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrKeyNotFound:
		return "KeyNotFound"
	case ErrKeyNotTimeSeries:
		return "KeyNotTimeSeries"
	case ErrDuplicateSeries:
		return "DuplicateSeries"
	case ErrCapacityFull:
		return "CapacityFull"
	case ErrChunkDecoding:
		return "ChunkDecoding"
	case ErrChunkSplit:
		return "ChunkSplitError"
	case ErrNodeUnreachable:
		return "NodeUnreachable"
	case ErrTimeout:
		return "Timeout"
	case ErrSerialization:
		return "Serialization"
	case ErrKeyPermission:
		return "KeyPermission"
	case ErrPermission:
		return "Permission"
	case ErrBadRequestID:
		return "BadRequestId"
	case ErrInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the engine's wire-facing error type: a kind plus a human message.
// Command glue maps this to the host's error string; background tasks log
// it and continue rather than propagating it.
type Error struct {
	Kind ErrKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is lets errors.Is(err, ErrKind) style checks work via a sentinel wrapper.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an *Error with a formatted message.
func NewError(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Sentinel instances for errors.Is comparisons where no extra context is needed.
var (
	ErrKeyNotFoundSentinel       = &Error{Kind: ErrKeyNotFound}
	ErrKeyNotTimeSeriesSentinel  = &Error{Kind: ErrKeyNotTimeSeries}
	ErrCapacityFullSentinel      = &Error{Kind: ErrCapacityFull}
	ErrNodeUnreachableSentinel   = &Error{Kind: ErrNodeUnreachable}
	ErrTimeoutSentinel           = &Error{Kind: ErrTimeout}
)
