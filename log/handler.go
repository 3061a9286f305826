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

package log

import (
	"fmt"
	"io"
	"sync"
)

// streamHandler writes one formatted line per Record to an io.Writer,
// serialized behind a mutex since multiple goroutines (command path,
// background tasks, fan-out receiver) log concurrently.
type streamHandler struct {
	mu sync.Mutex
	w  io.Writer
}

// StreamHandler builds a Handler that writes plain formatted lines to w.
func StreamHandler(w io.Writer) Handler {
	return &streamHandler{w: w}
}

func (h *streamHandler) Log(r Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, FormatRecord(r))
	return err
}

// FilterHandler drops records below min before forwarding to next.
type FilterHandler struct {
	Min  Lvl
	Next Handler
}

func (h FilterHandler) Log(r Record) error {
	if r.Lvl < h.Min {
		return nil
	}
	return h.Next.Log(r)
}

// MemHandler collects Records in memory, useful for asserting on emitted
// log lines in tests.
type MemHandler struct {
	mu      sync.Mutex
	records []Record
}

func NewMemHandler() *MemHandler { return &MemHandler{} }

func (h *MemHandler) Log(r Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *MemHandler) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Record(nil), h.records...)
}
