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
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const inflightShards = 16

// InflightMap is the deterministic-hash concurrent map keyed by u64 request
// id that spec.md §4.6/§5 describes: each fan-out registers its Tracker on
// send and removes it on completion or timeout.
type InflightMap struct {
	shards [inflightShards]inflightShard
}

type inflightShard struct {
	mu sync.Mutex
	m  map[uint64]*Tracker
}

func NewInflightMap() *InflightMap {
	m := &InflightMap{}
	for i := range m.shards {
		m.shards[i].m = make(map[uint64]*Tracker)
	}
	return m
}

func (m *InflightMap) shardFor(requestID uint64) *inflightShard {
	var key [8]byte
	binary.LittleEndian.PutUint64(key[:], requestID)
	h := xxhash.Sum64(key[:])
	return &m.shards[h%inflightShards]
}

// Register adds a Tracker for requestID. Callers remove it with Remove once
// the tracker finalizes (success or timeout).
func (m *InflightMap) Register(requestID uint64, t *Tracker) {
	s := m.shardFor(requestID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[requestID] = t
}

// Lookup resolves requestID to its Tracker, used by the receiver path when
// a stray/duplicate reply arrives after the command path already holds the
// reference directly (defensive; the common path passes the Tracker inline).
func (m *InflightMap) Lookup(requestID uint64) (*Tracker, bool) {
	s := m.shardFor(requestID)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.m[requestID]
	return t, ok
}

// Remove drops the inflight entry for requestID.
func (m *InflightMap) Remove(requestID uint64) {
	s := m.shardFor(requestID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, requestID)
}
