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

package common

import (
	"net"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	snowflakeTimeBits     = 41
	snowflakeMachineBits  = 10
	snowflakeSequenceBits = 12
	snowflakeMaxSequence  = 1<<snowflakeSequenceBits - 1
	snowflakeMaxMachine   = 1<<snowflakeMachineBits - 1

	// snowflakeEpochMillis is an arbitrary fixed epoch so 41 time bits
	// comfortably outlive any realistic process lifetime.
	snowflakeEpochMillis = int64(1700000000000)
)

// Snowflake generates monotonic u64 ids composed of (time, machine,
// sequence) bits. It backs both the process-unique series id counter and
// the cluster fan-out request id generator (§4.6, §9 glossary).
type Snowflake struct {
	mu       sync.Mutex
	machine  uint64
	lastTime int64
	seq      uint64

	nowFunc func() int64 // overridable for tests
}

// NewSnowflake builds a generator whose machine id is derived from a hash of
// the node's IP address, truncated to the machine-id bit width.
func NewSnowflake(nodeIP net.IP) *Snowflake {
	var machine uint64
	if nodeIP != nil {
		machine = xxhash.Sum64(nodeIP) & snowflakeMaxMachine
	}
	return &Snowflake{
		machine: machine,
		nowFunc: func() int64 { return time.Now().UnixMilli() },
	}
}

// Next returns the next monotonic id. It never goes backwards even across
// clock adjustments: if the wall clock appears to move backward, the last
// observed millisecond is reused and the sequence counter keeps advancing.
func (s *Snowflake) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc() - snowflakeEpochMillis
	if now < s.lastTime {
		now = s.lastTime
	}
	if now == s.lastTime {
		s.seq = (s.seq + 1) & snowflakeMaxSequence
		if s.seq == 0 {
			// Sequence exhausted within the same millisecond: spin to the next one.
			for now <= s.lastTime {
				now = s.nowFunc() - snowflakeEpochMillis
			}
		}
	} else {
		s.seq = 0
	}
	s.lastTime = now

	id := uint64(now)<<(snowflakeMachineBits+snowflakeSequenceBits) |
		(s.machine << snowflakeSequenceBits) |
		s.seq
	return id
}

// MonotonicCounter is a plain process-unique monotonic counter with no clock
// component.
type MonotonicCounter struct {
	mu   sync.Mutex
	next uint64
}

func (c *MonotonicCounter) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next
}
