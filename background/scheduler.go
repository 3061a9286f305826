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

// Package background implements the host-tick-driven cron dispatcher of
// spec.md §4.7: registered tasks fire at their own cadence, each offloaded
// onto a worker pool rather than running on the host's command path.
package background

import "sync"

// TickRate is the host's cron tick frequency (~10 Hz per spec.md §4.7).
const TickRate = 10 // ticks per second

// Task is one registered background job: IntervalTicks is how many host
// ticks elapse between runs, Run performs one unit of work (expected to be
// itself incremental/cursor-based for unbounded state).
type Task struct {
	Name          string
	IntervalTicks int64
	Run           func()
}

// Scheduler dispatches registered Tasks when `tick % IntervalTicks == 0`,
// offloading each firing onto the worker pool so the host tick loop itself
// never blocks on task work.
type Scheduler struct {
	mu    sync.Mutex
	tick  int64
	tasks []Task
	pool  WorkerPool
}

// WorkerPool offloads a unit of work off the calling goroutine. Production
// wiring passes a bounded pool; tests may pass RunInline.
type WorkerPool interface {
	Submit(func())
}

// RunInline is a WorkerPool that runs the task synchronously, useful for
// deterministic tests.
type RunInline struct{}

func (RunInline) Submit(f func()) { f() }

func NewScheduler(pool WorkerPool) *Scheduler {
	return &Scheduler{pool: pool}
}

// Register adds a task. IntervalTicks must be positive.
func (s *Scheduler) Register(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// Tick advances the host clock by one tick and offloads every task whose
// cadence divides the new tick count.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	s.tick++
	tick := s.tick
	tasks := append([]Task(nil), s.tasks...)
	s.mu.Unlock()

	for _, t := range tasks {
		if t.IntervalTicks <= 0 {
			continue
		}
		if tick%t.IntervalTicks == 0 {
			s.pool.Submit(t.Run)
		}
	}
}

// TicksFor converts a cadence given in seconds to a tick interval at
// TickRate, per spec.md §4.7's "~10s"/"~15s"/"~60s"/"~5min" task cadences.
func TicksFor(seconds int64) int64 {
	return seconds * TickRate
}
