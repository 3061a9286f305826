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
	"errors"
	"math/rand"

	"github.com/cenkalti/backoff/v4"

	"github.com/ccollie/valkey-timeseries-sub001/common"
)

// Peer is one reachable shard/replica this node can scatter a request to.
type Peer interface {
	ID() string
	// Send delivers header+payload to the peer and returns its reply
	// payload. A transient failure should be reported as *common.Error
	// with Kind == ErrNodeUnreachable so Scatter's retry policy applies.
	Send(ctx context.Context, header Header, payload []byte) ([]byte, error)
}

// sendWithRetry retries a transient NodeUnreachable failure with an
// exponential backoff bounded by ctx's deadline, per the cluster retry
// policy wired to cenkalti/backoff.
func sendWithRetry(ctx context.Context, p Peer, header Header, payload []byte) ([]byte, error) {
	var result []byte
	op := func() error {
		reply, err := p.Send(ctx, header, payload)
		if err != nil {
			var ce *common.Error
			if errors.As(err, &ce) && ce.Kind == common.ErrNodeUnreachable {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		result = reply
		return nil
	}
	b := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return result, nil
}

// selectPeers applies ScatterMode to choose which of the candidate peers to
// send to.
func selectPeers(mode ScatterMode, primaries, replicas []Peer) []Peer {
	switch mode {
	case ScatterReplicasOnly:
		return replicas
	case ScatterRandom:
		all := append(append([]Peer(nil), primaries...), replicas...)
		if len(all) == 0 {
			return all
		}
		return []Peer{all[rand.Intn(len(all))]}
	default: // ScatterPrimaryOnly
		return primaries
	}
}

// Scatter fans a request out to the peers selected by mode, tracking
// completions on a fresh Tracker registered in inflight. It returns the
// tracker and how many messages actually left the node.
func Scatter(ctx context.Context, inflight *InflightMap, header Header, payload []byte, mode ScatterMode, primaries, replicas []Peer) (*Tracker, int) {
	peers := selectPeers(mode, primaries, replicas)
	tracker := NewTracker(len(peers))
	inflight.Register(header.RequestID, tracker)

	for _, p := range peers {
		go func(p Peer) {
			reply, err := sendWithRetry(ctx, p, header, payload)
			if err != nil {
				var ce *common.Error
				if !errors.As(err, &ce) {
					ce = common.NewError(common.ErrNodeUnreachable, "%v", err)
				}
				tracker.RaiseError(ce)
				return
			}
			tracker.Update(Response{PeerID: p.ID(), Payload: reply})
		}(p)
	}
	return tracker, len(peers)
}
