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
	"io"

	"github.com/pkg/errors"

	"github.com/ccollie/valkey-timeseries-sub001/common"
	"github.com/ccollie/valkey-timeseries-sub001/index"
)

// AuxSave persists idx's id<->key<->labels registrations alongside the RDB
// stream, driven by the host's Before-RDB trigger (spec.md §6). Postings
// bitmaps are not serialized directly: AuxLoad rebuilds them by replaying
// Index() for every entry, which is cheap relative to RDB load itself and
// avoids a second bespoke bitmap format.
func (c *codec) AuxSave(w io.Writer, idx *index.PostingIndex) error {
	entries := idx.Entries()
	var buf []byte
	buf = common.PutUvarint(buf, uint64(len(entries)))
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint64(buf, e.ID)
		buf = appendString(buf, string(e.Key))
		buf = common.PutUvarint(buf, uint64(len(e.Labels)))
		for _, l := range e.Labels {
			buf = appendString(buf, l[0])
			buf = appendString(buf, l[1])
		}
	}
	_, err := w.Write(buf)
	return errors.Wrap(err, "store: write aux stream")
}

// AuxLoad is AuxSave's inverse: it rebuilds a fresh PostingIndex from the
// persisted registrations.
func (c *codec) AuxLoad(r io.Reader) (*index.PostingIndex, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "store: read aux stream")
	}
	br := &byteReader{b: raw}

	count, err := br.uvarint()
	if err != nil {
		return nil, err
	}
	idx := index.New()
	for i := uint64(0); i < count; i++ {
		id, err := br.uint64()
		if err != nil {
			return nil, err
		}
		key, err := br.string()
		if err != nil {
			return nil, err
		}
		labelCount, err := br.uvarint()
		if err != nil {
			return nil, err
		}
		labels := make([][2]string, 0, labelCount)
		for j := uint64(0); j < labelCount; j++ {
			name, err := br.string()
			if err != nil {
				return nil, err
			}
			value, err := br.string()
			if err != nil {
				return nil, err
			}
			labels = append(labels, [2]string{name, value})
		}
		idx.Index(id, []byte(key), labels)
	}
	return idx, nil
}
