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
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/ccollie/valkey-timeseries-sub001/chunk"
	"github.com/ccollie/valkey-timeseries-sub001/common"
	"github.com/ccollie/valkey-timeseries-sub001/series"
)

// EncVer is the current persisted-format version, bumped whenever the
// per-series layout below changes incompatibly.
const EncVer = 1

// coldChunkThreshold is the chunk count at or above which a series' chunk blobs
// are zstd-compressed as one batch rather than stored blob-by-blob, per
// SPEC_FULL's "RDB chunk-blob compression for cold chunk persistence
// batches": a freshly written series with a handful of chunks gains
// nothing from compression overhead, a long-retained one does.
const coldChunkThreshold = 8

// codec implements RDBSave/RDBLoad/AuxSave/AuxLoad against an Interner that
// owns the label strings read back off the wire.
type codec struct {
	interner *common.Interner
}

func newCodec(interner *common.Interner) *codec {
	return &codec{interner: interner}
}

// RDBSave writes s per spec.md §6's persisted per-series layout:
// (id u64, labels, retention ms, encoding name, rounding?, duplicate_policy,
// chunk_size_bytes, chunk_count, [chunk_count × chunk_blob]).
func (c *codec) RDBSave(w io.Writer, s *series.TimeSeries) error {
	var buf []byte
	buf = binary.LittleEndian.AppendUint64(buf, s.ID)
	buf = appendLabels(buf, s.Labels)
	buf = common.PutVarint(buf, s.RetentionMillis)
	buf = appendString(buf, s.ChunkCompression.String())
	buf = appendRounding(buf, s.Rounding)
	buf = appendDuplicatePolicy(buf, s.Duplicates)
	buf = common.PutUvarint(buf, uint64(s.ChunkSizeBytes))

	chunks := s.Chunks()
	buf = common.PutUvarint(buf, uint64(len(chunks)))
	blobSection := encodeChunkBlobs(chunks)
	if len(chunks) >= coldChunkThreshold {
		compressed, err := zstdCompress(blobSection)
		if err != nil {
			return errors.Wrap(err, "store: compress chunk blobs")
		}
		buf = append(buf, 1)
		buf = common.PutUvarint(buf, uint64(len(compressed)))
		buf = append(buf, compressed...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, blobSection...)
	}

	_, err := w.Write(buf)
	return errors.Wrap(err, "store: write rdb stream")
}

// RDBLoad is RDBSave's inverse. Only EncVer 1 is understood; an unknown
// version is a hard error rather than a best-effort guess.
func (c *codec) RDBLoad(r io.Reader, encVer int) (*series.TimeSeries, error) {
	if encVer != EncVer {
		return nil, errors.Errorf("store: unsupported rdb encoding version %d", encVer)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "store: read rdb stream")
	}
	br := &byteReader{b: raw}

	id, err := br.uint64()
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(br, c.interner)
	if err != nil {
		return nil, err
	}
	retention, err := br.varint()
	if err != nil {
		return nil, err
	}
	encName, err := br.string()
	if err != nil {
		return nil, err
	}
	rounding, err := readRounding(br)
	if err != nil {
		return nil, err
	}
	dup, err := readDuplicatePolicy(br)
	if err != nil {
		return nil, err
	}
	chunkSize, err := br.uvarint()
	if err != nil {
		return nil, err
	}
	chunkCount, err := br.uvarint()
	if err != nil {
		return nil, err
	}
	compressedFlag, err := br.byteVal()
	if err != nil {
		return nil, err
	}

	var blobSection []byte
	if compressedFlag == 1 {
		n, err := br.uvarint()
		if err != nil {
			return nil, err
		}
		compressed, err := br.bytes(int(n))
		if err != nil {
			return nil, err
		}
		blobSection, err = zstdDecompress(compressed)
		if err != nil {
			return nil, errors.Wrap(err, "store: decompress chunk blobs")
		}
	} else {
		blobSection = br.rest()
	}

	enc := chunk.Uncompressed
	if encName == chunk.Gorilla.String() {
		enc = chunk.Gorilla
	}

	s := series.New(id, labels, retention, enc, int(chunkSize), dup, rounding)
	if err := loadChunks(s, blobSection, int(chunkCount), enc, int(chunkSize)); err != nil {
		return nil, err
	}
	return s, nil
}

func zstdCompress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func encodeChunkBlobs(chunks []chunk.Chunk) []byte {
	var out []byte
	for _, c := range chunks {
		blob := c.SaveRDB()
		out = common.PutUvarint(out, uint64(len(blob)))
		out = append(out, blob...)
	}
	return out
}

func loadChunks(s *series.TimeSeries, blobSection []byte, count int, enc chunk.Encoding, maxSizeBytes int) error {
	br := &byteReader{b: blobSection}
	for i := 0; i < count; i++ {
		n, err := br.uvarint()
		if err != nil {
			return err
		}
		blob, err := br.bytes(int(n))
		if err != nil {
			return err
		}
		c := chunk.NewChunk(enc, maxSizeBytes)
		if err := c.LoadRDB(blob); err != nil {
			return errors.Wrapf(err, "store: load chunk %d", i)
		}
		s.LoadChunk(c)
	}
	return nil
}

func appendLabels(buf []byte, labels series.Labels) []byte {
	buf = common.PutUvarint(buf, uint64(len(labels)))
	for _, l := range labels {
		buf = appendString(buf, l.Name.String())
		buf = appendString(buf, l.Value.String())
	}
	return buf
}

func readLabels(br *byteReader, interner *common.Interner) (series.Labels, error) {
	n, err := br.uvarint()
	if err != nil {
		return nil, err
	}
	labels := make(series.Labels, 0, n)
	for i := uint64(0); i < n; i++ {
		name, err := br.string()
		if err != nil {
			return nil, err
		}
		value, err := br.string()
		if err != nil {
			return nil, err
		}
		labels = append(labels, series.Label{
			Name:  interner.Intern([]byte(name)),
			Value: interner.Intern([]byte(value)),
		})
	}
	return labels, nil
}

func appendRounding(buf []byte, r series.Rounding) []byte {
	if r.Kind == series.RoundNone {
		return append(buf, 0)
	}
	buf = append(buf, 1, byte(r.Kind))
	return common.PutUvarint(buf, uint64(r.N))
}

func readRounding(br *byteReader) (series.Rounding, error) {
	present, err := br.byteVal()
	if err != nil {
		return series.Rounding{}, err
	}
	if present == 0 {
		return series.Rounding{}, nil
	}
	kind, err := br.byteVal()
	if err != nil {
		return series.Rounding{}, err
	}
	n, err := br.uvarint()
	if err != nil {
		return series.Rounding{}, err
	}
	return series.Rounding{Kind: series.RoundingKind(kind), N: int(n)}, nil
}

func appendDuplicatePolicy(buf []byte, d chunk.DuplicatePolicyConfig) []byte {
	buf = append(buf, byte(d.Policy))
	buf = common.PutVarint(buf, d.MaxTimeDelta)
	var fbuf [8]byte
	binary.LittleEndian.PutUint64(fbuf[:], math.Float64bits(d.MaxValueDelta))
	return append(buf, fbuf[:]...)
}

func readDuplicatePolicy(br *byteReader) (chunk.DuplicatePolicyConfig, error) {
	policy, err := br.byteVal()
	if err != nil {
		return chunk.DuplicatePolicyConfig{}, err
	}
	delta, err := br.varint()
	if err != nil {
		return chunk.DuplicatePolicyConfig{}, err
	}
	fbits, err := br.bytes(8)
	if err != nil {
		return chunk.DuplicatePolicyConfig{}, err
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(fbits))
	return chunk.DuplicatePolicyConfig{
		Policy:        chunk.DuplicatePolicy(policy),
		MaxTimeDelta:  delta,
		MaxValueDelta: v,
	}, nil
}

func appendString(buf []byte, s string) []byte {
	buf = common.PutUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// byteReader is a tiny forward-only cursor over a byte slice, matching the
// gorilla bitReader/varint-from-bytes style already used in chunk/gorilla.go.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) uint64() (uint64, error) {
	if len(r.b)-r.pos < 8 {
		return 0, errors.New("store: truncated stream reading uint64")
	}
	v := binary.LittleEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) byteVal() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, errors.New("store: truncated stream reading byte")
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if len(r.b)-r.pos < n {
		return nil, errors.New("store: truncated stream reading bytes")
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *byteReader) rest() []byte {
	v := r.b[r.pos:]
	r.pos = len(r.b)
	return v
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.b[r.pos:])
	if n <= 0 {
		return 0, errors.New("store: malformed uvarint")
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) varint() (int64, error) {
	v, err := r.uvarint()
	if err != nil {
		return 0, err
	}
	return common.ZigZagDecode(v), nil
}

func (r *byteReader) string() (string, error) {
	n, err := r.uvarint()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
