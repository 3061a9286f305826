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

package chunk

import (
	"math"
	"math/bits"
	"sort"

	"github.com/ccollie/valkey-timeseries-sub001/common"
)

// dodBuckets are the bit-widths of the bucketed varbit encoding used for
// timestamp delta-of-delta, selected by unary prefix (§4.1). Index 8 needs
// no terminating zero bit: eight leading ones unambiguously select it.
var dodBuckets = [9]uint{0, 5, 9, 13, 17, 24, 32, 56, 64}

// gorillaChunk is a streaming Gorilla-compressed sample container. Samples
// are appended cheaply; any write that is not a pure append rebuilds the
// whole stream from the decoded sample list, per §4.1's rewrite-on-random-
// -access tradeoff.
type gorillaChunk struct {
	w *bitWriter

	numSamples int
	firstTS    int64
	lastTS     int64
	lastDelta  int64 // ts[n] - ts[n-1]; meaningless until numSamples >= 2
	lastValBit uint64
	leading    uint8
	trailing   uint8
	haveWindow bool

	maxSamples int // derived from chunk_size/8, the §4.3 Gorilla size estimate
}

func newGorillaChunk(maxSizeBytes int) *gorillaChunk {
	maxSamples := maxSizeBytes / 8
	if maxSamples < 2 {
		maxSamples = 2
	}
	return &gorillaChunk{w: newBitWriter(), maxSamples: maxSamples}
}

func (c *gorillaChunk) Encoding() Encoding { return Gorilla }

// appendRaw writes one more sample to the live stream assuming s.Timestamp
// is strictly greater than the current lastTS (or this is the first/second
// sample). It never validates ordering; callers must have checked already.
func (c *gorillaChunk) appendRaw(s Sample) {
	s.Value = canonicalizeNaN(s.Value)
	valBits := math.Float64bits(s.Value)

	switch c.numSamples {
	case 0:
		c.w.writeBits(common.ZigZagEncode(s.Timestamp), 64)
		c.w.writeBits(valBits, 64)
		c.firstTS = s.Timestamp
	case 1:
		delta := s.Timestamp - c.lastTS
		writeUvarintBits(c.w, uint64(delta))
		c.writeXORValue(valBits)
		c.lastDelta = delta
	default:
		delta := s.Timestamp - c.lastTS
		dod := delta - c.lastDelta
		c.writeDOD(dod)
		c.writeXORValue(valBits)
		c.lastDelta = delta
	}
	c.lastTS = s.Timestamp
	c.lastValBit = valBits
	c.numSamples++
}

func (c *gorillaChunk) writeDOD(dod int64) {
	zz := common.ZigZagEncode(dod)
	bucket := len(dodBuckets) - 1
	for i, sig := range dodBuckets {
		if sig == 64 || zz < (uint64(1)<<sig) {
			bucket = i
			break
		}
	}
	for i := 0; i < bucket; i++ {
		c.w.writeBit(true)
	}
	if bucket < len(dodBuckets)-1 {
		c.w.writeBit(false)
	}
	if sig := dodBuckets[bucket]; sig > 0 {
		c.w.writeBits(zz, int(sig))
	}
}

func (c *gorillaChunk) writeXORValue(valBits uint64) {
	xor := valBits ^ c.lastValBit
	if xor == 0 {
		c.w.writeBit(false)
		return
	}
	c.w.writeBit(true)

	leading := uint8(bits.LeadingZeros64(xor))
	trailing := uint8(bits.TrailingZeros64(xor))
	if leading > 31 {
		leading = 31 // fits the 5-bit header
	}

	if c.haveWindow && leading >= c.leading && trailing >= c.trailing {
		c.w.writeBit(false)
		sigBits := 64 - c.leading - c.trailing
		c.w.writeBits(xor>>c.trailing, int(sigBits))
		return
	}
	c.w.writeBit(true)
	c.w.writeBits(uint64(leading), 5)
	sigBits := 64 - leading - trailing
	// sigBits ranges 1..64; store as sigBits-1 to fit 6 bits (0..63).
	c.w.writeBits(uint64(sigBits-1), 6)
	c.w.writeBits(xor>>trailing, int(sigBits))
	c.leading, c.trailing, c.haveWindow = leading, trailing, true
}

func writeUvarintBits(w *bitWriter, v uint64) {
	dst := common.PutUvarint(nil, v)
	for _, b := range dst {
		w.writeBits(uint64(b), 8)
	}
	w.writeBits(uint64(len(dst)), 8) // length trailer; readUvarintBits reads and skips it
}

// decodeAll reconstructs the logical sample slice from the encoded stream.
// It is the only way to read a Gorilla chunk's contents: random access is
// not supported on the wire format, so every read materializes the list.
func (c *gorillaChunk) decodeAll() []Sample {
	if c.numSamples == 0 {
		return nil
	}
	r := newBitReader(c.w.buf)
	out := make([]Sample, 0, c.numSamples)

	tsZZ, _ := r.readBits(64)
	ts := common.ZigZagDecode(tsZZ)
	valBits, _ := r.readBits(64)
	out = append(out, Sample{Timestamp: ts, Value: math.Float64frombits(valBits)})
	if c.numSamples == 1 {
		return out
	}

	delta := int64(readUvarintBits(r))
	ts += delta
	// One XOR window spans the whole stream, as on the encoding side.
	var leading, trailing uint8
	haveWindow := false
	valBits = readXORValueWindow(r, valBits, &leading, &trailing, &haveWindow)
	out = append(out, Sample{Timestamp: ts, Value: math.Float64frombits(valBits)})

	for i := 2; i < c.numSamples; i++ {
		dod := readDOD(r)
		delta += dod
		ts += delta
		valBits = readXORValueWindow(r, valBits, &leading, &trailing, &haveWindow)
		out = append(out, Sample{Timestamp: ts, Value: math.Float64frombits(valBits)})
	}
	return out
}

func readUvarintBits(r *bitReader) uint64 {
	// Mirrors writeUvarintBits: bytes first, then a length trailer. The
	// varint's own continuation bit (not the trailer) tells us where it ends.
	var tmp [10]byte
	n := 0
	for {
		b, ok := r.readBits(8)
		if !ok {
			break
		}
		tmp[n] = byte(b)
		n++
		if b&0x80 == 0 || n >= len(tmp) {
			break
		}
	}
	v, _ := decodeUvarint(tmp[:n])
	r.readBits(8) // length trailer, unused by decoding but kept for symmetry
	return v
}

func decodeUvarint(buf []byte) (uint64, int) {
	var x uint64
	var s uint
	for i, b := range buf {
		if b < 0x80 {
			return x | uint64(b)<<s, i + 1
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, 0
}

func readDOD(r *bitReader) int64 {
	bucket := 0
	for bucket < len(dodBuckets)-1 {
		bit, ok := r.readBit()
		if !ok || !bit {
			break
		}
		bucket++
	}
	sig := dodBuckets[bucket]
	if sig == 0 {
		return 0
	}
	zz, _ := r.readBits(int(sig))
	return common.ZigZagDecode(zz)
}

func readXORValueWindow(r *bitReader, prevBits uint64, leading, trailing *uint8, haveWindow *bool) uint64 {
	bit, _ := r.readBit()
	if !bit {
		return prevBits
	}
	// writeXORValue emits 0 to reuse the current window, 1 for a new header.
	newWindow, _ := r.readBit()
	if !newWindow && *haveWindow {
		sigBits := 64 - *leading - *trailing
		bitsVal, _ := r.readBits(int(sigBits))
		xor := bitsVal << *trailing
		return prevBits ^ xor
	}
	l, _ := r.readBits(5)
	sm1, _ := r.readBits(6)
	sigBits := uint(sm1) + 1
	newLeading := uint8(l)
	newTrailing := uint8(64 - uint(newLeading) - sigBits)
	bitsVal, _ := r.readBits(int(sigBits))
	xor := bitsVal << newTrailing
	*leading, *trailing, *haveWindow = newLeading, newTrailing, true
	return prevBits ^ xor
}

// rebuild fully re-encodes the chunk from a decoded sample list. Called for
// every write that is not a trailing append (upsert-in-place, merge that
// touches existing samples, remove_range).
func (c *gorillaChunk) rebuild(samples []Sample) {
	c.w = newBitWriter()
	c.numSamples = 0
	c.firstTS, c.lastTS, c.lastDelta, c.lastValBit = 0, 0, 0, 0
	c.leading, c.trailing, c.haveWindow = 0, 0, false
	for _, s := range samples {
		c.appendRaw(s)
	}
}

func (c *gorillaChunk) AddSample(s Sample) AddResult {
	if c.numSamples > 0 && s.Timestamp == c.lastTS {
		return AddResult{Outcome: OutcomeDuplicate, LastTS: s.Timestamp}
	}
	if c.numSamples > 0 && s.Timestamp < c.lastTS {
		return AddResult{Outcome: OutcomeError, Err: errOutOfOrderAppend}
	}
	if c.numSamples >= c.maxSamples {
		return AddResult{Outcome: OutcomeCapacityFull}
	}
	c.appendRaw(s)
	return AddResult{Outcome: OutcomeOK, Sample: s}
}

func (c *gorillaChunk) Upsert(s Sample, dup DuplicatePolicyConfig) AddResult {
	if c.numSamples == 0 || s.Timestamp > c.lastTS {
		return c.AddSample(s)
	}
	samples := c.decodeAll()
	idx := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp >= s.Timestamp })
	if idx < len(samples) && samples[idx].Timestamp == s.Timestamp {
		resolved, ok := dup.Policy.Resolve(samples[idx].Value, s.Value)
		if !ok {
			return AddResult{Outcome: OutcomeDuplicate, LastTS: s.Timestamp}
		}
		samples[idx].Value = canonicalizeNaN(resolved)
		c.rebuild(samples)
		return AddResult{Outcome: OutcomeOK, Sample: samples[idx]}
	}
	if len(samples) >= c.maxSamples {
		return AddResult{Outcome: OutcomeCapacityFull}
	}
	s.Value = canonicalizeNaN(s.Value)
	samples = append(samples, Sample{})
	copy(samples[idx+1:], samples[idx:])
	samples[idx] = s
	c.rebuild(samples)
	return AddResult{Outcome: OutcomeOK, Sample: s}
}

func (c *gorillaChunk) MergeSamples(sorted []Sample, dup DuplicatePolicyConfig) []AddResult {
	results := make([]AddResult, len(sorted))

	// Fast path: everything sorts after the current tail, pure append.
	if c.numSamples == 0 || (len(sorted) > 0 && sorted[0].Timestamp > c.lastTS) {
		allAfter := true
		for _, s := range sorted {
			if c.numSamples > 0 && s.Timestamp <= c.lastTS {
				allAfter = false
				break
			}
		}
		if allAfter {
			prevTS := c.lastTS
			havePrev := c.numSamples > 0
			for i, s := range sorted {
				if havePrev && s.Timestamp == prevTS {
					results[i] = AddResult{Outcome: OutcomeDuplicate, LastTS: s.Timestamp}
					continue
				}
				if c.numSamples >= c.maxSamples {
					results[i] = AddResult{Outcome: OutcomeCapacityFull}
					continue
				}
				c.appendRaw(s)
				prevTS, havePrev = s.Timestamp, true
				results[i] = AddResult{Outcome: OutcomeOK, Sample: s}
			}
			return results
		}
	}

	existing := c.decodeAll()
	merged := make([]Sample, 0, len(existing)+len(sorted))
	ei := 0
	for i, s := range sorted {
		for ei < len(existing) && existing[ei].Timestamp < s.Timestamp {
			merged = append(merged, existing[ei])
			ei++
		}
		if ei < len(existing) && existing[ei].Timestamp == s.Timestamp {
			resolved, ok := dup.Policy.Resolve(existing[ei].Value, s.Value)
			if !ok {
				results[i] = AddResult{Outcome: OutcomeDuplicate, LastTS: s.Timestamp}
				merged = append(merged, existing[ei])
				ei++
				continue
			}
			existing[ei].Value = canonicalizeNaN(resolved)
			merged = append(merged, existing[ei])
			results[i] = AddResult{Outcome: OutcomeOK, Sample: existing[ei]}
			ei++
			continue
		}
		if len(merged)+(len(existing)-ei) >= c.maxSamples {
			results[i] = AddResult{Outcome: OutcomeCapacityFull}
			continue
		}
		s.Value = canonicalizeNaN(s.Value)
		merged = append(merged, s)
		results[i] = AddResult{Outcome: OutcomeOK, Sample: s}
	}
	merged = append(merged, existing[ei:]...)
	c.rebuild(merged)
	return results
}

func (c *gorillaChunk) GetRange(start, end int64) []Sample {
	if c.numSamples == 0 || start > end {
		return nil
	}
	samples := c.decodeAll()
	lo := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp >= start })
	hi := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp > end })
	if lo >= hi {
		return nil
	}
	return samples[lo:hi]
}

func (c *gorillaChunk) RemoveRange(start, end int64) int {
	if c.numSamples == 0 || start > end {
		return 0
	}
	samples := c.decodeAll()
	lo := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp >= start })
	hi := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp > end })
	if lo >= hi {
		return 0
	}
	removed := hi - lo
	samples = append(samples[:lo], samples[hi:]...)
	c.rebuild(samples)
	return removed
}

func (c *gorillaChunk) SamplesByTimestamps(timestamps []int64) []Sample {
	if c.numSamples == 0 {
		return nil
	}
	samples := c.decodeAll()
	var out []Sample
	for _, ts := range timestamps {
		idx := sort.Search(len(samples), func(i int) bool { return samples[i].Timestamp >= ts })
		if idx < len(samples) && samples[idx].Timestamp == ts {
			out = append(out, samples[idx])
		}
	}
	return out
}

func (c *gorillaChunk) IsTimestampInRange(ts int64) bool {
	if c.numSamples == 0 {
		return false
	}
	return ts >= c.firstTS && ts <= c.lastTS
}

func (c *gorillaChunk) HasSamplesInRange(start, end int64) bool {
	if c.numSamples == 0 || start > end || end < c.firstTS || start > c.lastTS {
		return false
	}
	return true
}

func (c *gorillaChunk) FirstTimestamp() int64 { return c.firstTS }
func (c *gorillaChunk) LastTimestamp() int64  { return c.lastTS }

func (c *gorillaChunk) LastSample() (Sample, bool) {
	if c.numSamples == 0 {
		return Sample{}, false
	}
	return Sample{Timestamp: c.lastTS, Value: math.Float64frombits(c.lastValBit)}, true
}

func (c *gorillaChunk) Len() int { return c.numSamples }

func (c *gorillaChunk) Size() int { return (c.w.bitLen() + 7) / 8 }

func (c *gorillaChunk) IsFull() bool {
	return c.numSamples >= c.maxSamples || c.Size() >= c.maxSamples*8
}

// ShouldSplit fires close to the size budget to bound rewrite amplification
// from the always-re-encode-on-random-access policy (§4.1).
func (c *gorillaChunk) ShouldSplit() bool {
	return c.numSamples >= c.maxSamples || c.Size()*10 >= c.maxSamples*8*9
}

func (c *gorillaChunk) Clear() {
	c.w = newBitWriter()
	c.numSamples, c.firstTS, c.lastTS, c.lastDelta, c.lastValBit = 0, 0, 0, 0, 0
	c.leading, c.trailing, c.haveWindow = 0, 0, false
}

func (c *gorillaChunk) Split() Chunk {
	samples := c.decodeAll()
	mid := len(samples) / 2
	right := newGorillaChunk(c.maxSamples * 8)
	right.rebuild(samples[mid:])
	c.rebuild(samples[:mid])
	return right
}

// SaveRDB encodes the persisted chunk-blob layout of §6: sample count,
// first/last timestamp, the last value and delta needed to resume
// appending, the current XOR window, and the length-prefixed raw stream.
func (c *gorillaChunk) SaveRDB() []byte {
	buf := common.PutUvarint(nil, uint64(c.numSamples))
	buf = common.PutVarint(buf, c.firstTS)
	buf = common.PutVarint(buf, c.lastTS)
	var lv [8]byte
	putU64LE(lv[:], c.lastValBit)
	buf = append(buf, lv[:]...)
	buf = common.PutVarint(buf, c.lastDelta)
	buf = append(buf, c.leading, c.trailing)
	if c.haveWindow {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = common.PutUvarint(buf, uint64(len(c.w.buf)))
	buf = append(buf, c.w.buf...)
	buf = common.PutUvarint(buf, uint64(c.w.bitLen()))
	return buf
}

func (c *gorillaChunk) LoadRDB(data []byte) error {
	n, used := readUvarintFromBytes(data)
	if used <= 0 {
		return errChunkDecoding
	}
	data = data[used:]

	firstTS, used := readVarintFromBytes(data)
	if used <= 0 {
		return errChunkDecoding
	}
	data = data[used:]

	lastTS, used := readVarintFromBytes(data)
	if used <= 0 {
		return errChunkDecoding
	}
	data = data[used:]

	if len(data) < 8 {
		return errChunkDecoding
	}
	lastValBits := getU64LE(data)
	data = data[8:]

	lastDelta, used := readVarintFromBytes(data)
	if used <= 0 {
		return errChunkDecoding
	}
	data = data[used:]

	if len(data) < 3 {
		return errChunkDecoding
	}
	leading, trailing, haveWindowByte := data[0], data[1], data[2]
	data = data[3:]

	streamLen, used := readUvarintFromBytes(data)
	if used <= 0 {
		return errChunkDecoding
	}
	data = data[used:]
	if uint64(len(data)) < streamLen {
		return errChunkDecoding
	}
	streamBytes := append([]byte(nil), data[:streamLen]...)
	data = data[streamLen:]

	bitLen, used := readUvarintFromBytes(data)
	if used <= 0 {
		return errChunkDecoding
	}

	c.numSamples = int(n)
	c.firstTS = firstTS
	c.lastTS = lastTS
	c.lastValBit = lastValBits
	c.lastDelta = lastDelta
	c.leading = leading
	c.trailing = trailing
	c.haveWindow = haveWindowByte == 1
	// bitLen's low 3 bits are how many bits of the final byte are in use;
	// writeBit needs that to keep appending into the same byte rather than
	// starting a fresh one and desyncing the reader.
	c.w = &bitWriter{buf: streamBytes, bitPos: uint8(bitLen % 8)}
	if c.maxSamples < c.numSamples {
		c.maxSamples = c.numSamples
	}
	return nil
}

func putU64LE(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

func getU64LE(src []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(src[i]) << (8 * i)
	}
	return v
}

func readUvarintFromBytes(b []byte) (uint64, int) {
	var x uint64
	var s uint
	for i := 0; i < len(b); i++ {
		if b[i] < 0x80 {
			return x | uint64(b[i])<<s, i + 1
		}
		x |= uint64(b[i]&0x7f) << s
		s += 7
	}
	return 0, 0
}

func readVarintFromBytes(b []byte) (int64, int) {
	zz, used := readUvarintFromBytes(b)
	if used <= 0 {
		return 0, 0
	}
	return common.ZigZagDecode(zz), used
}
