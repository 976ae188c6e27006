// Copyright (C) 2024 gnzcore contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package codec implements spec.md §4.6's codec bank: the set of
// byte-stream compressors a context's b250 or local stream can be
// assigned, plus the sampling-based selector that picks among them.
//
// The Codec/Decoder interfaces and the zstd/s2 wrappers are adapted
// from the teacher's compr.Compressor/Decompressor (compr/compression.go):
// same shape, generalized so a Codec also reports the two numbers the
// selector needs (bytes produced, CPU time spent) instead of just the
// compressed bytes.
package codec

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"time"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Codec compresses a byte stream. Implementations must be safe for
// concurrent use from multiple contexts' finalize steps.
type Codec interface {
	Name() string
	Compress(src, dst []byte) []byte
}

// Decoder reverses a Codec's Compress.
type Decoder interface {
	Name() string
	Decompress(src, dst []byte) ([]byte, error)
}

// Kind tags which stream a codec is meant for, so the Bank can filter
// candidates per spec.md §4.6's "codecs compatible with the stream
// kind" rule.
type Kind int

const (
	KindGeneral Kind = iota
	KindBitmap
	KindTransposed
	KindACGT
)

// --- zstd -------------------------------------------------------------

type zstdCodec struct{ enc *zstd.Encoder }

func (z zstdCodec) Name() string { return "zstd" }

func (z zstdCodec) Compress(src, dst []byte) []byte { return z.enc.EncodeAll(src, dst) }

var zstdDecoder *zstd.Decoder

func init() {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = d
}

type zstdDecoderAdapter struct{}

func (zstdDecoderAdapter) Name() string { return "zstd" }

func (zstdDecoderAdapter) Decompress(src, dst []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(src, dst[:0])
}

func newZstd() Codec {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(err)
	}
	return zstdCodec{enc: enc}
}

// --- s2 -----------------------------------------------------------------

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) Compress(src, dst []byte) []byte { return s2.Encode(dst, src) }

type s2DecoderAdapter struct{}

func (s2DecoderAdapter) Name() string { return "s2" }

func (s2DecoderAdapter) Decompress(src, dst []byte) ([]byte, error) {
	return s2.Decode(dst[:0], src)
}

// --- acgt (2-bit pack) ------------------------------------------------

// base2bit maps an ASCII base byte to its 2-bit code, or -1 if the
// byte isn't part of the packed alphabet. N has no 2-bit code of its
// own; IsACGTOnly still accepts it, and Compress records its positions
// in a separate exception list instead of spending a 5th symbol.
var base2bit = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	t['A'], t['C'], t['G'], t['T'], t['N'] = 0, 1, 2, 3, 0
	return t
}()

var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// IsACGTOnly reports whether every byte of data is one of A, C, G, T,
// or N: the alphabet spec.md §4.6 scenario 2 requires before a NONREF
// local stream qualifies for the ACGT-packed codec.
func IsACGTOnly(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if base2bit[b] < 0 {
			return false
		}
	}
	return true
}

// acgtCodec packs an ACGT(N) byte stream at 2 bits per base (§4.6's
// ACGT-packed codec, scenario 2). N positions can't be represented in
// 2 bits, so they're recorded as a trailing exception list instead and
// packed as a placeholder 'A' so the bit stream stays dense.
//
// Wire format: uint32 base count, uint32 exception count, that many
// big-endian uint32 positions, then ceil(n/4) packed bytes (4 bases
// per byte, 2 bits each, base i in bits [2*(i%4), 2*(i%4)+2)).
type acgtCodec struct{}

func (acgtCodec) Name() string { return "acgt" }

func (acgtCodec) Compress(src, dst []byte) []byte {
	var exceptions []uint32
	for i, b := range src {
		if b == 'N' {
			exceptions = append(exceptions, uint32(i))
		}
	}

	out := dst
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(src)))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(exceptions)))
	out = append(out, hdr[:]...)
	for _, pos := range exceptions {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], pos)
		out = append(out, b[:]...)
	}

	packed := make([]byte, (len(src)+3)/4)
	for i, b := range src {
		v := base2bit[b]
		if v < 0 {
			v = 0
		}
		packed[i/4] |= byte(v) << uint((i%4)*2)
	}
	return append(out, packed...)
}

type acgtDecoderAdapter struct{}

func (acgtDecoderAdapter) Name() string { return "acgt" }

func (acgtDecoderAdapter) Decompress(src, dst []byte) ([]byte, error) {
	if len(src) < 8 {
		return nil, fmt.Errorf("codec: acgt payload too short: %d bytes", len(src))
	}
	n := binary.BigEndian.Uint32(src[0:4])
	numExceptions := int(binary.BigEndian.Uint32(src[4:8]))
	off := 8
	exceptions := make(map[uint32]bool, numExceptions)
	for i := 0; i < numExceptions; i++ {
		if off+4 > len(src) {
			return nil, fmt.Errorf("codec: acgt payload truncated exception list")
		}
		exceptions[binary.BigEndian.Uint32(src[off:off+4])] = true
		off += 4
	}

	packed := src[off:]
	need := (int(n) + 3) / 4
	if len(packed) < need {
		return nil, fmt.Errorf("codec: acgt packed payload too short: have %d want %d", len(packed), need)
	}

	out := dst[:0]
	if cap(out) < int(n) {
		out = make([]byte, 0, n)
	}
	for i := uint32(0); i < n; i++ {
		if exceptions[i] {
			out = append(out, 'N')
			continue
		}
		v := (packed[i/4] >> ((i % 4) * 2)) & 0x3
		out = append(out, bit2base[v])
	}
	return out, nil
}

// --- bank -----------------------------------------------------------------

// Bank is the registry of codecs available to the selector, grouped
// by Kind.
type Bank struct {
	byKind map[Kind][]Codec
	byName map[string]Codec
}

// DefaultBank returns the codec bank gnzcore ships with: zstd and s2
// for general-purpose entropy coding, the pre-assigned bitmap/transposed
// specializations (§4.6's overrides (a) and (b), which register the
// general zstd codec, under its own "zstd" name, as the only candidate
// for their kind so the selector never has to "choose" for them), and
// the ACGT-packed codec (override (c))
// for NONREF-shaped sequence data.
func DefaultBank() *Bank {
	b := &Bank{byKind: make(map[Kind][]Codec), byName: make(map[string]Codec)}
	general := []Codec{newZstd(), s2Codec{}}
	for _, c := range general {
		b.register(KindGeneral, c)
	}
	b.register(KindBitmap, newZstd())
	b.register(KindTransposed, newZstd())
	b.register(KindACGT, acgtCodec{})
	return b
}

func (b *Bank) register(k Kind, c Codec) {
	b.byKind[k] = append(b.byKind[k], c)
	if _, ok := b.byName[c.Name()]; !ok {
		b.byName[c.Name()] = c
	}
}

// Candidates returns the codecs compatible with the given stream
// kind.
func (b *Bank) Candidates(k Kind) []Codec { return b.byKind[k] }

// Decoder looks up the codec registered under name for decompression.
func (b *Bank) Decoder(name string) (Decoder, bool) {
	switch name {
	case "zstd":
		return zstdDecoderAdapter{}, true
	case "s2":
		return s2DecoderAdapter{}, true
	case "acgt":
		return acgtDecoderAdapter{}, true
	default:
		return nil, false
	}
}

// --- selection ------------------------------------------------------------

// sampleSize is the bounded prefix sample spec.md §4.6 samples
// candidate codecs against ("a few tens of KB").
const sampleSize = 32 * 1024

// Choice is the outcome of Select: the winning codec's name and the
// fully compressed payload (the selector compresses the sample to
// choose, then the caller still needs the full buffer compressed;
// Select does both in one pass to avoid compressing twice when the
// buffer is already <= sampleSize).
type Choice struct {
	Name    string
	Payload []byte
}

// Select implements spec.md §4.6: sample a bounded prefix, try every
// candidate compatible with kind, and pick the one minimizing a
// weighted sum of (bytes produced, CPU time), bytes dominating and
// time breaking ties. hint, if non-empty and still registered, is
// tried first and short-circuits sampling — the propagation path for
// "per-VB measurements may propagate as hints to later VBs for the
// same context to avoid re-sampling."
func (b *Bank) Select(k Kind, buf []byte, hint string) Choice {
	if hint != "" {
		if c, ok := b.byName[hint]; ok {
			return Choice{Name: c.Name(), Payload: c.Compress(buf, nil)}
		}
	}
	candidates := b.Candidates(k)
	if len(candidates) == 0 {
		return Choice{Name: "", Payload: buf}
	}
	if len(candidates) == 1 {
		c := candidates[0]
		return Choice{Name: c.Name(), Payload: c.Compress(buf, nil)}
	}

	sample := buf
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	type scored struct {
		c     Codec
		out   []byte
		bytes int
		ns    int64
	}
	var best scored
	for i, c := range candidates {
		start := time.Now()
		out := c.Compress(sample, nil)
		elapsed := time.Since(start).Nanoseconds()
		if i == 0 || less(len(out), elapsed, best.bytes, best.ns) {
			best = scored{c: c, out: out, bytes: len(out), ns: elapsed}
		}
	}
	if len(buf) <= sampleSize {
		// the sample was the whole buffer: reuse its compressed output
		return Choice{Name: best.c.Name(), Payload: best.out}
	}
	return Choice{Name: best.c.Name(), Payload: best.c.Compress(buf, nil)}
}

// less reports whether (bytes, ns) should be preferred over
// (otherBytes, otherNs): bytes dominate, ns only breaks exact ties.
func less(bytes int, ns int64, otherBytes int, otherNs int64) bool {
	if bytes != otherBytes {
		return bytes < otherBytes
	}
	return ns < otherNs
}
