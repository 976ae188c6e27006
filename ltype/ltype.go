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

// Package ltype implements the local-stream element encodings from
// spec.md §4.3: fixed-width (un)signed integers, hex display types,
// packed bitmaps, transposed integer matrices, and the dyn_int
// dynamic-width reduction.
//
// The bit-packing here is grounded on the teacher repo's generic
// ints.SetBit/TestBit family (ints/bits.go): that package operates on
// arbitrary-width unsigned slices with a k-th-bit index, which is
// exactly the "packed LSB-first, tail-bit count in header" layout
// spec.md specifies for the bitmap ltype.
package ltype

import (
	"encoding/binary"
	"fmt"
)

// Type selects a local stream's element layout.
type Type int

const (
	U8 Type = iota
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	Hex8
	Hex16
	Hex32
	Hex64
	Bitmap
	TransposedU8
	TransposedU16
	TransposedU32
	Sequence
	DynInt
)

// Width returns the element width in bytes for fixed-width integer
// ltypes (U*, I*, Hex*, TransposedU*). It panics for ltypes that have
// no fixed element width (Bitmap, Sequence, DynInt).
func (t Type) Width() int {
	switch t {
	case U8, I8, Hex8, TransposedU8:
		return 1
	case U16, I16, Hex16, TransposedU16:
		return 2
	case U32, I32, Hex32, TransposedU32:
		return 4
	case U64, I64, Hex64:
		return 8
	default:
		panic(fmt.Sprintf("ltype: %v has no fixed width", t))
	}
}

func (t Type) Signed() bool {
	switch t {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

// ZigZag maps a signed value to an unsigned one such that small
// magnitudes (positive or negative) map to small unsigned values —
// spec.md's "zig-zag-interlaced" layout for signed local streams.
func ZigZag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// UnZigZag reverses ZigZag.
func UnZigZag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// AppendFixed appends v to dst using the width and signedness implied
// by t, little-endian, applying zig-zag first for signed types.
func AppendFixed(dst []byte, t Type, v int64) []byte {
	u := uint64(v)
	if t.Signed() {
		u = ZigZag(v)
	}
	switch t.Width() {
	case 1:
		return append(dst, byte(u))
	case 2:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(u))
		return append(dst, b[:]...)
	case 4:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(u))
		return append(dst, b[:]...)
	default:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], u)
		return append(dst, b[:]...)
	}
}

// ReadFixed reads one element of type t from the front of src,
// returning the decoded (designed) value and the remaining bytes.
func ReadFixed(src []byte, t Type) (int64, []byte) {
	w := t.Width()
	var u uint64
	switch w {
	case 1:
		u = uint64(src[0])
	case 2:
		u = uint64(binary.LittleEndian.Uint16(src))
	case 4:
		u = uint64(binary.LittleEndian.Uint32(src))
	default:
		u = binary.LittleEndian.Uint64(src)
	}
	if t.Signed() {
		return UnZigZag(u), src[w:]
	}
	return int64(u), src[w:]
}

// NarrowestUnsigned picks the narrowest of {U8,U16,U32,U64} whose
// range can represent max, reserving the type's maximum value as the
// "missing" sentinel per spec.md §4.3: "If max occupies the top value
// of a type, round up."
func NarrowestUnsigned(max uint64) Type {
	switch {
	case max < 0xff:
		return U8
	case max < 0xffff:
		return U16
	case max < 0xffffffff:
		return U32
	default:
		return U64
	}
}

// NarrowestSigned picks the narrowest of {I8,I16,I32,I64} whose range
// contains [min, max], after zig-zag interlacing, with the same
// top-value reservation rule as NarrowestUnsigned.
func NarrowestSigned(min, max int64) Type {
	lo := ZigZag(min)
	hi := ZigZag(max)
	m := lo
	if hi > m {
		m = hi
	}
	switch NarrowestUnsigned(m) {
	case U8:
		return I8
	case U16:
		return I16
	case U32:
		return I32
	default:
		return I64
	}
}

// ScanRange computes [min, max] over vals, used by the dyn_int
// finalize step to pick a narrow ltype (spec.md §4.3).
func ScanRange(vals []int64) (min, max int64) {
	if len(vals) == 0 {
		return 0, 0
	}
	min, max = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// ResolveDynInt scans vals and returns the narrowest concrete ltype
// that can represent them, choosing between the unsigned and signed
// families based on whether any value is negative.
func ResolveDynInt(vals []int64) Type {
	min, max := ScanRange(vals)
	if min < 0 {
		return NarrowestSigned(min, max)
	}
	return NarrowestUnsigned(uint64(max))
}

// Rewrite re-encodes vals into dst using the concrete ltype t,
// applying AppendFixed per element. This is the dyn_int "rewrite the
// buffer in the chosen width" step.
func Rewrite(dst []byte, t Type, vals []int64) []byte {
	for _, v := range vals {
		dst = AppendFixed(dst, t, v)
	}
	return dst
}
