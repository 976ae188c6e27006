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

// Package b250 implements spec.md §4.4's b250 stream encoding: a
// sequence of file-global word-indices, variable-width per the
// dictionary's size at sealing time, with reserved escape codes that
// let common patterns (consecutive runs, the most frequent few words,
// absent/empty columns, singleton references) cost no more than the
// natural element width.
//
// Grounded on the same "reserve the top of the representable range
// for sentinels" idea the teacher's ion package uses for symbol IDs,
// generalized here per zip_generate_one_b250 in the original C
// (original_source/src/zip.c), which is the authority this package
// follows for escape precedence: ONE_UP is checked before MOST_FREQ,
// and never emitted for the first element of a stream.
package b250

import "fmt"

// Sentinel node/word values a caller (column.Context) pushes into a
// b250 stream in place of a real, non-negative word/node index. These
// never collide with real indices, which are always >= 0.
const (
	Missing   = -2 // column absent from the record entirely
	Empty     = -3 // column present but held the empty string
	Singleton = -4 // value demoted to the context's local stream at merge time
)

// marker byte values used on the wire when width >= 2. 0xFF is
// reserved as the leading byte of every escape; widths are chosen so
// that no natural-width value's most significant byte is ever 0xFF,
// so a decoder can always tell an escape from a natural value by
// peeking one byte.
const escapeLead = 0xFF

type markerTag byte

const (
	tagOneUp markerTag = iota
	tagMostFreq0
	tagMostFreq1
	tagMostFreq2
	tagMissing
	tagEmpty
	tagSingleton
)

// ChooseWidth returns the element width (in bytes: 1, 2, 3, or 4) for
// a b250 stream whose largest real word-index is maxWord and which
// does, or does not, need to represent any escape at all.
//
// Width 1 reserves nothing: every byte value 0..255 is a legitimate
// word-index, matching spec.md's note that "in 1-byte mode the full
// range is consumable" and the REDESIGN FLAGS callout that a
// collision between an index value and an escape byte is only safe
// because width-1 streams never check for escapes.
//
// Width >= 2 reserves the leading byte 0xFF for escapes, so the
// chosen width must be wide enough that maxWord's most significant
// byte never reaches 0xFF.
func ChooseWidth(maxWord int, needsEscape bool) int {
	if !needsEscape && maxWord >= 0 && maxWord < 256 {
		return 1
	}
	if maxWord < 0 {
		maxWord = 0
	}
	for w := 2; w <= 4; w++ {
		if topByte(int64(maxWord), w) < escapeLead {
			return w
		}
	}
	return 4
}

func topByte(v int64, width int) int64 {
	return v >> uint(8*(width-1))
}

// Encode serializes a resolved b250 stream (file-global word indices,
// possibly interleaved with the Missing/Empty/Singleton sentinels)
// into its on-disk byte form, returning the chosen element width
// alongside the payload.
func Encode(stream []int) (width int, payload []byte) {
	maxWord := -1
	needsEscape := false
	for _, e := range stream {
		switch e {
		case Missing, Empty, Singleton:
			needsEscape = true
		default:
			if e < 0 {
				panic(fmt.Sprintf("b250: negative word index %d is not a recognized sentinel", e))
			}
			if e > maxWord {
				maxWord = e
			}
		}
	}
	width = ChooseWidth(maxWord, needsEscape)

	prev := -1
	havePrev := false
	for _, e := range stream {
		switch e {
		case Missing:
			payload = appendEscape(payload, width, tagMissing)
		case Empty:
			payload = appendEscape(payload, width, tagEmpty)
		case Singleton:
			payload = appendEscape(payload, width, tagSingleton)
		default:
			switch {
			case width == 1:
				payload = append(payload, byte(e))
			case havePrev && e == prev+1:
				payload = appendEscape(payload, width, tagOneUp)
			case e == 0:
				payload = appendEscape(payload, width, tagMostFreq0)
			case e == 1:
				payload = appendEscape(payload, width, tagMostFreq1)
			case e == 2:
				payload = appendEscape(payload, width, tagMostFreq2)
			default:
				payload = appendNatural(payload, width, e)
			}
			prev = e
			havePrev = true
		}
	}
	return width, payload
}

func appendEscape(dst []byte, width int, tag markerTag) []byte {
	if width == 1 {
		// width 1 never reserves escapes; callers must have chosen a
		// wider width whenever needsEscape was true.
		panic("b250: cannot encode an escape in width-1 mode")
	}
	return append(dst, escapeLead, byte(tag))
}

func appendNatural(dst []byte, width int, v int) []byte {
	var b [4]byte
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return append(dst, b[:width]...)
}

// Decode reverses Encode. It returns the resolved stream (word
// indices and/or sentinels) decoded from payload.
func Decode(payload []byte, width int) []int {
	var out []int
	prev := -1
	for len(payload) > 0 {
		if width == 1 {
			out = append(out, int(payload[0]))
			prev = int(payload[0])
			payload = payload[1:]
			continue
		}
		if payload[0] == escapeLead {
			tag := markerTag(payload[1])
			payload = payload[2:]
			switch tag {
			case tagOneUp:
				prev = prev + 1
				out = append(out, prev)
			case tagMostFreq0:
				prev = 0
				out = append(out, 0)
			case tagMostFreq1:
				prev = 1
				out = append(out, 1)
			case tagMostFreq2:
				prev = 2
				out = append(out, 2)
			case tagMissing:
				out = append(out, Missing)
			case tagEmpty:
				out = append(out, Empty)
			case tagSingleton:
				out = append(out, Singleton)
			default:
				panic(fmt.Sprintf("b250: unrecognized escape tag %d", tag))
			}
			continue
		}
		v := 0
		for i := 0; i < width; i++ {
			v = v<<8 | int(payload[i])
		}
		out = append(out, v)
		prev = v
		payload = payload[width:]
	}
	return out
}

// PairIdentical reports whether an R2 VB's encoded stream for some
// context is bytewise identical to its R1 counterpart's, the
// condition under which spec.md §4.4 says the R2 section is omitted
// entirely and reconstruction substitutes R1's.
func PairIdentical(r1, r2 []byte) bool {
	return len(r1) == len(r2) && string(r1) == string(r2)
}

// AllTheSame reports whether every element of stream is identical,
// the precondition for the all-the-same collapse (spec.md §4.4): the
// stream is serialized as its single repeated element plus the
// record count carried in the VB header, rather than per-record.
func AllTheSame(stream []int) bool {
	if len(stream) == 0 {
		return false
	}
	first := stream[0]
	for _, e := range stream[1:] {
		if e != first {
			return false
		}
	}
	return true
}
