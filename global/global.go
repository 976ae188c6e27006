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

// Package global owns the file's global area: the sections written
// once, after every VB has been merged, rather than per-VB —
// dictionary fragments, counts, alias tables, and passthrough blobs
// (chrom map, reference payload, random-access index) supplied
// opaquely by external collaborators per spec.md §6 — plus the
// footer's section directory and the compression-ratio accounting
// carried over from the original implementation (SPEC_FULL.md §5.1).
//
// Grounded on blockfmt.Trailer (ion/blockfmt/trailer.go): a
// single-writer accumulator of section descriptors finalized once, at
// the end of the stream, into a directory a reader can seek through
// without scanning every byte. gnzcore's Writer generalizes that
// "accumulate descriptors, finalize once" shape to spec.md's flat
// section list instead of blockfmt's block tree.
package global

import (
	"io"

	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/frame"
)

// Writer accumulates global-area sections and the section directory
// as the file is written, then emits the file footer on Close.
type Writer struct {
	w       io.Writer
	offset  uint64
	entries []frame.DirEntry

	plainBytes      uint64
	compressedBytes uint64
}

// NewWriter wraps w (already positioned past the file header) to
// track offsets for the section directory.
func NewWriter(w io.Writer, afterFileHeader uint64) *Writer {
	return &Writer{w: w, offset: afterFileHeader}
}

// WriteSection writes a fully framed section and records it in the
// pending footer directory, tracking plain/compressed byte totals for
// the ratio accounting.
func (g *Writer) WriteSection(s frame.Section) error {
	buf := s.Encode()
	if _, err := g.w.Write(buf); err != nil {
		return err
	}
	g.entries = append(g.entries, frame.DirEntry{
		Offset:  g.offset,
		Length:  uint64(len(buf)),
		Type:    s.Header.Type,
		VBlockI: s.Header.VBlockI,
		DictID:  uint64(s.Header.DictID),
	})
	g.offset += uint64(len(buf))
	g.plainBytes += uint64(s.Header.UncompressedSize)
	g.compressedBytes += uint64(s.Header.CompressedSize)
	return nil
}

// WriteDictFragment serializes words, each NUL-terminated, as an
// uncompressed dict-fragment section for dict_id id.
func (g *Writer) WriteDictFragment(id dict.ID, words []string, vblockI uint32) error {
	var payload []byte
	for _, w := range words {
		payload = append(payload, []byte(w)...)
		payload = append(payload, 0)
	}
	return g.WriteSection(frame.Section{
		Header: frame.Header{
			Type:             frame.TypeDictFragment,
			VBlockI:          vblockI,
			DictID:           id,
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
			Codec:            frame.CodecNone,
		},
		Payload: payload,
	})
}

// WriteCounts serializes a dictionary's observed occurrence counts
// (word index -> count), used to reproduce the VB#1 frequency sort
// on decompression without re-deriving it from the b250 streams.
func (g *Writer) WriteCounts(id dict.ID, counts []int) error {
	payload := make([]byte, 0, len(counts)*4)
	for _, c := range counts {
		payload = append(payload, byte(c>>24), byte(c>>16), byte(c>>8), byte(c))
	}
	return g.WriteSection(frame.Section{
		Header: frame.Header{
			Type:             frame.TypeCounts,
			DictID:           id,
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
			Codec:            frame.CodecNone,
		},
		Payload: payload,
	})
}

// WriteAliases serializes an alias table mapping one dict_id onto
// another's word-index space (e.g. two VCF samples sharing a FORMAT
// dictionary), so the reconstructor can resolve either column from a
// single stored dictionary.
func (g *Writer) WriteAliases(payload []byte) error {
	return g.WriteSection(frame.Section{
		Header: frame.Header{
			Type:             frame.TypeAliases,
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
			Codec:            frame.CodecNone,
		},
		Payload: payload,
	})
}

// WritePassthrough writes an opaque blob supplied by an external
// collaborator (the reference-sequence subsystem, the random-access
// index builder) as a single section with no core-side interpretation
// of its content, per spec.md §6 / SPEC_FULL.md Non-goals.
func (g *Writer) WritePassthrough(t frame.SectionType, payload []byte) error {
	return g.WriteSection(frame.Section{
		Header: frame.Header{
			Type:             t,
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
			Codec:            frame.CodecNone,
		},
		Payload: payload,
	})
}

// Close writes the footer section (the accumulated directory) and
// returns the finished file's Summary.
func (g *Writer) Close() (Summary, error) {
	footer := frame.Footer{Entries: g.entries}
	payload := footer.Encode()
	section := frame.Section{
		Header: frame.Header{
			Type:             frame.TypeFooter,
			UncompressedSize: uint32(len(payload)),
			CompressedSize:   uint32(len(payload)),
			Codec:            frame.CodecNone,
		},
		Payload: payload,
	}
	if _, err := g.w.Write(section.Encode()); err != nil {
		return Summary{}, err
	}
	return Summary{
		PlainBytes:      g.plainBytes,
		CompressedBytes: g.compressedBytes,
		SectionCount:    len(g.entries) + 1,
	}, nil
}

// Summary is the finished file's plain accounting, carried over from
// the original implementation's zip_display_compression_ratio
// (SPEC_FULL.md §5.1). Deliberately not wired to any progress-bar or
// stats-rendering library: that's an explicit Non-goal. It's just a
// struct field a caller (cmd/gnzip) can print.
type Summary struct {
	PlainBytes      uint64
	CompressedBytes uint64
	SectionCount    int
}

// Ratio returns PlainBytes/CompressedBytes, or 0 if nothing was
// written yet.
func (s Summary) Ratio() float64 {
	if s.CompressedBytes == 0 {
		return 0
	}
	return float64(s.PlainBytes) / float64(s.CompressedBytes)
}
