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

// Package reader implements spec.md §4.1: filling a VB with a
// contiguous, record-boundary-aligned slice of source text, carrying
// any unconsumed tail over to the next VB.
//
// Grounded directly on original_source/txtfile.c's
// txtfile_read_vblock/def_unconsumed: read up to a target size,
// prepend the previous read's unconsumed tail, ask the boundary
// oracle where the last complete record ends, and stash whatever's
// left for next time. gnzcore's Reader generalizes the C's
// grow-and-retry loop (used there for FASTQ's "need N whole lines"
// case) into the oracle's own NeedMore signal.
package reader

import (
	"bufio"
	"io"

	"github.com/gnzcore/gnzcore/gnzerr"
	"github.com/gnzcore/gnzcore/oracle"
)

// defaultTargetBytes is the nominal VB size the reader tries to fill
// before consulting the boundary oracle; chosen to match the
// teacher's own block-size defaults order of magnitude (blockfmt's
// BlockShift commonly configures ~1MB blocks).
const defaultTargetBytes = 1 << 20

// Reader pulls VB-sized, record-boundary-aligned chunks from src.
type Reader struct {
	src        *bufio.Reader
	oracle     oracle.Oracle
	target     int
	unconsumed []byte
	eof        bool
}

// New wraps src for oracle-driven chunking with the default target VB
// size.
func New(src io.Reader, o oracle.Oracle) *Reader {
	return &Reader{src: bufio.NewReaderSize(src, defaultTargetBytes), oracle: o, target: defaultTargetBytes}
}

// SetTargetBytes overrides the nominal VB size (mainly for tests,
// which want small VBs to exercise multi-VB behavior without huge
// fixtures).
func (r *Reader) SetTargetBytes(n int) { r.target = n }

// ReadVB returns the next record-boundary-aligned chunk of text,
// prepending any carry-over from the previous call. It returns nil
// and io.EOF once the source is exhausted with no unconsumed bytes
// remaining.
func (r *Reader) ReadVB() ([]byte, error) {
	if r.eof && len(r.unconsumed) == 0 {
		return nil, io.EOF
	}

	buf := append([]byte(nil), r.unconsumed...)
	r.unconsumed = nil

	for {
		if !r.eof && len(buf) < r.target {
			grow := make([]byte, r.target)
			n, err := io.ReadFull(r.src, grow)
			buf = append(buf, grow[:n]...)
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				r.eof = true
			} else if err != nil {
				return nil, err
			}
		}

		res := r.oracle.Boundary(buf, 0, len(buf))
		if !res.NeedMore {
			tail := buf[res.Length:]
			r.unconsumed = append([]byte(nil), tail...)
			return buf[:res.Length], nil
		}
		if r.eof {
			if res.EOFOk && len(buf) > 0 {
				return buf, nil
			}
			if len(buf) == 0 {
				return nil, io.EOF
			}
			return nil, gnzerr.SourceTruncated
		}
		// oracle wants more data than one target-sized read produced
		// (e.g. FASTQ's "need 4 whole lines"); grow and retry.
		r.target *= 2
	}
}
