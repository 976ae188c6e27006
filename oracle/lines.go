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

package oracle

import (
	"bytes"

	"github.com/gnzcore/gnzcore/dict"
)

// Lines is the simplest possible Oracle: every '\n'-terminated byte
// run is one record, stored verbatim in a single "LINE" context. It
// exists to exercise the reader/dispatcher/column pipeline end to
// end without pulling in a real VCF/SAM/FASTA grammar, and as a
// template for a real format oracle: swap Boundary/Parse for the
// format's actual grammar, keep the Oracle contract.
type Lines struct{}

const lineDictID dict.ID = 0x4c494e45 // "LINE"

func (Lines) Name() string { return "lines" }

func (Lines) DictIDSmall(name string) dict.ID { return lineDictID }

// Boundary reports the byte offset just past the last '\n' in
// buf[first:last], the point up to which every byte belongs to a
// complete line.
func (Lines) Boundary(buf []byte, first, last int) BoundaryResult {
	window := buf[first:last]
	idx := bytes.LastIndexByte(window, '\n')
	if idx < 0 {
		return BoundaryResult{NeedMore: true, EOFOk: true}
	}
	return BoundaryResult{Length: idx + 1, EOFOk: true}
}

// Parse splits text on '\n' and interns each line, including its
// terminating newline, into the "LINE" context. Boundary accepts a
// partial record at EOF, so a file's last VB may end in a line with
// no terminator; that line is interned as it is.
func (Lines) Parse(text []byte, contexts *Contexts) error {
	ctx := contexts.Get("LINE")
	for len(text) > 0 {
		idx := bytes.IndexByte(text, '\n')
		if idx < 0 {
			// the unterminated last line the reader passes on at EOF
			// (Boundary sets EOFOk)
			ctx.Put(string(text))
			break
		}
		ctx.Put(string(text[:idx+1]))
		text = text[idx+1:]
	}
	return nil
}
