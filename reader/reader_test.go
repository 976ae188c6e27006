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

package reader

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/gnzcore/gnzcore/oracle"
)

func TestReadVBSplitsOnLineBoundaries(t *testing.T) {
	src := strings.Repeat("abcdefgh\n", 10) + "partial-no-newline"
	r := New(strings.NewReader(src), oracle.Lines{})
	r.SetTargetBytes(20) // force several small VBs

	var reassembled []byte
	sawPartial := false
	for {
		chunk, err := r.ReadVB()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadVB: %v", err)
		}
		if sawPartial {
			t.Fatalf("chunk %q follows a chunk without a trailing newline", chunk)
		}
		if len(chunk) > 0 && chunk[len(chunk)-1] != '\n' {
			// only the very last chunk (the EOF-accepted partial
			// record) may lack a trailing newline
			sawPartial = true
		}
		reassembled = append(reassembled, chunk...)
	}
	if !bytes.Equal(reassembled, []byte(src)) {
		t.Fatalf("reassembled bytes mismatch:\ngot:  %q\nwant: %q", reassembled, src)
	}
}

func TestReadVBEmptySourceIsEOF(t *testing.T) {
	r := New(strings.NewReader(""), oracle.Lines{})
	_, err := r.ReadVB()
	if err != io.EOF {
		t.Fatalf("expected io.EOF for empty source, got %v", err)
	}
}
