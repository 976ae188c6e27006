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

package global

import (
	"bytes"
	"testing"

	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/frame"
)

func TestWriterAccountsRatioAndDirectory(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)

	if err := w.WriteDictFragment(dict.ID(1), []string{"chr1", "chr2"}, 1); err != nil {
		t.Fatalf("WriteDictFragment: %v", err)
	}
	if err := w.WriteCounts(dict.ID(1), []int{5, 3}); err != nil {
		t.Fatalf("WriteCounts: %v", err)
	}
	if err := w.WriteSection(frame.Section{
		Header: frame.Header{Type: frame.TypeB250Stream, UncompressedSize: 1000, CompressedSize: 100, Codec: frame.CodecZstd},
		Payload: bytes.Repeat([]byte{1}, 100),
	}); err != nil {
		t.Fatalf("WriteSection: %v", err)
	}

	beforeClose := buf.Len()
	summary, err := w.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if summary.Ratio() <= 1 {
		t.Fatalf("expected ratio > 1, got %f", summary.Ratio())
	}
	if summary.SectionCount != 4 {
		t.Fatalf("expected 4 sections (3 written + footer), got %d", summary.SectionCount)
	}

	footerHeader, err := frame.DecodeHeader(buf.Bytes()[beforeClose:])
	if err != nil {
		t.Fatalf("DecodeHeader on footer: %v", err)
	}
	if footerHeader.Type != frame.TypeFooter {
		t.Fatalf("expected trailing section to be a footer, got %v", footerHeader.Type)
	}
	footerPayload := buf.Bytes()[beforeClose+frame.HeaderSize:]
	footer, err := frame.DecodeFooter(footerPayload)
	if err != nil {
		t.Fatalf("DecodeFooter: %v", err)
	}
	if len(footer.Entries) != 3 {
		t.Fatalf("expected 3 directory entries, got %d", len(footer.Entries))
	}
}
