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

package frame

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"github.com/gnzcore/gnzcore/dict"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Type:             TypeB250Stream,
		Flags:            FlagAllTheSame,
		VBlockI:          42,
		CompressedSize:   100,
		UncompressedSize: 400,
		Codec:            CodecZstd,
		DictID:           dict.ID(0x4348524f4d),
	}
	buf := h.Encode()
	if len(buf) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(buf))
	}
	got, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestFileHeaderRoundTrip(t *testing.T) {
	fh := FileHeader{DataType: 1, FormatVersion: FormatVersion, Flags: 0, InstanceID: uuid.New(), CreatedUnix: 1700000000}
	got, err := DecodeFileHeader(fh.Encode())
	if err != nil {
		t.Fatalf("DecodeFileHeader: %v", err)
	}
	if got != fh {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, fh)
	}
}

func TestFooterRoundTrip(t *testing.T) {
	f := Footer{Entries: []DirEntry{
		{Offset: 0, Length: 28, Type: TypeFileHeader},
		{Offset: 28, Length: 512, Type: TypeB250Stream, VBlockI: 1, DictID: 0x1},
	}}
	got, err := DecodeFooter(f.Encode())
	if err != nil {
		t.Fatalf("DecodeFooter: %v", err)
	}
	if len(got.Entries) != len(f.Entries) {
		t.Fatalf("expected %d entries, got %d", len(f.Entries), len(got.Entries))
	}
	for i := range f.Entries {
		if got.Entries[i] != f.Entries[i] {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got.Entries[i], f.Entries[i])
		}
	}
}

func TestSealerRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	id := uuid.New()
	var idArr [16]byte
	copy(idArr[:], id[:])
	s, err := NewSealer(key, idArr)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	plain := []byte("some local stream bytes")
	sealed, err := s.Seal(TypeLocalStream, 7, plain)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(sealed, plain) {
		t.Fatalf("sealed payload should not equal plaintext")
	}
	opened, err := s.Open(TypeLocalStream, 7, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("round trip mismatch")
	}
	if _, err := s.Open(TypeLocalStream, 8, sealed); err == nil {
		t.Fatalf("expected authentication failure when vblock_i associated data differs")
	}
}
