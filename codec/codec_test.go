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

package codec

import (
	"bytes"
	"strings"
	"testing"
)

func TestSelectRoundTrips(t *testing.T) {
	b := DefaultBank()
	src := bytes.Repeat([]byte("ACGTACGTACGTACGT\n"), 500)

	choice := b.Select(KindGeneral, src, "")
	if choice.Name == "" {
		t.Fatalf("expected a codec to be chosen")
	}
	dec, ok := b.Decoder(choice.Name)
	if !ok {
		t.Fatalf("no decoder registered for chosen codec %q", choice.Name)
	}
	out, err := dec.Decompress(choice.Payload, make([]byte, 0, len(src)))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("round trip mismatch for codec %q", choice.Name)
	}
}

func TestSelectHonorsHint(t *testing.T) {
	b := DefaultBank()
	src := []byte(strings.Repeat("x", 1024))
	choice := b.Select(KindGeneral, src, "s2")
	if choice.Name != "s2" {
		t.Fatalf("expected hint to short-circuit selection to s2, got %q", choice.Name)
	}
}

func TestBitmapAndTransposedKindsPreassigned(t *testing.T) {
	b := DefaultBank()
	if len(b.Candidates(KindBitmap)) != 1 {
		t.Fatalf("bitmap kind should have exactly one pre-assigned codec")
	}
	if len(b.Candidates(KindTransposed)) != 1 {
		t.Fatalf("transposed kind should have exactly one pre-assigned codec")
	}
	if len(b.Candidates(KindACGT)) != 1 {
		t.Fatalf("ACGT kind should have exactly one pre-assigned codec")
	}
}

func TestIsACGTOnly(t *testing.T) {
	cases := []struct {
		data []byte
		want bool
	}{
		{[]byte("ACGTACGTN"), true},
		{[]byte("ACGTX"), false},
		{[]byte("acgt"), false}, // lowercase is not part of the packed alphabet
		{nil, false},
	}
	for _, c := range cases {
		if got := IsACGTOnly(c.data); got != c.want {
			t.Fatalf("IsACGTOnly(%q) = %v, want %v", c.data, got, c.want)
		}
	}
}

func TestACGTCodecRoundTrip(t *testing.T) {
	src := []byte("ACGTNNACGTGGGGCCCCTTTTAAAA")
	c := acgtCodec{}
	payload := c.Compress(src, nil)

	dec := acgtDecoderAdapter{}
	out, err := dec.Decompress(payload, nil)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(out) != string(src) {
		t.Fatalf("round trip mismatch: got %q, want %q", out, src)
	}
}

func TestACGTCodecPacksBelowOneBytePerBase(t *testing.T) {
	src := bytes.Repeat([]byte("ACGT"), 256)
	payload := acgtCodec{}.Compress(src, nil)
	if len(payload) >= len(src) {
		t.Fatalf("expected 2-bit packing to beat 1 byte/base: payload %d bytes for %d bases", len(payload), len(src))
	}
}

func TestSelectRoutesACGTThroughBank(t *testing.T) {
	b := DefaultBank()
	src := []byte("ACGTACGTNACGTACGTACGTACGTACGTACGT")
	choice := b.Select(KindACGT, src, "")
	if choice.Name != "acgt" {
		t.Fatalf("expected the acgt codec, got %q", choice.Name)
	}
	dec, ok := b.Decoder(choice.Name)
	if !ok {
		t.Fatalf("no decoder registered for %q", choice.Name)
	}
	out, err := dec.Decompress(choice.Payload, nil)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(out) != string(src) {
		t.Fatalf("round trip mismatch: got %q, want %q", out, src)
	}
}
