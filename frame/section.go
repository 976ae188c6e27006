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

// Package frame implements spec.md §6's on-disk envelope: the fixed
// section header every section carries, the file header/footer and
// section directory, and the optional section-payload encryption
// wrapper.
//
// The fixed-header-plus-codec-payload shape is grounded on the
// teacher's ion tag/length framing conventions and, more directly, on
// blockfmt.Trailer's "header plus directory of offsets" structure
// (ion/blockfmt/trailer.go): gnzcore's footer section is a
// specialization of the same idea to spec.md's flat concatenation of
// typed sections rather than blockfmt's block-tree layout.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/gnzcore/gnzcore/dict"
)

// Magic identifies a gnzcore section header.
var Magic = [4]byte{'G', 'N', 'Z', '1'}

// SectionType enumerates the section kinds spec.md §3/§6 names.
type SectionType byte

const (
	TypeFileHeader SectionType = iota
	TypeVBHeader
	TypeDictFragment
	TypeB250Stream
	TypeLocalStream
	TypeRandomAccessIndex
	TypeReference
	TypeCounts
	TypeAliases
	TypeFooter
)

func (t SectionType) String() string {
	names := [...]string{"file-header", "vb-header", "dict-fragment", "b250", "local",
		"random-access-index", "reference", "counts", "aliases", "footer"}
	if int(t) < len(names) {
		return names[t]
	}
	return fmt.Sprintf("section-type(%d)", t)
}

// Header flag bits.
const (
	FlagEncrypted byte = 1 << iota
	FlagAllTheSame
	FlagPairOmitted
)

// Codec identifiers recorded in the header's single codec byte. The
// codec package's Bank maps these to concrete Codec/Decoder values;
// frame only needs a small, stable, on-disk numbering.
const (
	CodecNone byte = iota
	CodecZstd
	CodecS2
	CodecACGT
)

func CodecByte(name string) byte {
	switch name {
	case "zstd":
		return CodecZstd
	case "s2":
		return CodecS2
	case "acgt":
		return CodecACGT
	default:
		return CodecNone
	}
}

func CodecName(b byte) string {
	switch b {
	case CodecZstd:
		return "zstd"
	case CodecS2:
		return "s2"
	case CodecACGT:
		return "acgt"
	default:
		return ""
	}
}

// HeaderSize is the fixed, on-disk size in bytes of a Header:
// magic(4) | type(1) | flags(1) | vblock_i(4) | compressed_size(4) |
// uncompressed_size(4) | codec(1) | dict_id(8) = 27 bytes.
const HeaderSize = 4 + 1 + 1 + 4 + 4 + 4 + 1 + 8

// Header is the fixed envelope preceding every section's payload.
// All multi-byte fields are big-endian, per spec.md §6.
type Header struct {
	Type             SectionType
	Flags            byte
	VBlockI          uint32
	CompressedSize   uint32
	UncompressedSize uint32
	Codec            byte
	DictID           dict.ID
}

// Encode serializes h to its fixed-width wire form.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	buf[4] = byte(h.Type)
	buf[5] = h.Flags
	binary.BigEndian.PutUint32(buf[6:10], h.VBlockI)
	binary.BigEndian.PutUint32(buf[10:14], h.CompressedSize)
	binary.BigEndian.PutUint32(buf[14:18], h.UncompressedSize)
	buf[18] = h.Codec
	binary.BigEndian.PutUint64(buf[19:27], uint64(h.DictID))
	return buf
}

// DecodeHeader reverses Encode. It returns an error rather than
// panicking because a corrupt or truncated file is SourceData, not an
// invariant violation — the caller (cmd/gnzip's section scanners)
// decides how to report it.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("frame: short section header: have %d bytes, need %d", len(buf), HeaderSize)
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return Header{}, fmt.Errorf("frame: bad section magic %x", buf[0:4])
	}
	var h Header
	h.Type = SectionType(buf[4])
	h.Flags = buf[5]
	h.VBlockI = binary.BigEndian.Uint32(buf[6:10])
	h.CompressedSize = binary.BigEndian.Uint32(buf[10:14])
	h.UncompressedSize = binary.BigEndian.Uint32(buf[14:18])
	h.Codec = buf[18]
	h.DictID = dict.ID(binary.BigEndian.Uint64(buf[19:27]))
	return h, nil
}

// Section is a fully framed section: header plus its (possibly
// encrypted) payload, ready to be written or as read off disk.
type Section struct {
	Header  Header
	Payload []byte
}

// Encode serializes the section's header followed by its payload.
func (s Section) Encode() []byte {
	out := s.Header.Encode()
	return append(out, s.Payload...)
}
