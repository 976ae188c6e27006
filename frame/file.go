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
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// FormatVersion is gnzcore's on-disk format version, bumped whenever
// the section layout changes incompatibly.
const FormatVersion = 1

// FileHeader is the payload of the file's first section
// (TypeFileHeader): data type, format version, flags, and creation
// metadata, per spec.md §6. cmd/gnzip uses InstanceID to salt the key
// it derives from a -password; it is not bound into any other section.
type FileHeader struct {
	DataType     byte // which source format produced this file (VCF, SAM, FASTQ, ...); opaque to the core
	FormatVersion uint16
	Flags        byte
	InstanceID   uuid.UUID
	CreatedUnix  int64
}

const fileHeaderSize = 1 + 2 + 1 + 16 + 8

func (fh FileHeader) Encode() []byte {
	buf := make([]byte, fileHeaderSize)
	buf[0] = fh.DataType
	binary.BigEndian.PutUint16(buf[1:3], fh.FormatVersion)
	buf[3] = fh.Flags
	copy(buf[4:20], fh.InstanceID[:])
	binary.BigEndian.PutUint64(buf[20:28], uint64(fh.CreatedUnix))
	return buf
}

func DecodeFileHeader(buf []byte) (FileHeader, error) {
	if len(buf) < fileHeaderSize {
		return FileHeader{}, fmt.Errorf("frame: short file header: have %d bytes, need %d", len(buf), fileHeaderSize)
	}
	var fh FileHeader
	fh.DataType = buf[0]
	fh.FormatVersion = binary.BigEndian.Uint16(buf[1:3])
	fh.Flags = buf[3]
	copy(fh.InstanceID[:], buf[4:20])
	fh.CreatedUnix = int64(binary.BigEndian.Uint64(buf[20:28]))
	return fh, nil
}

// DirEntry is one row of the footer's section directory: where a
// section lives in the file and how to identify it without re-parsing
// every header in sequence.
type DirEntry struct {
	Offset  uint64
	Length  uint64
	Type    SectionType
	VBlockI uint32
	DictID  uint64
}

const dirEntrySize = 8 + 8 + 1 + 4 + 8

func (e DirEntry) Encode() []byte {
	buf := make([]byte, dirEntrySize)
	binary.BigEndian.PutUint64(buf[0:8], e.Offset)
	binary.BigEndian.PutUint64(buf[8:16], e.Length)
	buf[16] = byte(e.Type)
	binary.BigEndian.PutUint32(buf[17:21], e.VBlockI)
	binary.BigEndian.PutUint64(buf[21:29], e.DictID)
	return buf
}

func decodeDirEntry(buf []byte) DirEntry {
	var e DirEntry
	e.Offset = binary.BigEndian.Uint64(buf[0:8])
	e.Length = binary.BigEndian.Uint64(buf[8:16])
	e.Type = SectionType(buf[16])
	e.VBlockI = binary.BigEndian.Uint32(buf[17:21])
	e.DictID = binary.BigEndian.Uint64(buf[21:29])
	return e
}

// Footer is the payload of the file's final section (TypeFooter): the
// complete section directory, letting a reader seek directly to any
// section (e.g. a single VB's local stream) without scanning the
// whole file.
type Footer struct {
	Entries []DirEntry
}

func (f Footer) Encode() []byte {
	buf := make([]byte, 4, 4+len(f.Entries)*dirEntrySize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(f.Entries)))
	for _, e := range f.Entries {
		buf = append(buf, e.Encode()...)
	}
	return buf
}

func DecodeFooter(buf []byte) (Footer, error) {
	if len(buf) < 4 {
		return Footer{}, fmt.Errorf("frame: short footer")
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if uint64(len(buf)) < uint64(n)*dirEntrySize {
		return Footer{}, fmt.Errorf("frame: footer truncated: want %d entries, have %d bytes", n, len(buf))
	}
	entries := make([]DirEntry, n)
	for i := range entries {
		entries[i] = decodeDirEntry(buf[i*dirEntrySize : (i+1)*dirEntrySize])
	}
	return Footer{Entries: entries}, nil
}
