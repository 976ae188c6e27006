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

// Package digest computes the running, whole-file checksum and the
// per-VB snapshot spec.md's VB header and file footer both carry,
// letting a reconstructed file be verified byte-for-byte against its
// source.
//
// Grounded on the keyed blake2b signing the teacher uses in
// ion/blockfmt/index.go (Sign/DecodeIndex): a keyed hash over
// appended, ordered chunks of data, where the key is a per-run secret
// rather than a content-derived value. gnzcore generalizes that into
// an incremental digest a VB can snapshot mid-stream (index.go only
// ever signs a single, already-final index blob).
package digest

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Running accumulates a single keyed blake2b-256 hash across however
// many VBs are appended to it, in vblock_i order, plus a per-VB
// snapshot of the digest state at the moment that VB's bytes were
// folded in. It is computed over each VB's source text, not its
// compressed section output, so the final digest is comparable against
// a hash of the original input (spec.md §8: digest(source) must equal
// digest(decompress(compress(source)))).
type Running struct {
	mu   sync.Mutex
	h    []byte // serialized hash.Hash state is not portable, so we track digests by re-keying instead; see Snapshot
	key  [32]byte
	acc  []byte // every byte folded in so far, in order (see note on Snapshot)
	done bool
}

// New returns a Running digest keyed with key (the dispatcher passes
// its Config.CodecKey: the key cmd/gnzip derives from a password
// salted with the file header's UUID, or all zeros without one).
func New(key [32]byte) *Running {
	return &Running{key: key}
}

// Append folds a VB's source text into the running digest. Must be
// called in strictly ascending vblock_i order, so the dispatcher calls
// it from its ordered-write section (writeInOrder), just before each
// VB is written. It panics after Final.
func (r *Running) Append(text []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		panic("digest: Append after Final")
	}
	r.acc = append(r.acc, text...)
}

// Snapshot returns the keyed blake2b-256 digest of every byte
// appended so far. Computing it fresh per call (rather than keeping a
// hash.Hash open across goroutines) trades CPU for the ability to
// snapshot at an arbitrary point without cloning hasher state, which
// the standard library's hash.Hash does not support; each call
// re-hashes every byte appended so far, so the cost grows with the
// file.
func (r *Running) Snapshot() [32]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sum(r.key, r.acc)
}

// Final returns the same digest as Snapshot, after marking the
// digest closed; further Append calls panic. Intended for the file
// footer's whole-file digest field.
func (r *Running) Final() [32]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	return sum(r.key, r.acc)
}

func sum(key [32]byte, data []byte) [32]byte {
	h, err := blake2b.New256(key[:])
	if err != nil {
		// only returns an error for an invalid key size, and key is
		// always exactly 32 bytes here.
		panic(err)
	}
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VBSnapshot is the per-VB digest record: room for the running
// digest's state immediately after this VB's bytes were folded in,
// plus the VB's own standalone digest (independent of everything
// before it). vblock.Finalize fills VBlockI and Standalone only;
// Cumulative stays zero, and no section written by gnzip carries the
// record.
type VBSnapshot struct {
	VBlockI  int64
	Cumulative [32]byte
	Standalone [32]byte
}

// Encode serializes a VBSnapshot to its fixed-width on-disk form:
// vblock_i (8 bytes, big-endian, matching frame's header convention)
// followed by the two 32-byte digests.
func (s VBSnapshot) Encode() []byte {
	buf := make([]byte, 8+32+32)
	binary.BigEndian.PutUint64(buf[0:8], uint64(s.VBlockI))
	copy(buf[8:40], s.Cumulative[:])
	copy(buf[40:72], s.Standalone[:])
	return buf
}

// DecodeVBSnapshot reverses Encode.
func DecodeVBSnapshot(buf []byte) VBSnapshot {
	var s VBSnapshot
	s.VBlockI = int64(binary.BigEndian.Uint64(buf[0:8]))
	copy(s.Cumulative[:], buf[8:40])
	copy(s.Standalone[:], buf[40:72])
	return s
}

// Standalone computes a single VB's own digest over its source text,
// independent of everything that came before it in the file, as the
// second half of a VBSnapshot.
func Standalone(text []byte, key [32]byte) [32]byte {
	return sum(key, text)
}
