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

// Package column implements spec.md §4.2's Context: the per-column
// state a format parser populates while walking a VBlock's records,
// and the bookkeeping (all-the-same tracking, singleton promotion)
// that feeds the later merge and finalize stages.
//
// Context plays the role the teacher repo's ion.Symtab-backed struct
// field groups play inside a chunk writer: a thin, allocation-light
// accumulator a single worker goroutine owns exclusively until the
// VB it belongs to reaches its merge point.
package column

import (
	"fmt"

	"github.com/gnzcore/gnzcore/b250"
	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/gnzerr"
	"github.com/gnzcore/gnzcore/ltype"
)

// Flags mirrors the context-level flag set named in spec.md §3:
// {all-the-same, no-singletons, store-as-int, store-as-index, paired,
// counts-section, ...}.
type Flags struct {
	AllTheSame     bool
	NoSingletons   bool // "no_stons": set once this VB has already demoted a singleton
	StoreAsInt     bool
	StoreAsIndex   bool
	Paired         bool
	CountsSection  bool
	WindowsNewline bool // REDESIGN FLAGS: explicit flag replacing the source's in-band "#" marker
}

// Context is the per-column, per-VB accumulator. did identifies it
// within its owning VBlock's dense context array; DictID identifies
// the file-global dictionary it merges into.
type Context struct {
	DictID dict.ID
	Did    int
	Name   string // human-readable column name, for logging and section directories

	local *dict.Local // this VB's private dictionary clone; nil until Bind

	b250 []int // VB-local node indices, or b250.Missing/Empty sentinels; rewritten to word indices in place at merge time

	localBuf  []byte  // raw/packed bytes already in final local-stream form (sequence, bitmap)
	localVals []int64 // staged numeric values awaiting ltype.Rewrite at finalize (fixed-width, dyn_int, transposed)

	Ltype    ltype.Type
	LocalDep int // 0, 1, or 2; see spec.md §4.7 step 1
	Flags    Flags

	BCodec, LCodec string // codec names chosen for b250 / local, set during finalize

	bitmap *ltype.Bitmap // only populated when Ltype == ltype.Bitmap
	cols   int           // column count for a transposed-matrix ltype; 0 means unset

	allTheSameVal  int
	allTheSameInit bool

	recordCount int
}

// New allocates a Context for dict_id id at VB-local index did. Bind
// must be called once the owning VBlock knows which dict.Manager it
// merges through, before any Intern call.
func New(id dict.ID, did int, name string) *Context {
	return &Context{DictID: id, Did: did, Name: name, allTheSameInit: false}
}

// Bind clones a private dictionary view for this context from m, per
// spec.md §4.5 step 1 (the "clone" phase). It must run once per VB,
// before parsing begins.
func (c *Context) Bind(m *dict.Manager) {
	c.local = m.Clone(c.DictID)
}

// Intern interns snip into the context's private dictionary and
// returns its VB-local node index, without touching b250. Most
// callers want Put, which also records the reference.
func (c *Context) Intern(snip string) int {
	return c.local.Intern(snip)
}

// Put interns snip and appends its node index to b250 in one step —
// the common case for a parser assigning a column value to a record.
func (c *Context) Put(snip string) {
	c.AppendB250(c.local.Intern(snip))
}

// AppendB250 pushes node (a VB-local node index, or one of the
// b250.Missing/Empty sentinels) onto the b250 stream, updating the
// all-the-same predicate: true until the first element that differs
// from the first (spec.md §4.2).
func (c *Context) AppendB250(node int) {
	if !c.allTheSameInit {
		c.allTheSameVal = node
		c.allTheSameInit = true
		c.Flags.AllTheSame = true
	} else if c.Flags.AllTheSame && node != c.allTheSameVal {
		c.Flags.AllTheSame = false
	}
	c.b250 = append(c.b250, node)
	c.recordCount++
}

// PutMissing records that this record had no value at all for the
// column (spec.md example 5: an absent trailing VCF field).
func (c *Context) PutMissing() { c.AppendB250(b250.Missing) }

// PutEmpty records that this record's value for the column was
// present but the empty string.
func (c *Context) PutEmpty() { c.AppendB250(b250.Empty) }

// AppendLocal appends raw bytes to the local stream, for ltype
// Sequence or any other byte-oriented local payload. Ltype must
// already be set.
func (c *Context) AppendLocal(b []byte) {
	c.localBuf = append(c.localBuf, b...)
}

// AppendLocalValue stages one numeric value for later width reduction
// by Finalize, for ltype DynInt, fixed-width integer types, or a
// transposed matrix column.
func (c *Context) AppendLocalValue(v int64) {
	c.localVals = append(c.localVals, v)
}

// AppendBit appends one bit to the context's bitmap local stream.
// Ltype must be ltype.Bitmap.
func (c *Context) AppendBit(bit bool) {
	if c.bitmap == nil {
		c.bitmap = &ltype.Bitmap{}
	}
	c.bitmap.Append(bit)
}

// SetTransposeCols sets the column count used for a transposed-matrix
// ltype's reordering at Finalize. Must be called before Finalize.
func (c *Context) SetTransposeCols(cols int) { c.cols = cols }

// RecordCount returns the number of records this VB pushed through
// the context (the length of the logical, pre-collapse b250 stream).
func (c *Context) RecordCount() int { return c.recordCount }

// NodeCount returns the number of distinct snips interned locally.
func (c *Context) NodeCount() int {
	if c.local == nil {
		return 0
	}
	return c.local.NodeCount()
}

// B250Len returns the number of elements currently in the VB-local
// b250 stream (before any all-the-same collapse at finalize).
func (c *Context) B250Len() int { return len(c.b250) }

// MergeAndRewrite folds the context's private dictionary contributions
// into the file-global one (spec.md §4.5 steps 3-4) and rewrites
// b250 in place from node indices to file-global word indices. A node
// found to be a singleton is replaced by the b250.Singleton sentinel
// and its original bytes are appended to the context's local stream
// instead; a singleton node appears exactly once in b250, so each is
// promoted once, and NoSingletons records that at least one was.
func (c *Context) MergeAndRewrite(s *dict.Session) error {
	if c.local == nil {
		return gnzerr.New(gnzerr.Invariant, "context %s: MergeAndRewrite called before Bind", c.Name)
	}
	wi := s.Merge(c.DictID, c.local, c.singletonRefCount)
	for i, node := range c.b250 {
		switch node {
		case b250.Missing, b250.Empty:
			continue // sentinels pass through untouched
		}
		if node < 0 {
			return gnzerr.New(gnzerr.Invariant, "context %s: unrecognized b250 sentinel %d", c.Name, node)
		}
		if wi.SingletonNode(node) {
			c.promoteSingleton(node)
			c.b250[i] = b250.Singleton
			continue
		}
		c.b250[i] = wi.Of(node)
	}
	// Both calls are no-ops unless this VB is Manager.firstVB: NoteCounts
	// feeds the frequency sort (spec.md §4.5 step 5), and RegisterRemap
	// lets that same sort fix up the rewrite above in place if it
	// reorders the dictionary out from under the indices just assigned.
	s.NoteCounts(c.DictID, c.b250)
	s.RegisterRemap(c.DictID, c)
	return nil
}

// RemapWordIndices applies the word-index permutation the VB#1
// frequency sort produces (dict.Session.Commit) to this context's
// already-rewritten b250 stream. Implements dict.Remapper.
func (c *Context) RemapWordIndices(old2new map[int]int) {
	for i, w := range c.b250 {
		if w < 0 {
			continue
		}
		if nw, ok := old2new[w]; ok {
			c.b250[i] = nw
		}
	}
}

// singletonRefCount counts how many times a VB-local node index was
// referenced in this context's b250 stream, the input Session.Merge
// needs to decide singleton eligibility.
func (c *Context) singletonRefCount(node int) int {
	n := 0
	for _, e := range c.b250 {
		if e == node {
			n++
		}
	}
	return n
}

// promoteSingleton appends node's original snip bytes, NUL-terminated,
// to the context's local stream and sets NoSingletons to record that
// this VB demoted at least one snip; a singleton is referenced once
// (singletonRefCount said count==1), so no snip is promoted twice.
// NUL-termination rather than a length prefix
// keeps the promoted region self-delimiting without reserving a
// header field purely for a case that, by construction, any given VB
// hits at most a handful of times.
func (c *Context) promoteSingleton(node int) {
	snip := c.local.Snip(node)
	c.localBuf = append(c.localBuf, []byte(snip)...)
	c.localBuf = append(c.localBuf, 0)
	c.Flags.NoSingletons = true
}

// Finalize runs the per-context steps of spec.md §4.7 (items 2-4):
// dyn_int width reduction, and folding the bitmap / staged numeric
// values into localBuf so codec selection and compression (owned by
// the codec and vblock packages) see one flat byte buffer. Only the
// bitmap's packed bytes are kept; its tail-bit padding count is not
// recorded.
func (c *Context) Finalize() error {
	switch c.Ltype {
	case ltype.DynInt:
		if len(c.localVals) > 0 {
			resolved := ltype.ResolveDynInt(c.localVals)
			c.localBuf = ltype.Rewrite(c.localBuf, resolved, c.localVals)
			c.Ltype = resolved
		}
	case ltype.Bitmap:
		if c.bitmap != nil {
			c.localBuf = append(c.localBuf, c.bitmap.Bytes()...)
		}
	case ltype.TransposedU8, ltype.TransposedU16, ltype.TransposedU32:
		// A column's declared width (from the parser's sampling) is
		// only a starting point: the actual values may need the same
		// reserved-top-value narrowing dyn_int uses, since the
		// transposed codec reserves each element width's top value as
		// the missing sentinel (spec.md §4.3).
		_, max := ltype.ScanRange(c.localVals)
		elem := widenUnsigned(elementTypeFor(c.Ltype), ltype.NarrowestUnsigned(uint64(max)))
		vals := c.localVals
		transposed, ok := ltype.Transpose(c.localVals, c.cols)
		if elem == ltype.U64 {
			// no TransposedU64 ltype exists; a column that widens this
			// far abandons the matrix layout entirely, same as a
			// cols-mismatch fallback.
			ok = false
		}
		if ok {
			vals = transposed
			c.Ltype = transposedFor(elem)
		} else {
			// len % cols != 0 (or cols unset), or the values no longer
			// fit any transposed width: abandon the transpose and fall
			// back to a plain vector, per spec.md §4.3.
			c.Ltype = elem
		}
		c.localBuf = ltype.Rewrite(c.localBuf, elem, vals)
	default:
		if len(c.localVals) > 0 {
			c.localBuf = ltype.Rewrite(c.localBuf, c.Ltype, c.localVals)
		}
	}
	return nil
}

func elementTypeFor(transposed ltype.Type) ltype.Type {
	switch transposed {
	case ltype.TransposedU8:
		return ltype.U8
	case ltype.TransposedU16:
		return ltype.U16
	case ltype.TransposedU32:
		return ltype.U32
	default:
		panic(fmt.Sprintf("column: %v is not a transposed ltype", transposed))
	}
}

// transposedFor maps an unsigned fixed-width element type back to its
// transposed-matrix counterpart, the inverse of elementTypeFor.
func transposedFor(elem ltype.Type) ltype.Type {
	switch elem {
	case ltype.U8:
		return ltype.TransposedU8
	case ltype.U16:
		return ltype.TransposedU16
	case ltype.U32:
		return ltype.TransposedU32
	default:
		panic(fmt.Sprintf("column: %v has no transposed counterpart", elem))
	}
}

// widenUnsigned returns whichever of a, b has the larger fixed width,
// used to promote a transposed column's declared element type when
// the actual observed values need more headroom than sampling assumed.
func widenUnsigned(a, b ltype.Type) ltype.Type {
	if b.Width() > a.Width() {
		return b
	}
	return a
}

// CollapseAllTheSame returns the collapsed single-element b250 stream
// when Flags.AllTheSame holds and the VB saw at least one record,
// implementing spec.md §4.4's all-the-same collapse. ok is false when
// collapse does not apply and the caller should serialize B250()
// verbatim instead.
func (c *Context) CollapseAllTheSame() (elem int, ok bool) {
	if !c.Flags.AllTheSame || len(c.b250) == 0 {
		return 0, false
	}
	return c.b250[0], true
}

// B250 returns the rewritten (word-index) b250 stream. Valid only
// after MergeAndRewrite.
func (c *Context) B250() []int { return c.b250 }

// Local returns the finalized local-stream bytes. Valid only after
// Finalize.
func (c *Context) Local() []byte { return c.localBuf }
