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

// Package dict implements the file-global dictionaries (one per
// column dict_id) and the clone/merge protocol that unifies each
// VBlock's private dictionary into them.
//
// The shape of Dict and Local is lifted directly from
// ion.Symtab/ion.Symtab.CloneInto in the teacher repo: an append-only
// []string of interned values plus a string->index map, with Clone
// skipping the common prefix instead of copying the whole table.
// gnzcore generalizes that into the VB-local "node index" vs.
// file-global "word index" distinction the spec requires, and adds
// the merge barrier, VB#1 frequency sort, and singleton-promotion
// bookkeeping symtab.go doesn't need because ion's symbol tables have
// no concept of a "local" overflow stream.
package dict

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/exp/maps"
)

// ID identifies a column across VBs and across runs (spec's dict_id).
// In practice this is 8 ASCII bytes packed into a uint64, optionally
// with high bits used as type flags by the caller; dict treats it as
// an opaque comparable key.
type ID uint64

// Dict is the file-global dictionary for a single dict_id: a
// monotonically growing, append-only table of unique snips with
// stable word-index assignment. Word indices are contiguous from 0.
type Dict struct {
	mu       sync.RWMutex // guards interned, toindex, everSeen and countsTable across Clone, Merge and the VB#1 sort
	interned []string
	toindex  map[string]int
	everSeen map[string]bool // every distinct snip ever offered to Merge, promoted or not
	sorted   bool            // true once VB#1's frequency sort has run

	countsTable []int // word index -> observed count, set by SetCounts before VB#1 commits
}

// SetCounts supplies the occurrence count for each word index
// currently in the dictionary, for use by the VB#1 frequency sort.
// Session.Commit calls this for Manager.firstVB only, from the counts
// its contexts reported via Session.NoteCounts, since Dict itself has
// no visibility into per-record b250 references.
func (d *Dict) SetCounts(counts []int) {
	d.mu.Lock()
	d.countsTable = counts
	d.mu.Unlock()
}

// newDict allocates an empty Dict.
func newDict() *Dict {
	return &Dict{
		toindex:  make(map[string]int),
		everSeen: make(map[string]bool),
	}
}

// Len returns the number of entries currently visible in the global
// dictionary. Because the dictionary is append-only and entries are
// never mutated once visible, a reader may safely snapshot Len() and
// treat everything below it as immutable without holding a lock for
// the lifetime of the snapshot (see Clone).
func (d *Dict) Len() int {
	d.mu.RLock()
	n := len(d.interned)
	d.mu.RUnlock()
	return n
}

// WordAt returns the snip stored at the given file-global word index.
func (d *Dict) WordAt(w int) string {
	d.mu.RLock()
	s := d.interned[w]
	d.mu.RUnlock()
	return s
}

// Local is a VBlock-private view of a Dict: a base length borrowed
// from the global table as of Clone, plus a private tail of newly
// interned snips addressed by "node index" (globalLen + position in
// extra). No global state is touched until Merge.
type Local struct {
	id        ID
	globalLen int // global.interned[:globalLen] is immutable and aliased, not copied
	global    []string
	extra     []string       // node index i corresponds to extra[i-globalLen]
	toindex   map[string]int // snip -> node index, spanning global+extra
	refs      []int          // parallel to extra: how many times this VB referenced the node in b250
}

// Clone takes a logical, read-only snapshot of d and returns a Local
// that a single worker can intern new snips into without taking any
// lock. This is the "clone" step of the merge protocol (spec.md
// §4.5 step 1): since Dict is append-only, aliasing interned[:n] is
// safe even while other workers concurrently append past n.
func (d *Dict) Clone(id ID) *Local {
	d.mu.RLock()
	n := len(d.interned)
	base := d.interned[:n:n] // aliased, not copied; see CloneInto in the teacher's ion.Symtab
	d.mu.RUnlock()

	l := &Local{
		id:        id,
		globalLen: n,
		global:    base,
		toindex:   make(map[string]int, 64),
	}
	return l
}

// Intern interns snip into the VB-private dictionary, returning its
// node index. If snip was already visible in the cloned base or
// already interned earlier in this VB, the existing node index is
// returned and no new entry is created.
func (l *Local) Intern(snip string) int {
	if idx, ok := l.toindex[snip]; ok {
		if idx >= l.globalLen {
			l.refs[idx-l.globalLen]++
		}
		return idx
	}
	// binary/linear search isn't needed: toindex covers the base
	// too, populated lazily below, but we must also check the base
	// slice directly the first time a given snip is looked up so we
	// don't create a duplicate entry for something that was already
	// in the cloned prefix.
	for i, s := range l.global {
		if s == snip {
			l.toindex[snip] = i
			return i
		}
	}
	idx := l.globalLen + len(l.extra)
	l.extra = append(l.extra, snip)
	l.refs = append(l.refs, 1)
	l.toindex[snip] = idx
	return idx
}

// NodeCount returns the number of node indices minted locally
// (i.e. new snips not present in the cloned base).
func (l *Local) NodeCount() int { return len(l.extra) }

// Snip returns the snip text addressed by a VB-local node index,
// looking in the cloned base or the local tail as appropriate. The
// column package uses this during singleton promotion, when a node
// that didn't make it into the global dictionary needs its original
// bytes written into the context's local stream instead.
func (l *Local) Snip(node int) string {
	if node < l.globalLen {
		return l.global[node]
	}
	return l.extra[node-l.globalLen]
}

// WordIndex is the result of merging one Local's contributions: a
// mapping from node index (0-based over the full VB-local node
// space, i.e. including the base) to file-global word index.
type WordIndex struct {
	base int   // l.globalLen; node indices < base map to themselves
	tail []int // tail[i] is the word index for node (base+i)
}

// Of maps a VB-local node index to its file-global word index. It is
// only valid to call after the Local that produced it has been
// merged.
func (w *WordIndex) Of(node int) int {
	if node < w.base {
		return node
	}
	i := node - w.base
	if i >= len(w.tail) {
		panic(fmt.Sprintf("dict: node index %d out of range (merged %d new nodes)", node, len(w.tail)))
	}
	return w.tail[i]
}

// SingletonNode reports whether the given VB-local node index was
// demoted to a singleton (see Merge) rather than added to the global
// dictionary; if so its bytes belong in the context's local stream
// instead of being referenced via the returned word index.
func (w *WordIndex) SingletonNode(node int) bool {
	if node < w.base {
		return false
	}
	i := node - w.base
	return i < len(w.tail) && w.tail[i] == singletonMarker
}

// singletonMarker is an out-of-band sentinel stored in WordIndex.tail
// for nodes that were demoted to singletons; it is never a valid
// word index because word indices are non-negative and this is
// negative.
const singletonMarker = -1

// Manager owns one Dict per dict_id plus the strict, vblock_i-ordered
// merge barrier described in spec.md §4.5 and §5: "VB #k blocks until
// VB #(k-1) has finished merging." It is the only place in gnzcore
// that mutates file-global dictionary state.
type Manager struct {
	mu       sync.Mutex
	cond     *sync.Cond
	dicts    map[ID]*Dict
	nextVB   int64 // next vblock_i allowed to run BeginMerge
	firstVB  int64 // the vblock_i designated "VB#1" for frequency sorting
	sortDone bool
}

// NewManager returns a Manager ready to merge VBs in ascending order
// starting at startVB (normally 1).
func NewManager(startVB int64) *Manager {
	m := &Manager{
		dicts:   make(map[ID]*Dict),
		nextVB:  startVB,
		firstVB: startVB,
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *Manager) dictFor(id ID) *Dict {
	m.mu.Lock()
	d, ok := m.dicts[id]
	if !ok {
		d = newDict()
		m.dicts[id] = d
	}
	m.mu.Unlock()
	return d
}

// Clone takes a snapshot of the global dictionary for id, creating
// it if this is the first VB to reference it. Safe to call
// concurrently from many workers; no merge lock is held.
func (m *Manager) Clone(id ID) *Local {
	return m.dictFor(id).Clone(id)
}

// IDs returns every dict_id that has been touched so far, in no
// particular order. Used by the global-area writer (cmd/gnzip) once
// the dispatcher has finished, to walk every dictionary and emit its
// final fragment.
func (m *Manager) IDs() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]ID, 0, len(m.dicts))
	for id := range m.dicts {
		ids = append(ids, id)
	}
	return ids
}

// Dict returns the file-global dictionary for id, or nil if no VB
// has ever referenced it.
func (m *Manager) Dict(id ID) *Dict {
	m.mu.Lock()
	d := m.dicts[id]
	m.mu.Unlock()
	return d
}

// Remapper receives a one-time word-index permutation when the VB#1
// frequency sort (Session.Commit) reorders a dictionary after this
// session already rewrote a context's b250 stream against the
// pre-sort (arrival-order) indices. column.Context implements this.
type Remapper interface {
	RemapWordIndices(old2new map[int]int)
}

// Session is one VB's in-progress merge, opened with BeginMerge and
// closed with Commit. Holding a Session blocks every other worker's
// BeginMerge call for a higher vblock_i until Commit runs, enforcing
// the strict vblock_i merge order.
type Session struct {
	m   *Manager
	vb  int64

	dictsByID map[ID]*Dict       // dicts touched during this session, keyed for the firstVB sort/remap below
	counts    map[ID]map[int]int // word index -> occurrence count, accumulated via NoteCounts
	remaps    map[ID][]Remapper  // contexts to notify if their dict gets re-sorted
}

// BeginMerge blocks the calling goroutine until every VB with a
// smaller vblock_i has committed its merge, then returns a Session
// that holds the file-global merge lock until Commit is called.
func (m *Manager) BeginMerge(vblockI int64) *Session {
	m.mu.Lock()
	for vblockI != m.nextVB {
		m.cond.Wait()
	}
	m.mu.Unlock()
	return &Session{m: m, vb: vblockI}
}

// Merge folds one context's Local dictionary into its Dict, returning
// the node->word_index mapping (§4.5 step 3). singleCount(node) must
// report how many times the given VB-local node index was referenced
// in that context's b250 stream during this VB; it is used to decide
// singleton promotion for brand-new snips (spec.md §4.2, §4.7 step 4,
// and the Open Question in §9 about repeats across VBs).
func (s *Session) Merge(id ID, l *Local, singleCount func(node int) int) *WordIndex {
	d := s.m.dictFor(id)
	if s.dictsByID == nil {
		s.dictsByID = make(map[ID]*Dict)
	}
	s.dictsByID[id] = d

	d.mu.Lock()
	defer d.mu.Unlock()

	wi := &WordIndex{base: l.globalLen, tail: make([]int, len(l.extra))}
	for i, snip := range l.extra {
		node := l.globalLen + i
		if w, ok := d.toindex[snip]; ok {
			// some other VB already added this snip to the global
			// table (possibly while we were parsing); reuse its
			// word index. A repeat always settles any prior
			// ambiguity about singleton status (see Open Question).
			wi.tail[i] = w
			d.everSeen[snip] = true
			continue
		}
		count := 1
		if singleCount != nil {
			count = singleCount(node)
		}
		if count <= 1 && !d.everSeen[snip] {
			// first time this exact value has ever been seen in the
			// file, and it only occurred once in this VB: demote to
			// a singleton instead of bloating the dictionary.
			d.everSeen[snip] = true
			wi.tail[i] = singletonMarker
			continue
		}
		d.everSeen[snip] = true
		w := len(d.interned)
		d.interned = append(d.interned, snip)
		d.toindex[snip] = w
		wi.tail[i] = w
	}
	return wi
}

// NoteCounts records per-word occurrence counts observed in a
// context's already-rewritten (global word index) b250 stream. Only
// meaningful when this session is Manager.firstVB: Commit feeds the
// accumulated counts into SetCounts right before sorting that
// dictionary by frequency (spec.md §4.5 step 5). A no-op for any
// other VB, so callers can call it unconditionally.
func (s *Session) NoteCounts(id ID, words []int) {
	if s.vb != s.m.firstVB {
		return
	}
	if s.counts == nil {
		s.counts = make(map[ID]map[int]int)
	}
	c := s.counts[id]
	if c == nil {
		c = make(map[int]int)
		s.counts[id] = c
	}
	for _, w := range words {
		if w >= 0 {
			c[w]++
		}
	}
}

// RegisterRemap records r as needing to see the word-index permutation
// if dict id turns out to be re-sorted by this session's Commit. Only
// Manager.firstVB ever sorts, so this is a no-op for any other VB;
// callers can call it unconditionally right after Merge.
func (s *Session) RegisterRemap(id ID, r Remapper) {
	if s.vb != s.m.firstVB {
		return
	}
	if s.remaps == nil {
		s.remaps = make(map[ID][]Remapper)
	}
	s.remaps[id] = append(s.remaps[id], r)
}

// Commit finishes the session, applies the VB#1 frequency sort if
// this was the first VB to merge, and releases the next VB's
// BeginMerge call.
//
// The sort must run, and any already-rewritten b250 streams must be
// fixed up, before any other VB's BeginMerge can proceed — otherwise
// VB#1's contexts would reference pre-sort word indices while the
// dict fragment written to the global area (after every VB has run)
// reflects post-sort order, corrupting the file. Since Merge already
// rewrote VB#1's b250 against the dictionary's arrival-order indices,
// Commit fixes that up in place here via the old->new permutation
// sortByFrequency returns, rather than deferring the rewrite itself.
func (s *Session) Commit() {
	m := s.m
	if s.vb == m.firstVB && !m.sortDone {
		for id, d := range s.dictsByID {
			d.SetCounts(countsSlice(s.counts[id], d.Len()))
			if old2new := sortByFrequency(d); old2new != nil {
				for _, r := range s.remaps[id] {
					r.RemapWordIndices(old2new)
				}
			}
		}
		m.sortDone = true
	}
	m.mu.Lock()
	m.nextVB = s.vb + 1
	m.mu.Unlock()
	m.cond.Broadcast()
}

// countsSlice turns the word->count map NoteCounts accumulated into
// the dense []int SetCounts expects, zero-filling any word index
// never observed in VB#1's own b250 streams (e.g. one only reused from
// a dict another concurrently-parsing VB already populated).
func countsSlice(counts map[int]int, n int) []int {
	out := make([]int, n)
	for w, c := range counts {
		if w >= 0 && w < n {
			out[w] = c
		}
	}
	return out
}

// sortByFrequency implements spec.md §4.5 step 5: after VB#1 merges
// (and before any other VB merges), its contributions may be
// reordered by observed count descending so that low word indices
// (0, 1, 2, ...) tend to be the most frequent, which is what makes
// the MOST_FREQ0..2 b250 escapes worthwhile. Only VB#1 does this;
// the Manager enforces that by construction (Commit only sorts when
// s.vb == m.firstVB). Returns the old->new word-index permutation so
// the caller can fix up any b250 stream already rewritten against the
// pre-sort indices, or nil if nothing changed.
func sortByFrequency(d *Dict) map[int]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sorted || len(d.interned) == 0 {
		return nil
	}
	d.sorted = true
	type ent struct {
		oldIndex int
		snip     string
		count    int
	}
	ents := make([]ent, len(d.interned))
	for i, s := range d.interned {
		ents[i] = ent{oldIndex: i, snip: s, count: d.counts(i)}
	}
	sort.SliceStable(ents, func(i, j int) bool {
		return ents[i].count > ents[j].count
	})
	newInterned := make([]string, len(ents))
	old2new := make(map[int]int, len(ents))
	for newIndex, e := range ents {
		newInterned[newIndex] = e.snip
		old2new[e.oldIndex] = newIndex
	}
	d.interned = newInterned
	maps.Clear(d.toindex)
	for i, s := range d.interned {
		d.toindex[s] = i
	}
	return old2new
}

// counts looks up a word's occurrence count for the frequency sort.
// Session.Commit populates countsTable (via SetCounts) from the
// NoteCounts bookkeeping its contexts reported before sorting; a word
// index outside that table (or no table at all) is treated as
// unobserved, which keeps the sort stable rather than wrong.
func (d *Dict) counts(word int) int {
	if d.countsTable == nil || word >= len(d.countsTable) {
		return 0
	}
	return d.countsTable[word]
}

