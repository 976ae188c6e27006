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

package dict

import (
	"sync"
	"testing"
)

const testID ID = 0x4348524f4d // "CHROM"

func TestInternDedup(t *testing.T) {
	m := NewManager(1)
	l := m.Clone(testID)
	a := l.Intern("chr1")
	b := l.Intern("chr2")
	c := l.Intern("chr1")
	if a != c {
		t.Fatalf("expected repeated intern of chr1 to return the same node index, got %d and %d", a, c)
	}
	if a == b {
		t.Fatalf("expected distinct snips to get distinct node indices")
	}
}

func TestMergeAssignsWordIndices(t *testing.T) {
	m := NewManager(1)
	l := m.Clone(testID)
	n1 := l.Intern("chr1")
	n2 := l.Intern("chr2")
	// both referenced more than once so neither is a singleton
	l.Intern("chr1")
	l.Intern("chr2")

	s := m.BeginMerge(1)
	wi := s.Merge(testID, l, func(node int) int { return 2 })
	s.Commit()

	w1 := wi.Of(n1)
	w2 := wi.Of(n2)
	if w1 == w2 {
		t.Fatalf("distinct nodes must map to distinct word indices")
	}
	if wi.SingletonNode(n1) || wi.SingletonNode(n2) {
		t.Fatalf("neither node should be a singleton (count=2)")
	}
}

func TestSingletonPromotion(t *testing.T) {
	m := NewManager(1)
	l := m.Clone(testID)
	n := l.Intern("rare-value")

	s := m.BeginMerge(1)
	wi := s.Merge(testID, l, func(node int) int { return 1 })
	s.Commit()

	if !wi.SingletonNode(n) {
		t.Fatalf("a value referenced exactly once and never seen before should be a singleton")
	}
}

func TestRepeatAcrossVBsEndsSingletonStatus(t *testing.T) {
	m := NewManager(1)

	l1 := m.Clone(testID)
	n1 := l1.Intern("borderline")
	s1 := m.BeginMerge(1)
	wi1 := s1.Merge(testID, l1, func(int) int { return 1 })
	s1.Commit()
	if !wi1.SingletonNode(n1) {
		t.Fatalf("first occurrence should be a singleton")
	}

	l2 := m.Clone(testID)
	n2 := l2.Intern("borderline")
	s2 := m.BeginMerge(2)
	wi2 := s2.Merge(testID, l2, func(int) int { return 1 })
	s2.Commit()
	if wi2.SingletonNode(n2) {
		t.Fatalf("a repeat across VBs must be promoted into the dictionary, not stay a singleton")
	}
}

func TestMergeBarrierIsStrictlyOrdered(t *testing.T) {
	m := NewManager(1)
	const n = 8
	var mu sync.Mutex
	var order []int64
	var wg sync.WaitGroup
	for i := int64(n); i >= 1; i-- {
		wg.Add(1)
		go func(vb int64) {
			defer wg.Done()
			l := m.Clone(testID)
			l.Intern("x")
			s := m.BeginMerge(vb)
			mu.Lock()
			order = append(order, vb)
			mu.Unlock()
			s.Merge(testID, l, func(int) int { return 5 })
			s.Commit()
		}(i)
	}
	wg.Wait()
	for i, vb := range order {
		if vb != int64(i+1) {
			t.Fatalf("merge order violated: got %v", order)
		}
	}
}

func TestVB1FrequencySort(t *testing.T) {
	m := NewManager(1)
	l := m.Clone(testID)
	nRare := l.Intern("rare")
	nCommon := l.Intern("common")

	counts := map[int]int{nRare: 2, nCommon: 5}
	s := m.BeginMerge(1)
	wi := s.Merge(testID, l, func(node int) int { return counts[node] })

	// Simulate the rewritten b250 stream a context would report via
	// NoteCounts: each word index repeated once per observed record.
	var words []int
	for node, c := range counts {
		w := wi.Of(node)
		for i := 0; i < c; i++ {
			words = append(words, w)
		}
	}
	s.NoteCounts(testID, words)
	s.Commit()

	d := m.dictFor(testID)
	if d.interned[0] != "common" {
		t.Fatalf("expected VB#1 to sort the most frequent snip to word index 0, got %q", d.interned[0])
	}
}

func TestVB1FrequencySortRemapsAlreadyRewrittenB250(t *testing.T) {
	m := NewManager(1)
	l := m.Clone(testID)
	nRare := l.Intern("rare")
	nCommon := l.Intern("common")

	counts := map[int]int{nRare: 2, nCommon: 5}
	s := m.BeginMerge(1)
	wi := s.Merge(testID, l, func(node int) int { return counts[node] })

	// "rare" arrives first (word index 0) and "common" second (word
	// index 1); the context's b250 stream, rewritten against those
	// arrival-order indices, references them by that pre-sort order.
	b250 := []int{wi.Of(nRare), wi.Of(nCommon), wi.Of(nCommon)}
	fake := &fakeRemapper{b250: append([]int(nil), b250...)}

	s.NoteCounts(testID, []int{wi.Of(nRare), wi.Of(nRare), wi.Of(nCommon), wi.Of(nCommon), wi.Of(nCommon), wi.Of(nCommon), wi.Of(nCommon)})
	s.RegisterRemap(testID, fake)
	s.Commit()

	d := m.dictFor(testID)
	if d.interned[0] != "common" {
		t.Fatalf("expected the more frequent snip at word index 0, got %q", d.interned[0])
	}
	for i, w := range fake.b250 {
		if d.interned[w] != []string{"rare", "common", "common"}[i] {
			t.Fatalf("remapped b250[%d] = %d (%q), want the original snip preserved after remap", i, w, d.interned[w])
		}
	}
}

type fakeRemapper struct{ b250 []int }

func (f *fakeRemapper) RemapWordIndices(old2new map[int]int) {
	for i, w := range f.b250 {
		if nw, ok := old2new[w]; ok {
			f.b250[i] = nw
		}
	}
}
