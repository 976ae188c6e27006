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

package column

import (
	"strings"
	"testing"

	"github.com/gnzcore/gnzcore/b250"
	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/ltype"
)

const testDictID dict.ID = 0x4348524f4d

func TestAllTheSameTracksAcrossRecords(t *testing.T) {
	m := dict.NewManager(1)
	c := New(testDictID, 0, "CHROM")
	c.Bind(m)

	c.Put("chr1")
	c.Put("chr1")
	if !c.Flags.AllTheSame {
		t.Fatalf("expected all-the-same after two identical puts")
	}
	c.Put("chr2")
	if c.Flags.AllTheSame {
		t.Fatalf("expected all-the-same to be invalidated by a differing value")
	}
}

func TestMissingAndEmptyDoNotBreakAllTheSame(t *testing.T) {
	m := dict.NewManager(1)
	c := New(testDictID, 0, "INFO")
	c.Bind(m)
	c.PutMissing()
	if !c.Flags.AllTheSame {
		t.Fatalf("single element is trivially all-the-same")
	}
	c.PutMissing()
	if !c.Flags.AllTheSame {
		t.Fatalf("repeated Missing should remain all-the-same")
	}
	c.PutEmpty()
	if c.Flags.AllTheSame {
		t.Fatalf("Empty differs from Missing; all-the-same should break")
	}
}

func TestMergeAndRewriteProducesWordIndices(t *testing.T) {
	m := dict.NewManager(1)
	c := New(testDictID, 0, "CHROM")
	c.Bind(m)
	c.Put("chr1")
	c.Put("chr2")
	c.Put("chr1")
	c.Put("chr2")

	s := m.BeginMerge(1)
	if err := c.MergeAndRewrite(s); err != nil {
		t.Fatalf("MergeAndRewrite: %v", err)
	}
	s.Commit()

	words := c.B250()
	if len(words) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(words))
	}
	if words[0] != words[2] || words[1] != words[3] {
		t.Fatalf("repeated snips must map to the same word index: %v", words)
	}
	if words[0] == words[1] {
		t.Fatalf("distinct snips must map to distinct word indices")
	}
}

func TestSingletonPromotedToLocal(t *testing.T) {
	m := dict.NewManager(1)
	c := New(testDictID, 0, "RARE")
	c.Bind(m)
	c.Put("only-once")

	s := m.BeginMerge(1)
	if err := c.MergeAndRewrite(s); err != nil {
		t.Fatalf("MergeAndRewrite: %v", err)
	}
	s.Commit()

	if got := c.B250(); len(got) != 1 || got[0] != b250.Singleton {
		t.Fatalf("expected the lone node to be demoted to a singleton escape, got %v", got)
	}
	if err := c.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	local := string(c.Local())
	if !strings.HasPrefix(local, "only-once") {
		t.Fatalf("expected singleton bytes in local stream, got %q", local)
	}
	if !c.Flags.NoSingletons {
		t.Fatalf("expected NoSingletons to be set after a promotion")
	}
}

func TestDynIntFinalizeNarrowsWidth(t *testing.T) {
	c := New(testDictID, 0, "POS")
	c.Ltype = ltype.DynInt
	for _, v := range []int64{10, 20, 30} {
		c.AppendLocalValue(v)
	}
	if err := c.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if c.Ltype != ltype.U8 {
		t.Fatalf("expected dyn_int to narrow to U8 for small values, got %v", c.Ltype)
	}
	if len(c.Local()) != 3 {
		t.Fatalf("expected 3 bytes for 3 U8 values, got %d", len(c.Local()))
	}
}

func TestCollapseAllTheSame(t *testing.T) {
	m := dict.NewManager(1)
	c := New(testDictID, 0, "FILTER")
	c.Bind(m)
	c.Put("PASS")
	c.Put("PASS")
	c.Put("PASS")

	if _, ok := c.CollapseAllTheSame(); !ok {
		t.Fatalf("expected collapse to apply")
	}
}
