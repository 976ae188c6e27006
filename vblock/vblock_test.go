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

package vblock

import (
	"testing"

	"github.com/gnzcore/gnzcore/codec"
	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/ltype"
	"github.com/gnzcore/gnzcore/oracle"
)

func TestSingleVBLifecycle(t *testing.T) {
	m := dict.NewManager(1)
	vb := New(1, oracle.Lines{}, m)
	vb.Fill([]byte("hello\nworld\nhello\n"))

	if err := vb.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(vb.Contexts()) != 1 {
		t.Fatalf("expected exactly one context (LINE), got %d", len(vb.Contexts()))
	}

	s := m.BeginMerge(1)
	if err := vb.Merge(s); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	s.Commit()

	bank := codec.DefaultBank()
	var key [32]byte
	if err := vb.Finalize(bank, key); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(vb.Output) == 0 {
		t.Fatalf("expected non-empty framed output")
	}
	if vb.State != StateProcessed {
		t.Fatalf("expected state StateProcessed, got %v", vb.State)
	}
}

func TestLocalKindRoutesACGTOnlySequenceData(t *testing.T) {
	if k := localKind(ltype.Sequence, []byte("ACGTNACGTACGT")); k != codec.KindACGT {
		t.Fatalf("expected KindACGT for an all-ACGTN sequence, got %v", k)
	}
	if k := localKind(ltype.Sequence, []byte("ACGTXACGT")); k != codec.KindGeneral {
		t.Fatalf("expected KindGeneral for a sequence with a non-ACGTN byte, got %v", k)
	}
	if k := localKind(ltype.Bitmap, nil); k != codec.KindBitmap {
		t.Fatalf("expected bitmap ltype to still route to KindBitmap regardless of data, got %v", k)
	}
	if k := localKind(ltype.TransposedU16, nil); k != codec.KindTransposed {
		t.Fatalf("expected transposed ltype to still route to KindTransposed regardless of data, got %v", k)
	}
}
