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

package dispatcher

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/oracle"
	"github.com/gnzcore/gnzcore/reader"
	"github.com/gnzcore/gnzcore/vblock"
)

func TestRunWritesInAscendingVBlockOrder(t *testing.T) {
	src := strings.Repeat("alpha\nbeta\ngamma\ndelta\n", 50)
	r := reader.New(strings.NewReader(src), oracle.Lines{})
	r.SetTargetBytes(32)

	m := dict.NewManager(1)
	d := New(Config{Workers: 6}, oracle.Lines{}, m)

	var mu sync.Mutex
	var order []int64
	write := func(vb *vblock.VBlock) error {
		mu.Lock()
		order = append(order, vb.VBlockI)
		mu.Unlock()
		if len(vb.Output) == 0 {
			t.Errorf("vblock %d: empty output", vb.VBlockI)
		}
		return nil
	}

	run, err := d.Run(context.Background(), r, write)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) == 0 {
		t.Fatalf("expected at least one VB written")
	}
	for i, v := range order {
		if v != int64(i+1) {
			t.Fatalf("write order not ascending: %v", order)
		}
	}

	// two independent runs over the same bytes with the same key must
	// produce the same final digest
	sum1 := run.Final()

	r2 := reader.New(strings.NewReader(src), oracle.Lines{})
	r2.SetTargetBytes(32)
	m2 := dict.NewManager(1)
	d2 := New(Config{Workers: 1}, oracle.Lines{}, m2)
	run2, err := d2.Run(context.Background(), r2, func(*vblock.VBlock) error { return nil })
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	sum2 := run2.Final()
	if sum1 != sum2 {
		t.Fatalf("digest mismatch across differently-scheduled runs: %x vs %x", sum1, sum2)
	}
}

func TestRunPropagatesWriteError(t *testing.T) {
	src := "one\ntwo\nthree\n"
	r := reader.New(strings.NewReader(src), oracle.Lines{})
	m := dict.NewManager(1)
	d := New(Config{Workers: 2}, oracle.Lines{}, m)

	boom := context.DeadlineExceeded
	_, err := d.Run(context.Background(), r, func(*vblock.VBlock) error { return boom })
	if err != boom {
		t.Fatalf("expected write error to propagate, got %v", err)
	}
}
