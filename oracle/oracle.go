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

// Package oracle defines the "source oracle" contract spec.md §6
// assigns to format-specific parsers: a boundary function the reader
// uses to fill a VB without splitting a record, and a parse function
// that walks a filled VB's text, calling into column.Context's
// intern/append_b250/append_local operations.
//
// The per-format parsers themselves are named explicitly as external
// collaborators (spec.md's opening paragraph); this package is the
// seam, plus one reference oracle (Lines) exercising it end to end.
// The chunk-then-hand-to-a-parser shape of Lines is grounded on the
// teacher's CSV chopper (xsv/csv_chopper.go: find the next record
// boundary in a byte buffer, hand the delimited slice to a row
// callback) generalized to spec.md's boundary/parse split.
package oracle

import (
	"github.com/gnzcore/gnzcore/column"
	"github.com/gnzcore/gnzcore/dict"
)

// BoundaryResult is what a format's boundary function reports about a
// buffer: how much of it belongs to complete records, or that more
// data is needed before it can tell.
type BoundaryResult struct {
	Length   int  // buf[first : first+Length] holds only complete records
	NeedMore bool // true if no complete record boundary was found at all
	EOFOk    bool // true if a partial record at EOF is acceptable for this format
}

// Oracle is what a format registers with the reader and dispatcher.
type Oracle interface {
	// Name identifies the format, for logging and the file header's
	// data-type byte.
	Name() string
	// Boundary locates the last complete record in buf[first:last].
	Boundary(buf []byte, first, last int) BoundaryResult
	// Parse consumes text (a VB's filled, boundary-aligned byte
	// slice), calling Put/PutMissing/PutEmpty/AppendLocal on the
	// relevant entries of contexts as it recognizes each record's
	// columns. contexts is keyed by column name; a parser creates
	// entries lazily via Contexts.Get.
	Parse(text []byte, contexts *Contexts) error
	// DictIDSmall maps a column name to its stable, file-global
	// dict_id, used both to key the dictionary manager and to
	// populate Context.DictID when a column is first seen.
	DictIDSmall(name string) dict.ID
}

// Contexts is the live, VB-local set of named contexts a parse pass
// populates, created lazily so a format doesn't need to declare its
// full column set up front (VCF's INFO/FORMAT subfields are dynamic).
type Contexts struct {
	m       map[string]*column.Context
	manager *dict.Manager
	oracle  Oracle
}

// NewContexts returns an empty context set bound to m, whose entries
// will be created against oracle's DictIDSmall mapping.
func NewContexts(m *dict.Manager, o Oracle) *Contexts {
	return &Contexts{m: make(map[string]*column.Context), manager: m, oracle: o}
}

// Get returns the context for name, creating and Binding it (cloning
// its dictionary from the manager) on first use.
func (c *Contexts) Get(name string) *column.Context {
	if ctx, ok := c.m[name]; ok {
		return ctx
	}
	ctx := column.New(c.oracle.DictIDSmall(name), len(c.m), name)
	ctx.Bind(c.manager)
	c.m[name] = ctx
	return ctx
}

// All returns every context created so far, in the order first seen
// (matching Context.Did assignment), for the finalize/merge passes to
// iterate over.
func (c *Contexts) All() []*column.Context {
	out := make([]*column.Context, len(c.m))
	for _, ctx := range c.m {
		out[ctx.Did] = ctx
	}
	return out
}
