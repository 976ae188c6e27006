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

// Package vblock implements the VBlock named in spec.md §3: the unit
// of work a dispatcher hands to one worker at a time, carrying the
// source text, the VB's context set, lifecycle state, and — once
// finalized — its compressed section output and digest snapshot.
//
// Grounded on ion.Chunker's per-chunk state (a text buffer plus the
// symbol table clone it was parsed against) generalized to the
// multi-context, multi-stream shape spec.md §3/§4.7 describes.
package vblock

import (
	"github.com/gnzcore/gnzcore/b250"
	"github.com/gnzcore/gnzcore/codec"
	"github.com/gnzcore/gnzcore/column"
	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/digest"
	"github.com/gnzcore/gnzcore/frame"
	"github.com/gnzcore/gnzcore/gnzerr"
	"github.com/gnzcore/gnzcore/ltype"
	"github.com/gnzcore/gnzcore/oracle"
)

// State is a VB's position in the lifecycle spec.md §3 names:
// "dispatcher creates -> reader fills text -> worker parses,
// generates, merges, compresses -> writer emits sections -> VB
// recycled."
type State int

const (
	StateReady State = iota
	StateReading
	StateReadyToCompute
	StateComputing
	StateProcessed
	StateWritten
)

// VBlock is one unit of dispatcher work.
type VBlock struct {
	VBlockI int64
	State   State

	Text []byte

	contexts *oracle.Contexts
	oracle   oracle.Oracle
	manager  *dict.Manager

	Output []byte // concatenated, framed sections, ready to write

	Digest digest.VBSnapshot

	// FirstR1 is set by the caller for paired-end (FASTQ R2) VBs, to
	// enable the pair-identical drop (spec.md §4.4); nil for
	// unpaired input.
	FirstR1 *VBlock
}

// New allocates a VBlock for vblockI, bound to manager and parsed
// with o.
func New(vblockI int64, o oracle.Oracle, manager *dict.Manager) *VBlock {
	return &VBlock{
		VBlockI:  vblockI,
		State:    StateReady,
		oracle:   o,
		manager:  manager,
		contexts: oracle.NewContexts(manager, o),
	}
}

// Fill sets the VB's source text (called by the reader) and advances
// its state.
func (vb *VBlock) Fill(text []byte) {
	vb.Text = text
	vb.State = StateReadyToCompute
}

// Parse runs the bound oracle's Parse over the VB's text, populating
// every context it touches.
func (vb *VBlock) Parse() error {
	vb.State = StateComputing
	if err := vb.oracle.Parse(vb.Text, vb.contexts); err != nil {
		return gnzerr.At(gnzerr.SourceData, "", int(vb.VBlockI), 0, err)
	}
	return nil
}

// Contexts returns every context this VB populated, in Did order.
func (vb *VBlock) Contexts() []*column.Context { return vb.contexts.All() }

// Merge runs spec.md §4.5 steps 3-4 for every context: fold each
// context's private dictionary contributions into the file-global
// dictionaries (serialized via s, which the dispatcher opened in
// strict vblock_i order) and rewrite each context's b250 from node
// indices to word indices.
func (vb *VBlock) Merge(s *dict.Session) error {
	for _, ctx := range vb.Contexts() {
		if err := ctx.MergeAndRewrite(s); err != nil {
			return err
		}
	}
	return nil
}

// Finalize runs spec.md §4.7's per-context steps (dyn_int narrowing,
// bitmap folding, transpose-or-fallback) and then codec-compresses
// and frames every context's b250 and local streams into vb.Output.
func (vb *VBlock) Finalize(bank *codec.Bank, key [32]byte) error {
	for _, ctx := range vb.Contexts() {
		if err := ctx.Finalize(); err != nil {
			return err
		}
		if err := vb.emitContext(ctx, bank); err != nil {
			return err
		}
	}
	vb.State = StateProcessed
	vb.Digest.VBlockI = vb.VBlockI
	vb.Digest.Standalone = digest.Standalone(vb.Text, key)
	return nil
}

func (vb *VBlock) emitContext(ctx *column.Context, bank *codec.Bank) error {
	flags := byte(0)
	stream := ctx.B250()
	if elem, ok := ctx.CollapseAllTheSame(); ok {
		stream = []int{elem}
		flags |= frame.FlagAllTheSame
	}

	width, b250Payload := b250.Encode(stream)

	if vb.FirstR1 != nil {
		if prior := vb.FirstR1.contextByName(ctx.Name); prior != nil {
			_, priorPayload := b250.Encode(prior.B250())
			if b250.PairIdentical(b250Payload, priorPayload) {
				flags |= frame.FlagPairOmitted
				return nil // R2 section omitted; reconstructor substitutes R1's
			}
		}
	}

	choice := bank.Select(codec.KindGeneral, b250Payload, ctx.BCodec)
	ctx.BCodec = choice.Name
	vb.Output = append(vb.Output, frame.Section{
		Header: frame.Header{
			Type:             frame.TypeB250Stream,
			Flags:            flags,
			VBlockI:          uint32(vb.VBlockI),
			DictID:           ctx.DictID,
			Codec:            frame.CodecByte(choice.Name),
			UncompressedSize: uint32(width * len(stream)),
			CompressedSize:   uint32(len(choice.Payload)),
		},
		Payload: choice.Payload,
	}.Encode()...)

	if len(ctx.Local()) > 0 {
		localChoice := bank.Select(localKind(ctx.Ltype, ctx.Local()), ctx.Local(), ctx.LCodec)
		ctx.LCodec = localChoice.Name
		vb.Output = append(vb.Output, frame.Section{
			Header: frame.Header{
				Type:             frame.TypeLocalStream,
				VBlockI:          uint32(vb.VBlockI),
				DictID:           ctx.DictID,
				Codec:            frame.CodecByte(localChoice.Name),
				UncompressedSize: uint32(len(ctx.Local())),
				CompressedSize:   uint32(len(localChoice.Payload)),
			},
			Payload: localChoice.Payload,
		}.Encode()...)
	}
	return nil
}

func (vb *VBlock) contextByName(name string) *column.Context {
	for _, c := range vb.Contexts() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// localKind maps a context's ltype (and, for Sequence data, its actual
// bytes) to the codec Kind that carries the pre-assigned overrides
// spec.md §4.6 names: bitmaps and transposed matrices always use their
// specialized codec entries regardless of sampling, and a Sequence
// local stream whose alphabet is entirely A/C/G/T/N (scenario 2) gets
// the ACGT-packed codec instead of falling through to general-purpose
// sampling.
func localKind(t ltype.Type, data []byte) codec.Kind {
	switch t {
	case ltype.Bitmap:
		return codec.KindBitmap
	case ltype.TransposedU8, ltype.TransposedU16, ltype.TransposedU32:
		return codec.KindTransposed
	case ltype.Sequence:
		if codec.IsACGTOnly(data) {
			return codec.KindACGT
		}
		return codec.KindGeneral
	default:
		return codec.KindGeneral
	}
}
