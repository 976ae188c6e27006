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

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/gnzcore/gnzcore/dict"
	"github.com/gnzcore/gnzcore/digest"
	"github.com/gnzcore/gnzcore/dispatcher"
	"github.com/gnzcore/gnzcore/frame"
	"github.com/gnzcore/gnzcore/global"
	"github.com/gnzcore/gnzcore/gnzerr"
	"github.com/gnzcore/gnzcore/internal/zlog"
	"github.com/gnzcore/gnzcore/oracle"
	"github.com/gnzcore/gnzcore/reader"
	"github.com/gnzcore/gnzcore/vblock"
)

// runZip implements the "zip" subcommand: read <input>, run it
// through the dispatcher pipeline, and write a framed .gnz container.
// Only the built-in line oracle is wired here (format-specific
// parsers are an external-collaborator concern per spec.md §1); it
// exercises the full pipeline end to end on any newline-delimited
// text.
func runZip(args []string) error {
	if len(args) != 1 {
		return gnzerr.New(gnzerr.User, "usage: zip <input>")
	}
	in := args[0]

	f, err := os.Open(in)
	if err != nil {
		return gnzerr.New(gnzerr.User, "opening %s: %v", in, err)
	}
	defer f.Close()

	out := dasho
	if out == "" {
		out = in + ".gnz"
	}
	if !dashf && !dashc {
		if _, err := os.Stat(out); err == nil {
			return gnzerr.New(gnzerr.User, "%s already exists (use -f to overwrite)", out)
		}
	}

	var w io.Writer = os.Stdout
	if !dashc {
		outFile, err := os.Create(out)
		if err != nil {
			return gnzerr.New(gnzerr.User, "creating %s: %v", out, err)
		}
		defer outFile.Close()
		w = outFile
	}

	instanceID := uuid.New()
	var key [32]byte
	if dashPassword != "" {
		key = deriveKey(dashPassword, instanceID)
	}
	run, summary, err := zipTo(w, f, key, instanceID)
	return reportZip(in, run, summary, err)
}

// zipTo drives the full compress pipeline (file header, dispatcher
// run, global-area close) against w, returning the run's digest and
// the finished file's accounting. Split out of runZip so "test" mode
// can reuse the exact same path against an in-memory buffer.
func zipTo(w io.Writer, src io.Reader, key [32]byte, instanceID uuid.UUID) (*digest.Running, global.Summary, error) {
	bw := bufio.NewWriter(w)

	fh := frame.FileHeader{
		FormatVersion: frame.FormatVersion,
		InstanceID:    instanceID,
		CreatedUnix:   time.Now().Unix(),
	}
	fhPayload := fh.Encode()
	fhBytes := frame.Section{
		Header:  frame.Header{Type: frame.TypeFileHeader, UncompressedSize: uint32(len(fhPayload)), CompressedSize: uint32(len(fhPayload))},
		Payload: fhPayload,
	}.Encode()
	if _, err := bw.Write(fhBytes); err != nil {
		return nil, global.Summary{}, fmt.Errorf("%w: writing file header: %v", errEnvironment, err)
	}

	gw := global.NewWriter(bw, uint64(len(fhBytes)))

	r := reader.New(src, oracle.Lines{})
	r.SetTargetBytes(dashVBMB * (1 << 20))

	manager := dict.NewManager(1)
	d := dispatcher.New(dispatcher.Config{Workers: dashj, CodecKey: key}, oracle.Lines{}, manager)

	write := func(vb *vblock.VBlock) error {
		// Each VB's framed sections go through gw so the footer
		// directory and the ratio accounting cover them too.
		for buf := vb.Output; len(buf) > 0; {
			h, err := frame.DecodeHeader(buf)
			if err != nil {
				return err
			}
			n := frame.HeaderSize + int(h.CompressedSize)
			if err := gw.WriteSection(frame.Section{Header: h, Payload: buf[frame.HeaderSize:n]}); err != nil {
				return err
			}
			buf = buf[n:]
		}
		zlog.Verbosef("vblock %d: %d bytes written", vb.VBlockI, len(vb.Output))
		return nil
	}

	run, err := d.Run(context.Background(), r, write)
	if err != nil {
		return nil, global.Summary{}, err
	}

	for _, id := range manager.IDs() {
		dd := manager.Dict(id)
		words := make([]string, dd.Len())
		for i := range words {
			words[i] = dd.WordAt(i)
		}
		if err := gw.WriteDictFragment(id, words, 0); err != nil {
			return nil, global.Summary{}, fmt.Errorf("%w: writing dict fragment: %v", errEnvironment, err)
		}
	}

	summary, err := gw.Close()
	if err != nil {
		return nil, global.Summary{}, fmt.Errorf("%w: closing global area: %v", errEnvironment, err)
	}
	if err := bw.Flush(); err != nil {
		return nil, global.Summary{}, fmt.Errorf("%w: %v", errEnvironment, err)
	}
	return run, summary, nil
}

func reportZip(in string, run *digest.Running, summary global.Summary, err error) error {
	if err != nil {
		return err
	}
	if dashDigest && !dashq {
		zlog.Printf("digest: %x", run.Final())
	}
	if !dashq {
		zlog.Printf("%s: %d -> %d bytes (%.2fx)", in, summary.PlainBytes, summary.CompressedBytes, summary.Ratio())
	}
	return nil
}

// deriveKey turns a low-entropy user password plus the file's
// instance ID into fixed-size key material: a keyed blake2b-256 hash
// of the password, salted with the per-file instance ID so two files
// under the same password never share a key. runZip passes it to the
// dispatcher as CodecKey, which keys the file and per-VB digests; no
// section is encrypted with it.
// Grounded on digest.sum's use of blake2b for exactly this kind of
// keyed derivation.
func deriveKey(password string, instanceID uuid.UUID) [32]byte {
	h, err := blake2b.New256(instanceID[:])
	if err != nil {
		gnzerr.Abort("deriveKey: blake2b.New256: %v", err)
	}
	h.Write([]byte(password))
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}
