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

// Package extern bridges to a companion decompressor process for
// section payloads a codec name maps to an external tool rather than
// one of gnzcore's own codecs (spec.md §6: "checksum algorithm
// choice... and external decompressor processes are external
// collaborators").
//
// Grounded on tenant.Manager.sandboxStart (tenant/bwrap.go): spawn via
// os/exec.Cmd, with the child's stdin and stdout connected through
// cmd.StdinPipe and cmd.StdoutPipe.
package extern

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// SourceKind distinguishes how a section's bytes are obtained from an
// external collaborator, carried through to the compression-ratio
// accounting (SPEC_FULL.md §5 item 4, file_is_read_via_ext_decompressor
// in the original implementation): a pipe or URL source has no known
// compressed size ahead of time, while a spawned companion process
// that reports its own byte count does.
type SourceKind int

const (
	// SourceDirect means the bytes came from the local codec bank;
	// size is known exactly.
	SourceDirect SourceKind = iota
	// SourcePipeOrURL means bytes were streamed in from a source with
	// no a priori size (e.g. a decompressing pipe reader).
	SourcePipeOrURL
	// SourceSpawnedKnownSize means bytes came from a Bridge-spawned
	// process that reported its output size.
	SourceSpawnedKnownSize
)

// Bridge manages one companion decompressor process: write the
// compressed payload to its stdin, read the decompressed result back
// from its stdout, and reap the process on Close.
type Bridge struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

// Spawn starts path with args as a companion process whose stdin
// carries the compressed payload and whose stdout carries the
// decompressed result. ctx governs the process's lifetime: cancelling
// it kills the child.
func Spawn(ctx context.Context, path string, args ...string) (*Bridge, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("extern: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("extern: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("extern: start %s: %w", path, err)
	}
	return &Bridge{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// Decompress writes payload to the child's stdin, closes it to signal
// EOF, and returns everything the child wrote back to stdout before
// exiting. The Bridge is spent after one call — a fresh section needs
// a fresh Spawn, since most companion decompressor tools are one-shot
// filters rather than session-oriented servers.
func (b *Bridge) Decompress(payload []byte) ([]byte, error) {
	writeErrCh := make(chan error, 1)
	go func() {
		_, err := io.Copy(b.stdin, bytes.NewReader(payload))
		writeErrCh <- err
		b.stdin.Close()
	}()

	out, readErr := io.ReadAll(b.stdout)
	writeErr := <-writeErrCh

	waitErr := b.cmd.Wait()
	switch {
	case waitErr != nil:
		return nil, fmt.Errorf("extern: companion process: %w", waitErr)
	case writeErr != nil:
		return nil, fmt.Errorf("extern: writing payload to companion: %w", writeErr)
	case readErr != nil:
		return nil, fmt.Errorf("extern: reading companion output: %w", readErr)
	}
	return out, nil
}

// Close releases the Bridge's pipes without waiting for the process;
// callers that already ran Decompress to completion don't need it,
// but a caller that abandons a Bridge mid-stream (context cancelled)
// should still call Close to avoid leaking the pipe file descriptors.
func (b *Bridge) Close() error {
	b.stdin.Close()
	return b.stdout.Close()
}
