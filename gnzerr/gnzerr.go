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

// Package gnzerr classifies the errors that can come out of the
// compression/decompression core into the four kinds the dispatcher
// and the CLI need to distinguish: user error, bad source data,
// internal invariant violations, and resource exhaustion.
package gnzerr

import (
	"errors"
	"fmt"
)

// Kind is one of the four error categories the core distinguishes.
type Kind int

const (
	// User covers bad flag combinations, missing files, and
	// permission errors. Exit code 1.
	User Kind = iota + 1
	// SourceData covers truncated input, unparseable records, and
	// missing required columns. Exit code 2.
	SourceData
	// Resource covers out-of-memory and thread-creation failures.
	// Treated the same as SourceData for cleanup purposes.
	Resource
	// Invariant covers internal bugs: inconsistent context state,
	// a merge that sees a snip with an unexpected stored length,
	// a section-size mismatch on the in-memory roundtrip test.
	// Not recoverable; the process aborts.
	Invariant
)

func (k Kind) String() string {
	switch k {
	case User:
		return "user"
	case SourceData:
		return "source-data"
	case Resource:
		return "resource"
	case Invariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code associated with k.
// Invariant violations don't return normally (see Abort); Invariant,
// like any unrecognized kind, maps to 3.
func (k Kind) ExitCode() int {
	switch k {
	case User:
		return 1
	case SourceData, Resource:
		return 2
	default:
		return 3
	}
}

// Error wraps an underlying error with a Kind so that callers
// up the stack (the dispatcher, the CLI) can decide how to react
// without string-matching messages.
type Error struct {
	Kind Kind
	// File, VB, Line are best-effort location context; zero values
	// are omitted from Error().
	File string
	VB   int
	Line int
	Err  error
}

func (e *Error) Error() string {
	loc := ""
	if e.File != "" {
		loc = e.File
		if e.VB != 0 {
			loc = fmt.Sprintf("%s vb=%d", loc, e.VB)
		}
		if e.Line != 0 {
			loc = fmt.Sprintf("%s line=%d", loc, e.Line)
		}
		loc += ": "
	}
	return loc + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}

// At attaches file/VB/line context to an existing error.
func At(k Kind, file string, vb, line int, err error) error {
	return &Error{Kind: k, File: file, VB: vb, Line: line, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// SourceTruncated is returned by the reader when data remains at
// EOF but the format's boundary oracle cannot find a record
// boundary and the format does not permit a trailing partial record.
var SourceTruncated = errors.New("gnzerr: source truncated mid-record")

// MissingPair is returned when decompression is attempted on an R2
// stream in isolation and a context's section was omitted because
// it was pair-identical to R1 (see b250.PairIdentical).
var MissingPair = errors.New("gnzerr: R2 section omitted; pair required for reconstruction")

// Abort panics with an *Error of kind Invariant. Nothing in gnzcore
// recovers it, so the panic ends the process; this mirrors the
// teacher's own use
// of bare panic() for states considered unreachable (see
// ion.Symtab's "bad symbol ID bookkeeping" and blockfmt.MultiWriter's
// "blocks out-of-order").
func Abort(format string, args ...any) {
	panic(&Error{Kind: Invariant, Err: fmt.Errorf(format, args...)})
}
