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

// Package zlog is the minimal stderr logger used across gnzcore.
// No third-party logging library is pulled in here, matching the
// teacher repo's own cmd/sdb and cmd/sneller, which print directly
// with fmt.Fprintf rather than a structured logging package.
package zlog

import (
	"fmt"
	"os"
	"sync/atomic"
)

var verbose int32

// SetVerbose turns Verbosef on or off process-wide.
func SetVerbose(v bool) {
	if v {
		atomic.StoreInt32(&verbose, 1)
	} else {
		atomic.StoreInt32(&verbose, 0)
	}
}

// Verbose reports whether verbose logging is currently enabled.
func Verbose() bool { return atomic.LoadInt32(&verbose) != 0 }

// Printf always prints to stderr, newline-terminated.
func Printf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Verbosef prints to stderr only when verbose logging is enabled.
func Verbosef(format string, args ...any) {
	if Verbose() {
		Printf(format, args...)
	}
}
