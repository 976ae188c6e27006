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

package extern

import (
	"errors"
	"os"
	"time"
)

// errTimedOut is returned by readTimeout (platform-specific) when no
// data arrives before the deadline.
var errTimedOut = errors.New("extern: timed out waiting for companion process")

// ErrTimedOut is the sentinel DecompressWithTimeout returns on a
// stalled companion process, distinct from a process-exit or pipe
// error.
var ErrTimedOut = errTimedOut

// DecompressWithTimeout behaves like Decompress, but gives up on a
// wedged companion process after timeout instead of blocking its
// caller forever. Only meaningful when the Bridge's stdout
// pipe is backed by a raw file descriptor (true for os/exec.Cmd's own
// StdoutPipe on every platform this targets); falls back to an
// untimed ReadAll if it isn't.
func (b *Bridge) DecompressWithTimeout(payload []byte, timeout time.Duration) ([]byte, error) {
	f, ok := b.stdout.(*os.File)
	if !ok {
		return b.Decompress(payload)
	}

	writeErrCh := make(chan error, 1)
	go func() {
		_, err := b.stdin.Write(payload)
		writeErrCh <- err
		b.stdin.Close()
	}()

	if err := setNonblock(int(f.Fd())); err != nil {
		return nil, err
	}

	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := readTimeout(int(f.Fd()), buf, timeout)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == nil && n == 0 {
			break // child closed its end of the pipe
		}
		if err != nil {
			if err == errTimedOut {
				return nil, ErrTimedOut
			}
			break // real read failure; fall through to Wait for the actual cause
		}
	}

	writeErr := <-writeErrCh
	waitErr := b.cmd.Wait()
	switch {
	case waitErr != nil:
		return nil, waitErr
	case writeErr != nil:
		return nil, writeErr
	}
	return out, nil
}
