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

//go:build linux

package extern

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// readTimeout reads from fd into buf, giving up with ErrTimedOut if no
// data arrives within timeout. Used by DecompressWithTimeout to bound
// how long its caller waits on a companion decompressor process that
// may have wedged, rather than blocking indefinitely.
//
// Grounded on the poll/read retry loop pattern for raw file
// descriptors (unix.Poll + unix.Read, retrying on EINTR/EAGAIN)
// generalized here from a one-shot uffd fault read to a plain pipe
// read with a deadline.
func readTimeout(fd int, buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, errTimedOut
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, int(remaining.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("extern: poll: %w", err)
		}
		if n == 0 {
			return 0, errTimedOut
		}
		nr, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return 0, fmt.Errorf("extern: read: %w", err)
		}
		return nr, nil
	}
}

// setNonblock marks fd non-blocking, a prerequisite for readTimeout's
// poll-then-read loop to behave correctly under EAGAIN.
func setNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}
