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

package ltype

// Transpose reorders a row-major matrix of element-index values
// (rows = len(vals)/cols) into column-major order: element [r*cols+c]
// moves to [c*rows+r]. Per spec.md §4.3, if len(vals) is not a
// multiple of cols the transpose is abandoned and the caller should
// fall back to emitting vals as a plain vector; ok reports which case
// applies.
func Transpose(vals []int64, cols int) (out []int64, ok bool) {
	if cols <= 0 || len(vals)%cols != 0 {
		return nil, false
	}
	rows := len(vals) / cols
	out = make([]int64, len(vals))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[c*rows+r] = vals[r*cols+c]
		}
	}
	return out, true
}

// Untranspose reverses Transpose given the original rows/cols.
func Untranspose(vals []int64, rows, cols int) []int64 {
	out := make([]int64, len(vals))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = vals[c*rows+r]
		}
	}
	return out
}
