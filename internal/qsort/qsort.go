// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package qsort

import (
	"cmp"
	"math"
)

// Partitions a with the middle element as pivot and returns the split index r.
// Afterwards a[:r+1] <= pivot <= a[r+1:]. Slice must not contain NaN
func partition[T cmp.Ordered](a []T) int {
	pivot := a[(len(a)-1)>>1]
	l, r := -1, len(a)
	for {
		for {
			l++
			if a[l] >= pivot {
				break
			}
		}
		for {
			r--
			if a[r] <= pivot {
				break
			}
		}
		if l >= r {
			return r
		}
		a[l], a[r] = a[r], a[l]
	}
}

// Selects the kth lowest element (1-based) of a. Partially reorders the slice.
// Slice must not contain NaN
func QSelect[T cmp.Ordered](a []T, k int) T {
	left, right := 0, len(a)-1
	for left < right {
		index := left + partition(a[left:right+1])
		offset := index - left + 1
		if k <= offset {
			right = index
		} else {
			left = index + 1
			k -= offset
		}
	}
	return a[left]
}

type Float interface {
	~float32 | ~float64
}

// Median of a. For even lengths, the mean of the two middle elements.
// Partially reorders the slice. Slice must not contain NaN. Returns NaN for an empty slice
func QSelectMedian[T Float](a []T) T {
	n := len(a)
	if n == 0 {
		return T(math.NaN())
	}
	hi := QSelect(a, n/2+1)
	if n&1 != 0 {
		return hi
	}
	lo := QSelect(a[:n/2], n/2) // after selection, a[:n/2] holds the lower half
	return 0.5 * (lo + hi)
}

func QSelectMedianFloat32(a []float32) float32 {
	return QSelectMedian(a)
}

// Selects the given quantile in [0,1] with nearest-rank semantics. Partially reorders the slice
func QSelectQuantileFloat32(a []float32, q float64) float32 {
	if len(a) == 0 {
		return float32(math.NaN())
	}
	k := int(q*float64(len(a)-1)+0.5) + 1
	if k < 1 {
		k = 1
	} else if k > len(a) {
		k = len(a)
	}
	return QSelect(a, k)
}
