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
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

// Random permutation of 1..n
func permutation(rng *fastrand.RNG, n int) []float32 {
	arr := make([]float32, n)
	for j := range arr {
		arr[j] = float32(j + 1)
	}
	for j := range arr {
		k := rng.Uint32n(uint32(n))
		arr[j], arr[k] = arr[k], arr[j]
	}
	return arr
}

func TestMedian(t *testing.T) {
	rng := fastrand.RNG{}
	for i := 1; i < 1000; i++ {
		arr := permutation(&rng, i)

		var expect float32
		if (i & 1) != 0 {
			expect = float32((i + 1) / 2)
		} else {
			expect = 0.5 * (float32(i/2) + float32(i/2+1))
		}

		res := QSelectMedianFloat32(arr)
		if res != expect {
			t.Logf("median(1..%d) got %f expect %f\n", i, res, expect)
			t.Fail()
		}
	}

	if res := QSelectMedianFloat32(nil); !math.IsNaN(float64(res)) {
		t.Errorf("median of empty slice=%v; want NaN", res)
	}
}

func TestQSelect(t *testing.T) {
	rng := fastrand.RNG{}
	for _, n := range []int{1, 2, 17, 256} {
		for k := 1; k <= n; k += 1 + n/8 {
			arr := permutation(&rng, n)
			ints := make([]int, n)
			for i, v := range arr {
				ints[i] = int(v)
			}
			if res := QSelect(arr, k); res != float32(k) {
				t.Errorf("qselect(1..%d, %d)=%v; want %d", n, k, res, k)
			}
			if res := QSelect(ints, k); res != k {
				t.Errorf("int qselect(1..%d, %d)=%v; want %d", n, k, res, k)
			}
		}
	}
}

func TestQuantile(t *testing.T) {
	rng := fastrand.RNG{}
	arr := permutation(&rng, 101)
	if res := QSelectQuantileFloat32(arr, 0); res != 1 {
		t.Errorf("q0=%v; want 1", res)
	}
	arr = permutation(&rng, 101)
	if res := QSelectQuantileFloat32(arr, 0.9); res != 91 {
		t.Errorf("q0.9=%v; want 91", res)
	}
	arr = permutation(&rng, 101)
	if res := QSelectQuantileFloat32(arr, 1); res != 101 {
		t.Errorf("q1=%v; want 101", res)
	}
}
