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

package warp

import (
	"math"
	"sync"

	"github.com/mlnoga/viewsynth/internal/scene"
)

// Forward warps both views with up to the given number of goroutines.
//
// Each goroutine owns a band of destination rows and visits source pixels in
// the same order as Splat, skipping taps outside its band. Every cell therefore
// sees the identical sequence of deposits, and the result equals Splat bit for bit.
// Source rows which cannot reach a band given the view's disparity range are skipped.
func SplatParallel(views [2]scene.View, calib scene.Calibration, pos Position, tolerance float64, threads int) *Buffers {
	w, h := views[0].Image.Width, views[0].Image.Height
	if threads > h {
		threads = h
	}
	if threads <= 1 {
		return Splat(views, calib, pos, tolerance)
	}

	b := NewBuffers(w, h)
	var depths [2][]float64
	var shifts [2][2]float64
	var hasValid [2]bool
	for index, v := range views {
		depths[index] = DepthMap(v.Disparity, calib)
		dMin, dMax, valid := v.Disparity.Range()
		if valid == 0 {
			continue
		}
		hasValid[index] = true
		s0 := pos.Y * (float64(dMin) + calib.Doffs)
		s1 := pos.Y * (float64(dMax) + calib.Doffs)
		shifts[index] = [2]float64{math.Min(s0, s1), math.Max(s0, s1)}
	}

	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		yMin, yMax := t*h/threads, (t+1)*h/threads
		wg.Add(1)
		go func(yMin, yMax int) {
			defer wg.Done()
			for index, v := range views {
				if !hasValid[index] {
					continue
				}
				srcY0, srcY1 := sourceRows(shifts[index], yMin, yMax, h)
				b.splatView(v, depths[index], index, calib, pos, tolerance, yMin, yMax, srcY0, srcY1)
			}
		}(yMin, yMax)
	}
	wg.Wait()
	return b
}

// Source rows whose splats can touch destination rows [yMin,yMax), given the
// range of vertical shifts. A source row y lands at y-s, and its taps cover
// floor(y-s) and floor(y-s)+1. Bounds are widened by one row against rounding.
func sourceRows(shift [2]float64, yMin, yMax, height int) (int, int) {
	lo := math.Floor(float64(yMin-1)+shift[0]) - 1
	hi := math.Ceil(float64(yMax)+shift[1]) + 1
	if lo < 0 {
		lo = 0
	}
	if hi > float64(height) {
		hi = float64(height)
	}
	if hi <= lo {
		return 0, 0
	}
	return int(lo), int(hi)
}
