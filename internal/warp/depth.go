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

	"github.com/mlnoga/viewsynth/internal/scene"
)

// Metric depth of a disparity sample: baseline*focal/(disparity+doffs).
// A zero denominator yields an infinite depth, which loses every z-buffer test.
func Depth(disparity float64, c scene.Calibration) float64 {
	return c.Baseline * c.Focal / (disparity + c.Doffs)
}

// Depth map of a disparity map. Invalid disparities map to NaN.
func DepthMap(d *scene.Disparity, c scene.Calibration) []float64 {
	depth := make([]float64, len(d.Data))
	for i, v := range d.Data {
		if !scene.IsValid(v) {
			depth[i] = math.NaN()
			continue
		}
		depth[i] = Depth(float64(v), c)
	}
	return depth
}
