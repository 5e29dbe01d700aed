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

package scene

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Endpoints of the depth color ramp in HCL space: near is warm and bright, far is cold and dark
var (
	nearColor = colorful.Hcl(40, 0.75, 0.80)
	farColor  = colorful.Hcl(260, 0.45, 0.25)
)

// Renders a depth map as a color image for inspection. Depths are mapped
// linearly in inverse depth between the finite extremes. Non-finite depths are black.
func ColorizeDepth(depth []float64, width, height int) *Image {
	img := NewImage(width, height)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, z := range depth {
		if z <= 0 || math.IsInf(z, 0) || math.IsNaN(z) {
			continue
		}
		inv := 1 / z
		lo, hi = math.Min(lo, inv), math.Max(hi, inv)
	}
	if lo > hi {
		return img
	}
	scale := 0.0
	if hi > lo {
		scale = 1 / (hi - lo)
	}

	for i, z := range depth {
		if z <= 0 || math.IsInf(z, 0) || math.IsNaN(z) {
			continue
		}
		t := 1 - (1/z-lo)*scale // 0=near, 1=far
		c := nearColor.BlendHcl(farColor, t).Clamped()
		r, g, b := c.RGB255()
		img.Pix[i*3], img.Pix[i*3+1], img.Pix[i*3+2] = r, g, b
	}
	return img
}
