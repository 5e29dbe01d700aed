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

// Accumulation buffers of one splat. Color holds three weighted channel sums per
// cell, Weight the sum of weights, and Z the depth of the closest surface so far.
type Buffers struct {
	Width  int
	Height int
	Color  []float64
	Weight []float64
	Z      []float64
}

func NewBuffers(width, height int) *Buffers {
	z := make([]float64, width*height)
	for i := range z {
		z[i] = math.Inf(1)
	}
	return &Buffers{
		Width:  width,
		Height: height,
		Color:  make([]float64, width*height*3),
		Weight: make([]float64, width*height),
		Z:      z,
	}
}

// Forward warps both views into fresh buffers. Views are processed in order,
// view0 before view1, each in row-major order. Among samples whose depths lie
// within tolerance of each other, arrival order decides which one resets a
// cell and which ones accumulate, so this order is part of the result.
func Splat(views [2]scene.View, calib scene.Calibration, pos Position, tolerance float64) *Buffers {
	w, h := views[0].Image.Width, views[0].Image.Height
	b := NewBuffers(w, h)
	for index, v := range views {
		depth := DepthMap(v.Disparity, calib)
		b.splatView(v, depth, index, calib, pos, tolerance, 0, h, 0, h)
	}
	return b
}

// Splats source rows [srcY0,srcY1) of one view, writing only destination rows [yMin,yMax)
func (b *Buffers) splatView(v scene.View, depth []float64, index int, calib scene.Calibration, pos Position,
	tolerance float64, yMin, yMax, srcY0, srcY1 int) {
	w := b.Width
	shiftX := pos.X - float64(index)
	pix := v.Image.Pix

	for y := srcY0; y < srcY1; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			d := float64(v.Disparity.Data[i])
			if math.IsNaN(d) || math.IsInf(d, 0) {
				continue
			}

			targetX := float64(x) - d*shiftX
			targetY := float64(y) - pos.Y*(d+calib.Doffs)
			x0f, y0f := math.Floor(targetX), math.Floor(targetY)
			if x0f < -1 || x0f >= float64(w) || y0f < float64(yMin-1) || y0f >= float64(yMax) {
				continue // no tap in bounds
			}
			x0, y0 := int(x0f), int(y0f)
			fx, fy := targetX-x0f, targetY-y0f
			wx := [2]float64{1 - fx, fx}
			wy := [2]float64{1 - fy, fy}

			r, g, bl := float64(pix[i*3]), float64(pix[i*3+1]), float64(pix[i*3+2])
			z := depth[i]
			for dy := 0; dy < 2; dy++ {
				py := y0 + dy
				if py < yMin || py >= yMax {
					continue
				}
				for dx := 0; dx < 2; dx++ {
					px := x0 + dx
					if px < 0 || px >= w {
						continue
					}
					weight := wx[dx] * wy[dy]
					if weight <= 0 {
						continue
					}
					b.deposit(py*w+px, r, g, bl, z, weight, tolerance)
				}
			}
		}
	}
}

// Z-buffer test for one weighted sample: a closer sample resets the cell,
// one within tolerance of the closest surface accumulates, farther ones are dropped
func (b *Buffers) deposit(cell int, r, g, bl, depth, weight, tolerance float64) {
	z := b.Z[cell]
	c := b.Color[cell*3 : cell*3+3]
	if depth < z {
		c[0], c[1], c[2] = r*weight, g*weight, bl*weight
		b.Weight[cell] = weight
		b.Z[cell] = depth
	} else if depth < z+tolerance {
		c[0] += r * weight
		c[1] += g * weight
		c[2] += bl * weight
		b.Weight[cell] += weight
	}
}

// Divides accumulated colors by their weights. Cells without weight become holes.
func (b *Buffers) Normalize(id int, pos Position) *scene.Frame {
	f := scene.NewFrame(id, pos.X, pos.Y, b.Width, b.Height)
	for i, weight := range b.Weight {
		if weight <= 0 {
			continue
		}
		inv := 1 / weight
		f.Image.Pix[i*3+0] = toUint8(b.Color[i*3+0] * inv)
		f.Image.Pix[i*3+1] = toUint8(b.Color[i*3+1] * inv)
		f.Image.Pix[i*3+2] = toUint8(b.Color[i*3+2] * inv)
		f.Valid[i] = true
	}
	return f
}

// Slack added before truncation, so that sums like 0.3*c+0.7*c do not drop to c-1
const truncSlack = 1e-6

// Truncates a channel value to 8 bits
func toUint8(v float64) uint8 {
	v += truncSlack
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
