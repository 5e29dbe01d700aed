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
	"github.com/mlnoga/viewsynth/internal/scene"
)

// Fills holes of a splatted frame. Rows are always filled horizontally.
// Frames with a vertical offset are then extended vertically at the top and bottom.
// Identity frames are left untouched.
func FillHoles(f *scene.Frame) {
	if f.Identity {
		return
	}
	FillHorizontal(f)
	if f.Y != 0 {
		FillVertical(f)
	}
}

// Fills each row by copying its first valid pixel to the left, its last valid
// pixel to the right, and linearly interpolating every gap between two valid
// pixels. Rows without valid pixels are left as holes.
func FillHorizontal(f *scene.Frame) {
	img := f.Image
	w := img.Width
	cols := make([]int, 0, w)

	for y := 0; y < img.Height; y++ {
		row := f.Valid[y*w : (y+1)*w]
		cols = cols[:0]
		for x, ok := range row {
			if ok {
				cols = append(cols, x)
			}
		}
		if len(cols) == 0 || len(cols) == w {
			continue
		}

		first, last := cols[0], cols[len(cols)-1]
		for x := 0; x < first; x++ {
			copyPixel(img, x, y, first, y)
		}
		for x := last + 1; x < w; x++ {
			copyPixel(img, x, y, last, y)
		}

		for k := 0; k+1 < len(cols); k++ {
			left, right := cols[k], cols[k+1]
			gap := right - left
			if gap <= 1 {
				continue
			}
			l, r := img.Offset(left, y), img.Offset(right, y)
			for i := 1; i < gap; i++ {
				t := float64(i) / float64(gap)
				o := img.Offset(left+i, y)
				for c := 0; c < 3; c++ {
					img.Pix[o+c] = toUint8(float64(img.Pix[l+c])*(1-t) + float64(img.Pix[r+c])*t)
				}
			}
		}

		for x := range row {
			row[x] = true
		}
	}
}

// Extends each column upwards from its first valid pixel and downwards from its
// last valid pixel. Gaps between valid pixels are not interpolated.
func FillVertical(f *scene.Frame) {
	img := f.Image
	w, h := img.Width, img.Height

	for x := 0; x < w; x++ {
		first, last := -1, -1
		for y := 0; y < h; y++ {
			if f.Valid[y*w+x] {
				if first < 0 {
					first = y
				}
				last = y
			}
		}
		if first < 0 {
			continue
		}
		for y := 0; y < first; y++ {
			copyPixel(img, x, y, x, first)
			f.Valid[y*w+x] = true
		}
		for y := last + 1; y < h; y++ {
			copyPixel(img, x, y, x, last)
			f.Valid[y*w+x] = true
		}
	}
}

func copyPixel(img *scene.Image, dx, dy, sx, sy int) {
	d, s := img.Offset(dx, dy), img.Offset(sx, sy)
	copy(img.Pix[d:d+3], img.Pix[s:s+3])
}
