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
)

// A disparity map in pixels, rows top to bottom. Non-finite values mark pixels
// without a valid correspondence.
type Disparity struct {
	Width  int
	Height int
	Data   []float32
}

func NewDisparity(width, height int) *Disparity {
	return &Disparity{
		Width:  width,
		Height: height,
		Data:   make([]float32, width*height),
	}
}

func (d *Disparity) At(x, y int) float32 {
	return d.Data[y*d.Width+x]
}

// True if the value is a usable disparity, i.e. neither NaN nor infinite
func IsValid(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Returns the range of finite disparities and their count. Min and max are
// NaN if there are no valid samples.
func (d *Disparity) Range() (min, max float32, valid int) {
	min, max = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range d.Data {
		if !IsValid(v) {
			continue
		}
		valid++
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if valid == 0 {
		nan := float32(math.NaN())
		return nan, nan, 0
	}
	return min, max, valid
}
