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

// Package warp synthesizes novel views from a calibrated stereo pair by
// forward splatting both source views into a z-buffered accumulation buffer,
// filling disocclusion holes and median filtering the result.
package warp

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultTolerance  = 1.0 // depth difference below which two samples are treated as one surface
	DefaultMedianSize = 7   // window size of the final median filter
)

// Target camera position. X=0 is view0, X=1 is view1, values outside [0,1]
// extrapolate. Y is a vertical offset in multiples of the baseline.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("x=%.2f y=%.2f", p.X, p.Y)
}

// Settings for rendering a view
type Params struct {
	Tolerance  float64 `json:"tolerance"`  // same-surface tolerance of the z-buffer test
	MedianSize int     `json:"medianSize"` // median filter window, <=1 disables denoising
	Threads    int     `json:"threads"`    // worker goroutines for splatting and filtering, <=1 is sequential
}

func DefaultParams() Params {
	return Params{
		Tolerance:  DefaultTolerance,
		MedianSize: DefaultMedianSize,
		Threads:    1,
	}
}

var ErrInvalidParams = errors.New("invalid render parameters")

func (p Params) Validate() error {
	if !(p.Tolerance >= 0) || math.IsInf(p.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance %g", ErrInvalidParams, p.Tolerance)
	}
	if p.MedianSize < 0 {
		return fmt.Errorf("%w: median size %d", ErrInvalidParams, p.MedianSize)
	}
	return nil
}
