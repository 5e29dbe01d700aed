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

// Package sweep renders a sequence of views along the horizontal camera axis
// and hands them to a video or image encoder in ascending order.
package sweep

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mlnoga/viewsynth/internal/scene"
	"github.com/mlnoga/viewsynth/internal/warp"
)

// A horizontal sweep over a scene at vertical position 0
type Sweep struct {
	Scene  *scene.Scene
	Params warp.Params
	Xs     []float64
	Log    logrus.FieldLogger
}

// Creates a sweep from start to end inclusive with the given step
func New(s *scene.Scene, start, end, step float64, p warp.Params, log logrus.FieldLogger) (*Sweep, error) {
	xs, err := Positions(start, end, step)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweep{Scene: s, Params: p, Xs: xs, Log: log}, nil
}

// Number of frames
func (sw *Sweep) Len() int {
	return len(sw.Xs)
}

// Returns a fresh iterator over the frames of the sweep. Frames are rendered
// on demand, so iterating again renders them again.
func (sw *Sweep) Frames() *Iterator {
	return &Iterator{sweep: sw}
}

// Renders frame i with the given parameters
func (sw *Sweep) render(i int, p warp.Params) (*scene.Frame, error) {
	sw.Log.Infof("Rendering frame %d/%d: x_pos=%.2f", i+1, len(sw.Xs), sw.Xs[i])
	return warp.Render(sw.Scene, i, warp.Position{X: sw.Xs[i]}, p)
}

// Lazy iterator over the frames of a sweep
type Iterator struct {
	sweep *Sweep
	next  int
}

// Renders and returns the next frame, or io.EOF after the last one.
// Cancellation is checked before rendering starts.
func (it *Iterator) Next(ctx context.Context) (*scene.Frame, error) {
	if it.next >= len(it.sweep.Xs) {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := it.sweep.render(it.next, it.sweep.Params)
	if err != nil {
		return nil, err
	}
	it.next++
	return f, nil
}
