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

// Renders the view at the given position. Positions (0,0) and (1,0) return
// copies of the source views. All others are splatted, hole filled and denoised.
func Render(s *scene.Scene, id int, pos Position, p Params) (*scene.Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if f := Identity(s, id, pos); f != nil {
		return f, nil
	}
	f := SplatFrame(s, id, pos, p)
	FillHoles(f)
	Denoise(f, p.MedianSize, p.Threads)
	return f, nil
}

// Returns a copy of view0 for position (0,0), a copy of view1 for (1,0), and nil otherwise
func Identity(s *scene.Scene, id int, pos Position) *scene.Frame {
	if pos.Y != 0 || (pos.X != 0 && pos.X != 1) {
		return nil
	}
	f := scene.NewFrameFromImage(id, pos.X, pos.Y, s.Views[int(pos.X)].Image)
	f.Identity = true
	return f
}

// Splats and normalizes the view at the given position, without identity
// shortcut, hole filling or denoising
func SplatFrame(s *scene.Scene, id int, pos Position, p Params) *scene.Frame {
	b := SplatParallel(s.Views, s.Calib, pos, p.Tolerance, p.Threads)
	return b.Normalize(id, pos)
}
