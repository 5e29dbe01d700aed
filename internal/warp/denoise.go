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
	"github.com/mlnoga/viewsynth/internal/median"
	"github.com/mlnoga/viewsynth/internal/scene"
)

// Median filters each channel of the frame with a size x size window.
// Identity frames and sizes <=1 are left untouched.
func Denoise(f *scene.Frame, size, threads int) {
	if f.Identity || size <= 1 {
		return
	}
	img := f.Image
	out := make([]uint8, len(img.Pix))
	median.FilterUint8(out, img.Pix, img.Width, img.Height, 3, size, threads)
	img.Pix = out
}
