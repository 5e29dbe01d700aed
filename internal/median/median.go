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

package median

import (
	"sync"
)

// Applies a size x size median filter to each channel of interleaved 8-bit data,
// assumed to be a 2D array with given width, height and number of channels, and
// stores results in output. Pixels outside the image replicate the nearest edge pixel.
// Even sizes are rounded up to the next odd size. Sizes <=1 copy the input.
// Rows are split into bands processed by up to the given number of goroutines.
func FilterUint8(output, data []uint8, width, height, channels, size, threads int) {
	if size <= 1 || width == 0 || height == 0 {
		copy(output, data)
		return
	}
	size |= 1
	if threads < 1 {
		threads = 1
	}
	if threads > height {
		threads = height
	}

	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		y0, y1 := t*height/threads, (t+1)*height/threads
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for c := 0; c < channels; c++ {
				filterRows(output, data, width, height, channels, c, size, y0, y1)
			}
		}(y0, y1)
	}
	wg.Wait()
}

// Filters rows [y0,y1) of channel c with a sliding window histogram, adding the
// column entering the window and removing the column leaving it for every step in x
func filterRows(output, data []uint8, width, height, channels, c, size, y0, y1 int) {
	radius := size / 2
	rank := (size * size) / 2 // zero-based rank of the median
	var hist [256]int32

	for y := y0; y < y1; y++ {
		hist = [256]int32{}
		for dx := -radius; dx <= radius; dx++ {
			addColumn(&hist, data, width, height, channels, c, clamp(dx, width), y, radius, 1)
		}
		output[y*width*channels+c] = rankOf(&hist, rank)

		for x := 1; x < width; x++ {
			addColumn(&hist, data, width, height, channels, c, clamp(x-radius-1, width), y, radius, -1)
			addColumn(&hist, data, width, height, channels, c, clamp(x+radius, width), y, radius, 1)
			output[(y*width+x)*channels+c] = rankOf(&hist, rank)
		}
	}
}

func addColumn(hist *[256]int32, data []uint8, width, height, channels, c, x, y, radius int, delta int32) {
	for dy := -radius; dy <= radius; dy++ {
		yy := clamp(y+dy, height)
		hist[data[(yy*width+x)*channels+c]] += delta
	}
}

// Returns the value with the given zero-based rank from a histogram
func rankOf(hist *[256]int32, rank int) uint8 {
	cum := int32(0)
	for v := range hist {
		cum += hist[v]
		if cum > int32(rank) {
			return uint8(v)
		}
	}
	return 255
}

// Clamps an index into [0,n)
func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
