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

package sweep

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidRange = errors.New("invalid sweep range")

// Upper bound on the number of positions in one sweep
const MaxPositions = 1 << 16

// Returns ascending positions from start to end inclusive, spaced approximately
// by step. The count is round((end-start)/step)+1, and the positions are spread
// evenly so that the last one equals end exactly.
func Positions(start, end, step float64) ([]float64, error) {
	for _, v := range []float64{start, end, step} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite value %g", ErrInvalidRange, v)
		}
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: step %g must be positive", ErrInvalidRange, step)
	}
	if end < start {
		return nil, fmt.Errorf("%w: end %g before start %g", ErrInvalidRange, end, start)
	}
	if end == start {
		return []float64{start}, nil
	}

	steps := math.Round((end - start) / step)
	if steps+1 > MaxPositions {
		return nil, fmt.Errorf("%w: %g positions exceed the limit of %d", ErrInvalidRange, steps+1, MaxPositions)
	}
	n := int(steps) + 1
	if n < 2 {
		n = 2
	}
	pos := make([]float64, n)
	for i := range pos {
		pos[i] = start + (end-start)*float64(i)/float64(n-1)
	}
	pos[n-1] = end
	return pos, nil
}
