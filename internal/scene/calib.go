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
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Stereo calibration of a rectified camera pair. Only Baseline, Focal and Doffs
// enter the warp. The remaining fields are informational.
type Calibration struct {
	Baseline float64 `json:"baseline"` // camera separation
	Focal    float64 `json:"focal"`    // focal length in pixels, element [0,0] of cam0
	Doffs    float64 `json:"doffs"`    // x-difference of the principal points
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	NDisp    int     `json:"ndisp,omitempty"`
	VMin     int     `json:"vmin,omitempty"`
	VMax     int     `json:"vmax,omitempty"`
}

var ErrInvalidCalibration = errors.New("invalid calibration")

// Checks the scalars used by the warp
func (c Calibration) Validate() error {
	if !(c.Baseline > 0) || math.IsInf(c.Baseline, 0) {
		return fmt.Errorf("%w: baseline %g", ErrInvalidCalibration, c.Baseline)
	}
	if !(c.Focal > 0) || math.IsInf(c.Focal, 0) {
		return fmt.Errorf("%w: focal length %g", ErrInvalidCalibration, c.Focal)
	}
	if math.IsNaN(c.Doffs) || math.IsInf(c.Doffs, 0) {
		return fmt.Errorf("%w: doffs %g", ErrInvalidCalibration, c.Doffs)
	}
	return nil
}

func (c Calibration) String() string {
	return fmt.Sprintf("baseline=%g focal=%g doffs=%g", c.Baseline, c.Focal, c.Doffs)
}

// Reads a Middlebury style calib.txt file
func ReadCalibration(fileName string) (Calibration, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return Calibration{}, err
	}
	defer f.Close()
	c, err := ParseCalibration(f)
	if err != nil {
		return Calibration{}, fmt.Errorf("%s: %w", fileName, err)
	}
	return c, nil
}

// Parses key=value lines. Matrices are written as [a b c; d e f; g h i].
// Requires cam0, baseline and doffs.
func ParseCalibration(r io.Reader) (Calibration, error) {
	values := map[string]string{}
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return Calibration{}, err
	}

	var c Calibration
	cam0, ok := values["cam0"]
	if !ok {
		return c, fmt.Errorf("%w: missing cam0", ErrInvalidCalibration)
	}
	m, err := parseMatrix(cam0)
	if err != nil {
		return c, fmt.Errorf("%w: cam0: %v", ErrInvalidCalibration, err)
	}
	c.Focal = m[0][0]

	if c.Baseline, err = parseFloat(values, "baseline"); err != nil {
		return c, err
	}
	if c.Doffs, err = parseFloat(values, "doffs"); err != nil {
		return c, err
	}
	for key, dst := range map[string]*int{"width": &c.Width, "height": &c.Height, "ndisp": &c.NDisp, "vmin": &c.VMin, "vmax": &c.VMax} {
		if v, ok := values[key]; ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return c, fmt.Errorf("%w: %s: %v", ErrInvalidCalibration, key, err)
			}
			*dst = int(f)
		}
	}
	return c, c.Validate()
}

func parseFloat(values map[string]string, key string) (float64, error) {
	v, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidCalibration, key)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidCalibration, key, err)
	}
	return f, nil
}

func parseMatrix(s string) ([][]float64, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("matrix %q not enclosed in brackets", s)
	}
	var m [][]float64
	for _, rowStr := range strings.Split(s[1:len(s)-1], ";") {
		var row []float64
		for _, field := range strings.Fields(rowStr) {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, err
			}
			row = append(row, f)
		}
		if len(row) > 0 {
			m = append(m, row)
		}
	}
	if len(m) == 0 || len(m[0]) == 0 {
		return nil, fmt.Errorf("empty matrix %q", s)
	}
	return m, nil
}
