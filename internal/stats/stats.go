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

// Package stats summarizes disparity and depth maps of a scene and the
// hole coverage of rendered frames.
package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/mlnoga/viewsynth/internal/qsort"
	"github.com/mlnoga/viewsynth/internal/scene"
	"github.com/mlnoga/viewsynth/internal/warp"
)

// Maximum number of samples used for median, quantiles and mode
const DefaultSampleSize = 1 << 16

const histogramBins = 256

// Summary statistics over the finite values of a data set
type Summary struct {
	Count  int     `json:"count"` // all values
	Valid  int     `json:"valid"` // finite values
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Median float64 `json:"median"` // from a sample
	P05    float64 `json:"p05"`    // 5% quantile, from a sample
	P95    float64 `json:"p95"`    // 95% quantile, from a sample
	Mode   float64 `json:"mode"`   // histogram peak, from a sample
}

// Fraction of finite values
func (s Summary) Coverage() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Valid) / float64(s.Count)
}

func (s Summary) String() string {
	return fmt.Sprintf("valid %d/%d (%.1f%%) min %.4g max %.4g mean %.4g stddev %.4g median %.4g p05 %.4g p95 %.4g mode %.4g",
		s.Valid, s.Count, 100*s.Coverage(), s.Min, s.Max, s.Mean, s.StdDev, s.Median, s.P05, s.P95, s.Mode)
}

// Summarizes the finite values of data. Order statistics are computed from a
// random sample of at most sampleSize values drawn with the given generator.
// Without finite values, only the counts are set.
func Summarize(data []float64, sampleSize int, rng *fastrand.RNG) Summary {
	valid := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}
	s := Summary{Count: len(data), Valid: len(valid)}
	if len(valid) == 0 {
		return s
	}

	s.Min, s.Max = floats.Min(valid), floats.Max(valid)
	if len(valid) == 1 {
		s.Mean, s.StdDev = valid[0], 0
	} else {
		s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	}

	samples := Sample(valid, sampleSize, rng)
	bins := make([]int32, histogramBins)
	Histogram(samples, s.Min, s.Max, bins)
	s.Mode, _ = GetPeak(bins, s.Min, s.Max)

	s.Median = qsort.QSelectMedian(samples)
	sort.Float64s(samples)
	s.P05 = stat.Quantile(0.05, stat.Empirical, samples, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, samples, nil)
	return s
}

// Returns a copy of data if it has at most n elements, else n elements drawn
// uniformly with replacement
func Sample(data []float64, n int, rng *fastrand.RNG) []float64 {
	if n <= 0 || len(data) <= n {
		return append([]float64(nil), data...)
	}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = data[rng.Uint32n(uint32(len(data)))]
	}
	return samples
}

// Statistics of one view of a scene
type ViewStats struct {
	View      int     `json:"view"`
	Disparity Summary `json:"disparity"`
	Depth     Summary `json:"depth"`
}

// Statistics of a scene
type SceneStats struct {
	Name   string            `json:"name"`
	Width  int               `json:"width"`
	Height int               `json:"height"`
	Calib  scene.Calibration `json:"calibration"`
	Views  [2]ViewStats      `json:"views"`
}

// Summarizes disparity and depth of both views of a scene
func OfScene(s *scene.Scene, sampleSize int, rng *fastrand.RNG) SceneStats {
	res := SceneStats{Name: s.Name, Width: s.Width(), Height: s.Height(), Calib: s.Calib}
	for i, v := range s.Views {
		disp := make([]float64, len(v.Disparity.Data))
		for j, d := range v.Disparity.Data {
			disp[j] = float64(d)
		}
		res.Views[i] = ViewStats{
			View:      i,
			Disparity: Summarize(disp, sampleSize, rng),
			Depth:     Summarize(warp.DepthMap(v.Disparity, s.Calib), sampleSize, rng),
		}
	}
	return res
}

// Hole coverage of a rendered frame
type FrameStats struct {
	ID        int     `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Cells     int     `json:"cells"`
	Holes     int     `json:"holes"`
	HoleRatio float64 `json:"holeRatio"`
}

func OfFrame(f *scene.Frame) FrameStats {
	holes := f.Holes()
	cells := len(f.Valid)
	ratio := 0.0
	if cells > 0 {
		ratio = float64(holes) / float64(cells)
	}
	return FrameStats{ID: f.ID, X: f.X, Y: f.Y, Cells: cells, Holes: holes, HoleRatio: ratio}
}

func (fs FrameStats) String() string {
	return fmt.Sprintf("frame %d at x=%.2f y=%.2f: %d of %d cells are holes (%.2f%%)",
		fs.ID, fs.X, fs.Y, fs.Holes, fs.Cells, 100*fs.HoleRatio)
}
