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
	"bytes"
	"math"
	"testing"

	"github.com/valyala/fastrand"

	"github.com/mlnoga/viewsynth/internal/scene"
)

func invalidDisparity(width, height int) *scene.Disparity {
	d := scene.NewDisparity(width, height)
	for i := range d.Data {
		if i&1 == 0 {
			d.Data[i] = float32(math.NaN())
		} else {
			d.Data[i] = float32(math.Inf(1))
		}
	}
	return d
}

func mustScene(t *testing.T, im0, im1 *scene.Image, d0, d1 *scene.Disparity, calib scene.Calibration) *scene.Scene {
	t.Helper()
	s, err := scene.NewScene("test", im0, im1, d0, d1, calib)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	return s
}

func randomScene(t *testing.T, rng *fastrand.RNG, width, height int) *scene.Scene {
	var ims [2]*scene.Image
	var ds [2]*scene.Disparity
	for v := 0; v < 2; v++ {
		ims[v] = scene.NewImage(width, height)
		for i := range ims[v].Pix {
			ims[v].Pix[i] = uint8(rng.Uint32n(256))
		}
		ds[v] = scene.NewDisparity(width, height)
		for i := range ds[v].Data {
			if rng.Uint32n(100) < 10 {
				ds[v].Data[i] = float32(math.NaN())
			} else {
				ds[v].Data[i] = float32(rng.Uint32n(800)) / 100
			}
		}
	}
	calib := scene.Calibration{Baseline: 0.2, Focal: 300, Doffs: 2}
	return mustScene(t, ims[0], ims[1], ds[0], ds[1], calib)
}

func TestIdentityShortcut(t *testing.T) {
	rng := &fastrand.RNG{}
	rng.Seed(1)
	s := randomScene(t, rng, 9, 7)

	for view := 0; view < 2; view++ {
		f, err := Render(s, 0, Position{X: float64(view)}, DefaultParams())
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !f.Identity {
			t.Errorf("view %d identity=%v; want true", view, f.Identity)
		}
		if !bytes.Equal(f.Image.Pix, s.Views[view].Image.Pix) {
			t.Errorf("view %d: frame differs from source view", view)
		}
		if f.Holes() != 0 {
			t.Errorf("view %d holes=%d; want 0", view, f.Holes())
		}
		f.Image.Pix[0] ^= 0xff
		if f.Image.Pix[0] == s.Views[view].Image.Pix[0] {
			t.Errorf("view %d: frame aliases source pixels", view)
		}
	}

	if f := Identity(s, 0, Position{X: 0, Y: 0.1}); f != nil {
		t.Errorf("identity at y=0.1 is %v; want nil", f)
	}
	if f := Identity(s, 0, Position{X: 0.5}); f != nil {
		t.Errorf("identity at x=0.5 is %v; want nil", f)
	}
}

func TestDepositTolerance(t *testing.T) {
	b := NewBuffers(1, 1)

	b.deposit(0, 100, 0, 0, 10, 1, 1)
	if b.Weight[0] != 1 || b.Z[0] != 10 || b.Color[0] != 100 {
		t.Errorf("reset: weight=%v z=%v color=%v; want 1 10 100", b.Weight[0], b.Z[0], b.Color[0])
	}

	b.deposit(0, 200, 0, 0, 10.5, 1, 1)
	if b.Weight[0] != 2 || b.Z[0] != 10 || b.Color[0] != 300 {
		t.Errorf("accumulate: weight=%v z=%v color=%v; want 2 10 300", b.Weight[0], b.Z[0], b.Color[0])
	}

	b.deposit(0, 50, 0, 0, 11.5, 1, 1)
	if b.Weight[0] != 2 || b.Color[0] != 300 {
		t.Errorf("drop: weight=%v color=%v; want 2 300", b.Weight[0], b.Color[0])
	}

	b.deposit(0, 0, 0, 0, 9.8, 0.5, 1)
	if b.Weight[0] != 0.5 || b.Z[0] != 9.8 || b.Color[0] != 0 {
		t.Errorf("closer reset: weight=%v z=%v color=%v; want 0.5 9.8 0", b.Weight[0], b.Z[0], b.Color[0])
	}
}

func TestWeightConservation(t *testing.T) {
	calib := scene.Calibration{Baseline: 1, Focal: 100, Doffs: 0.5}
	im := scene.NewImage(8, 8)
	d := invalidDisparity(8, 8)

	// Fully inside: all four taps in bounds
	d.Data[4*8+4] = 1
	views := [2]scene.View{{Image: im, Disparity: d}, {Image: im, Disparity: invalidDisparity(8, 8)}}
	b := Splat(views, calib, Position{X: 0.3, Y: 0.2}, DefaultTolerance)
	if sum := sumOf(b.Weight); math.Abs(sum-1) > 1e-12 {
		t.Errorf("interior weight sum=%v; want 1", sum)
	}

	// At the left border: target x=-0.3, only the right taps with weight 0.7 are in bounds
	d = invalidDisparity(8, 8)
	d.Data[0] = 1
	views[0].Disparity = d
	b = Splat(views, calib, Position{X: 0.3}, DefaultTolerance)
	if sum := sumOf(b.Weight); math.Abs(sum-0.7) > 1e-12 {
		t.Errorf("border weight sum=%v; want 0.7", sum)
	}
}

func sumOf(a []float64) float64 {
	s := 0.0
	for _, v := range a {
		s += v
	}
	return s
}

func TestDepthMonotonicity(t *testing.T) {
	rng := &fastrand.RNG{}
	rng.Seed(42)
	s := randomScene(t, rng, 21, 13)
	positions := []Position{{0.5, 0}, {-0.3, 0}, {1.3, 0}, {0.4, 0.25}, {0.8, -0.6}}

	for _, pos := range positions {
		b := Splat(s.Views, s.Calib, pos, DefaultTolerance)
		minZ := bruteForceMinDepth(s, pos)
		for i := range b.Weight {
			if math.IsInf(minZ[i], 1) {
				if b.Weight[i] != 0 {
					t.Errorf("%v cell %d weight=%v; want 0 without contributors", pos, i, b.Weight[i])
				}
				continue
			}
			if !(b.Weight[i] > 0) {
				t.Errorf("%v cell %d weight=%v; want >0", pos, i, b.Weight[i])
			}
			if b.Z[i] != minZ[i] {
				t.Errorf("%v cell %d z=%v; want %v", pos, i, b.Z[i], minZ[i])
			}
		}
	}
}

// Minimum depth of all positive-weight contributions per cell
func bruteForceMinDepth(s *scene.Scene, pos Position) []float64 {
	w, h := s.Width(), s.Height()
	minZ := make([]float64, w*h)
	for i := range minZ {
		minZ[i] = math.Inf(1)
	}
	for index, v := range s.Views {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				d := float64(v.Disparity.At(x, y))
				if !scene.IsValid(float32(d)) {
					continue
				}
				tx := float64(x) - d*(pos.X-float64(index))
				ty := float64(y) - pos.Y*(d+s.Calib.Doffs)
				fx, fy := tx-math.Floor(tx), ty-math.Floor(ty)
				depth := Depth(d, s.Calib)
				for dy := 0; dy < 2; dy++ {
					for dx := 0; dx < 2; dx++ {
						px, py := int(math.Floor(tx))+dx, int(math.Floor(ty))+dy
						wx, wy := 1-fx, 1-fy
						if dx == 1 {
							wx = fx
						}
						if dy == 1 {
							wy = fy
						}
						if px < 0 || px >= w || py < 0 || py >= h || wx*wy <= 0 {
							continue
						}
						minZ[py*w+px] = math.Min(minZ[py*w+px], depth)
					}
				}
			}
		}
	}
	return minZ
}

func TestParallelSplatEqualsSequential(t *testing.T) {
	rng := &fastrand.RNG{}
	rng.Seed(7)
	s := randomScene(t, rng, 23, 17)
	positions := []Position{{0.5, 0}, {-0.3, 0.2}, {1.3, -0.4}, {0.7, 1.1}, {0.2, -3}}

	for _, pos := range positions {
		want := Splat(s.Views, s.Calib, pos, DefaultTolerance)
		for _, threads := range []int{2, 3, 5, 17, 40} {
			got := SplatParallel(s.Views, s.Calib, pos, DefaultTolerance, threads)
			if !equalFloats(got.Color, want.Color) || !equalFloats(got.Weight, want.Weight) || !equalFloats(got.Z, want.Z) {
				t.Errorf("%v threads=%d: parallel splat differs from sequential", pos, threads)
			}
		}
	}
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}

// A flat scene with constant disparity 4 shifts view0 by -2 and view1 by +2 columns at x=0.5
func TestFlatSceneShift(t *testing.T) {
	const w, h, d = 16, 2, 4
	calib := scene.Calibration{Baseline: 1, Focal: 100, Doffs: 0}
	pos := Position{X: 0.5}

	im0, im1 := scene.NewImage(w, h), scene.NewImage(w, h)
	d0, d1 := invalidDisparity(w, h), invalidDisparity(w, h)
	for y := 0; y < h; y++ {
		for x := 4; x < 12; x++ {
			im0.SetRGB(x, y, uint8(10*x), 0, 0)
			d0.Data[y*w+x] = d
		}
		for x := 0; x < 8; x++ {
			im1.SetRGB(x, y, uint8(10*(x+d)), 0, 0)
			d1.Data[y*w+x] = d
		}
	}

	// view0 alone lands on columns [2,10)
	s := mustScene(t, im0, im1, d0, invalidDisparity(w, h), calib)
	f := SplatFrame(s, 0, pos, DefaultParams())
	checkShift(t, "view0", f, 2, 10, func(x int) uint8 { return uint8(10 * (x + 2)) })

	// view1 alone lands on columns [2,10) as well, shifted right from its own [0,8)
	s = mustScene(t, im0, im1, invalidDisparity(w, h), d1, calib)
	f = SplatFrame(s, 0, pos, DefaultParams())
	checkShift(t, "view1", f, 2, 10, func(x int) uint8 { return uint8(10 * (x + 2)) })

	// both views at equal depth blend within tolerance, doubling the weight
	s = mustScene(t, im0, im1, d0, d1, calib)
	b := Splat(s.Views, s.Calib, pos, DefaultTolerance)
	for x := 0; x < w; x++ {
		want := 0.0
		if x >= 2 && x < 10 {
			want = 2
		}
		if b.Weight[x] != want {
			t.Errorf("both views: weight at x=%d is %v; want %v", x, b.Weight[x], want)
		}
	}
	f = b.Normalize(0, pos)
	checkShift(t, "both views", f, 2, 10, func(x int) uint8 { return uint8(10 * (x + 2)) })
}

func checkShift(t *testing.T, name string, f *scene.Frame, lo, hi int, color func(x int) uint8) {
	t.Helper()
	for y := 0; y < f.Image.Height; y++ {
		for x := 0; x < f.Image.Width; x++ {
			valid := f.Valid[y*f.Image.Width+x]
			r, _, _ := f.Image.RGB(x, y)
			if x >= lo && x < hi {
				if !valid || r != color(x) {
					t.Errorf("%s: (%d,%d) valid=%v r=%d; want true %d", name, x, y, valid, r, color(x))
				}
			} else if valid || r != 0 {
				t.Errorf("%s: (%d,%d) valid=%v r=%d; want hole", name, x, y, valid, r)
			}
		}
	}
}

func TestOcclusion(t *testing.T) {
	calib := scene.Calibration{Baseline: 1, Focal: 100, Doffs: 0}
	im := scene.NewImage(8, 1)
	d := invalidDisparity(8, 1)
	im.SetRGB(2, 0, 20, 0, 0)
	d.Data[2] = 2 // depth 50
	im.SetRGB(3, 0, 30, 0, 0)
	d.Data[3] = 4 // depth 25
	im.SetRGB(5, 0, 50, 0, 0)
	d.Data[5] = 8 // depth 12.5

	s := mustScene(t, im, im, d, invalidDisparity(8, 1), calib)
	b := Splat(s.Views, s.Calib, Position{X: 0.5}, DefaultTolerance)
	if b.Z[1] != 12.5 || b.Weight[1] != 1 || b.Color[3] != 50 {
		t.Errorf("z=%v weight=%v r=%v; want 12.5 1 50", b.Z[1], b.Weight[1], b.Color[3])
	}
}

func TestAllInvalidScene(t *testing.T) {
	calib := scene.Calibration{Baseline: 1, Focal: 100, Doffs: 0}
	im := scene.NewImage(4, 4)
	for i := range im.Pix {
		im.Pix[i] = 200
	}
	s := mustScene(t, im, im, invalidDisparity(4, 4), invalidDisparity(4, 4), calib)

	pos := Position{X: 0.5, Y: 0.3}
	f := SplatFrame(s, 0, pos, DefaultParams())
	if f.Holes() != 16 {
		t.Errorf("holes after splat=%d; want 16", f.Holes())
	}
	FillHoles(f)
	if f.Holes() != 16 {
		t.Errorf("holes after fill=%d; want 16", f.Holes())
	}
	Denoise(f, DefaultMedianSize, 1)
	for i, v := range f.Image.Pix {
		if v != 0 {
			t.Fatalf("pix[%d]=%d; want 0", i, v)
		}
	}

	f, err := Render(s, 0, pos, DefaultParams())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if f.Holes() != 16 {
		t.Errorf("rendered holes=%d; want 16", f.Holes())
	}
}

func TestSingleValidRow(t *testing.T) {
	const w, h = 6, 5
	calib := scene.Calibration{Baseline: 1, Focal: 100, Doffs: 10}
	im := scene.NewImage(w, h)
	d := invalidDisparity(w, h)
	im.SetRGB(1, 2, 100, 10, 0)
	d.Data[2*w+1] = 0
	im.SetRGB(4, 2, 200, 40, 0)
	d.Data[2*w+4] = 0

	s := mustScene(t, im, im, d, invalidDisparity(w, h), calib)
	f := SplatFrame(s, 0, Position{X: 0.5}, DefaultParams())
	if f.Holes() != w*h-2 {
		t.Fatalf("holes after splat=%d; want %d", f.Holes(), w*h-2)
	}
	FillHorizontal(f)

	wantR := []uint8{100, 100, 133, 166, 200, 200}
	wantG := []uint8{10, 10, 20, 30, 40, 40}
	for x := 0; x < w; x++ {
		r, g, _ := f.Image.RGB(x, 2)
		if !f.Valid[2*w+x] || r != wantR[x] || g != wantG[x] {
			t.Errorf("x=%d valid=%v rg=%d,%d; want true %d,%d", x, f.Valid[2*w+x], r, g, wantR[x], wantG[x])
		}
	}
	if f.Holes() != w*(h-1) {
		t.Errorf("holes=%d; want %d", f.Holes(), w*(h-1))
	}
}

func TestFillVerticalEdgesOnly(t *testing.T) {
	const w, h = 3, 6
	f := scene.NewFrame(0, 0.5, 0.5, w, h)
	for x := 0; x < w; x++ {
		f.Image.SetRGB(x, 1, 10, 0, 0)
		f.Valid[1*w+x] = true
		f.Image.SetRGB(x, 4, 40, 0, 0)
		f.Valid[4*w+x] = true
	}
	FillVertical(f)

	want := []uint8{10, 10, 0, 0, 40, 40}
	for y := 0; y < h; y++ {
		r, _, _ := f.Image.RGB(1, y)
		if r != want[y] {
			t.Errorf("y=%d r=%d; want %d", y, r, want[y])
		}
	}
	if f.Valid[2*w] || f.Valid[3*w] {
		t.Errorf("interior rows became valid; want holes")
	}
}

func TestFillHolesIdempotent(t *testing.T) {
	rng := &fastrand.RNG{}
	rng.Seed(3)
	s := randomScene(t, rng, 19, 11)

	for _, pos := range []Position{{0.5, 0}, {1.3, 0}, {0.4, 0.7}, {0.6, -1.5}} {
		f := SplatFrame(s, 0, pos, DefaultParams())
		FillHoles(f)
		pix := append([]uint8(nil), f.Image.Pix...)
		valid := append([]bool(nil), f.Valid...)
		FillHoles(f)
		if !bytes.Equal(pix, f.Image.Pix) {
			t.Errorf("%v: second fill changed pixels", pos)
		}
		for i := range valid {
			if valid[i] != f.Valid[i] {
				t.Errorf("%v: second fill changed validity of cell %d", pos, i)
				break
			}
		}
	}
}

func TestDenoiseRemovesSalt(t *testing.T) {
	f := scene.NewFrame(0, 0.5, 0, 9, 9)
	for i := range f.Image.Pix {
		f.Image.Pix[i] = 50
	}
	f.Image.SetRGB(4, 4, 255, 255, 255)
	Denoise(f, DefaultMedianSize, 2)
	for i, v := range f.Image.Pix {
		if v != 50 {
			t.Fatalf("pix[%d]=%d; want 50", i, v)
		}
	}

	id := scene.NewFrameFromImage(0, 0, 0, scene.NewImage(3, 3))
	id.Identity = true
	id.Image.SetRGB(1, 1, 255, 0, 0)
	Denoise(id, DefaultMedianSize, 1)
	if r, _, _ := id.Image.RGB(1, 1); r != 255 {
		t.Errorf("identity frame r=%d; want 255", r)
	}
}

func TestRenderRejectsInvalidParams(t *testing.T) {
	rng := &fastrand.RNG{}
	rng.Seed(5)
	s := randomScene(t, rng, 4, 4)
	p := DefaultParams()
	p.Tolerance = math.NaN()
	if _, err := Render(s, 0, Position{X: 0.5}, p); err == nil {
		t.Errorf("NaN tolerance accepted; want error")
	}
}

func TestDepth(t *testing.T) {
	c := scene.Calibration{Baseline: 0.2, Focal: 1000, Doffs: 10}
	if got := Depth(30, c); math.Abs(got-5) > 1e-12 {
		t.Errorf("depth=%v; want 5", got)
	}
	if got := Depth(-10, c); !math.IsInf(got, 1) {
		t.Errorf("depth at zero denominator=%v; want +Inf", got)
	}
}
