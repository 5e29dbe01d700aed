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
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// One camera of the stereo pair: its color image and the disparity map aligned to it
type View struct {
	Image     *Image
	Disparity *Disparity
}

// A calibrated stereo pair. Views[0] is the left camera, Views[1] the right one.
type Scene struct {
	Name  string
	Views [2]View
	Calib Calibration
}

var ErrShapeMismatch = errors.New("shape mismatch")

// Assembles and validates a scene from already decoded parts
func NewScene(name string, im0, im1 *Image, disp0, disp1 *Disparity, calib Calibration) (*Scene, error) {
	s := &Scene{
		Name:  name,
		Views: [2]View{{Image: im0, Disparity: disp0}, {Image: im1, Disparity: disp1}},
		Calib: calib,
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Checks that all images and disparity maps share one shape, and the calibration is usable
func (s *Scene) Validate() error {
	for i, v := range s.Views {
		if v.Image == nil || v.Disparity == nil {
			return fmt.Errorf("view %d: missing image or disparity", i)
		}
		if v.Image.Width != v.Disparity.Width || v.Image.Height != v.Disparity.Height {
			return fmt.Errorf("%w: view %d image %dx%d vs disparity %dx%d", ErrShapeMismatch, i,
				v.Image.Width, v.Image.Height, v.Disparity.Width, v.Disparity.Height)
		}
		if len(v.Image.Pix) != v.Image.Width*v.Image.Height*3 || len(v.Disparity.Data) != v.Disparity.Width*v.Disparity.Height {
			return fmt.Errorf("%w: view %d buffer sizes do not match dimensions", ErrShapeMismatch, i)
		}
	}
	a, b := s.Views[0].Image, s.Views[1].Image
	if a.Width != b.Width || a.Height != b.Height {
		return fmt.Errorf("%w: view 0 is %s, view 1 is %s", ErrShapeMismatch, a.DimensionsToString(), b.DimensionsToString())
	}
	return s.Calib.Validate()
}

func (s *Scene) Width() int  { return s.Views[0].Image.Width }
func (s *Scene) Height() int { return s.Views[0].Image.Height }

// Reads a color image in any registered format
func ReadImage(fileName string) (*Image, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return FromImage(img), nil
}

// Loads a Middlebury style scene directory with im0.png, im1.png, disp0.pfm, disp1.pfm and calib.txt
func LoadScene(dir string) (*Scene, error) {
	im0, err := ReadImage(filepath.Join(dir, "im0.png"))
	if err != nil {
		return nil, err
	}
	im1, err := ReadImage(filepath.Join(dir, "im1.png"))
	if err != nil {
		return nil, err
	}
	disp0, err := ReadPFMFile(filepath.Join(dir, "disp0.pfm"))
	if err != nil {
		return nil, err
	}
	disp1, err := ReadPFMFile(filepath.Join(dir, "disp1.pfm"))
	if err != nil {
		return nil, err
	}
	calib, err := ReadCalibration(filepath.Join(dir, "calib.txt"))
	if err != nil {
		return nil, err
	}
	return NewScene(filepath.Base(filepath.Clean(dir)), im0, im1, disp0, disp1, calib)
}
