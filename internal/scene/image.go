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
	"fmt"
	"image"
	"image/color"
)

// An 8-bit RGB image. Pixels are packed as R,G,B triples, rows top to bottom.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// Creates a black image of the given size
func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// Converts any decoded Go image into a packed RGB image. Alpha is ignored.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	img := NewImage(b.Dx(), b.Dy())
	switch s := src.(type) {
	case *image.RGBA:
		for y := 0; y < img.Height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+img.Width*4]
			out := img.Pix[y*img.Width*3 : (y+1)*img.Width*3]
			for x := 0; x < img.Width; x++ {
				out[x*3+0] = row[x*4+0]
				out[x*3+1] = row[x*4+1]
				out[x*3+2] = row[x*4+2]
			}
		}
	case *image.NRGBA:
		for y := 0; y < img.Height; y++ {
			row := s.Pix[y*s.Stride : y*s.Stride+img.Width*4]
			out := img.Pix[y*img.Width*3 : (y+1)*img.Width*3]
			for x := 0; x < img.Width; x++ {
				out[x*3+0] = row[x*4+0]
				out[x*3+1] = row[x*4+1]
				out[x*3+2] = row[x*4+2]
			}
		}
	default:
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				img.SetRGB(x, y, c.R, c.G, c.B)
			}
		}
	}
	return img
}

// Returns the offset of the red sample of pixel (x,y) in Pix
func (img *Image) Offset(x, y int) int {
	return (y*img.Width + x) * 3
}

func (img *Image) RGB(x, y int) (r, g, b uint8) {
	o := img.Offset(x, y)
	return img.Pix[o], img.Pix[o+1], img.Pix[o+2]
}

func (img *Image) SetRGB(x, y int, r, g, b uint8) {
	o := img.Offset(x, y)
	img.Pix[o], img.Pix[o+1], img.Pix[o+2] = r, g, b
}

// Returns a deep copy of the image
func (img *Image) Clone() *Image {
	return &Image{
		Width:  img.Width,
		Height: img.Height,
		Pix:    append([]uint8(nil), img.Pix...),
	}
}

// Converts to an opaque Go image for the standard encoders
func (img *Image) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+img.Width*4]
		in := img.Pix[y*img.Width*3 : (y+1)*img.Width*3]
		for x := 0; x < img.Width; x++ {
			row[x*4+0] = in[x*3+0]
			row[x*4+1] = in[x*3+1]
			row[x*4+2] = in[x*3+2]
			row[x*4+3] = 255
		}
	}
	return out
}

func (img *Image) DimensionsToString() string {
	return fmt.Sprintf("%dx%dx3", img.Width, img.Height)
}

// A rendered view. Cells with Valid[i]==false are holes and hold black pixels.
type Frame struct {
	ID       int     // Sequential frame number, for log output and file name patterns
	X        float64 // Horizontal position, 0=view0, 1=view1
	Y        float64 // Vertical position as a multiple of the baseline
	Image    *Image
	Valid    []bool
	Identity bool // Frame is an unmodified copy of a source view
}

// Creates a frame where every cell is a hole
func NewFrame(id int, x, y float64, width, height int) *Frame {
	return &Frame{
		ID:    id,
		X:     x,
		Y:     y,
		Image: NewImage(width, height),
		Valid: make([]bool, width*height),
	}
}

// Creates a frame from a copy of the given image with all cells valid
func NewFrameFromImage(id int, x, y float64, img *Image) *Frame {
	valid := make([]bool, img.Width*img.Height)
	for i := range valid {
		valid[i] = true
	}
	return &Frame{ID: id, X: x, Y: y, Image: img.Clone(), Valid: valid}
}

// Number of hole cells
func (f *Frame) Holes() int {
	n := 0
	for _, v := range f.Valid {
		if !v {
			n++
		}
	}
	return n
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame %d at x=%.2f y=%.2f %s holes=%d", f.ID, f.X, f.Y, f.Image.DimensionsToString(), f.Holes())
}
