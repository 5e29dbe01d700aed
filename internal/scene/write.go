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
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/tiff"
)

// Output formats, selected by file suffix
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatTIFF Format = "tiff"
	FormatWebP Format = "webp"
)

var ErrUnknownFormat = errors.New("unknown image format")

// JPEG quality used for all lossy output
const JPEGQuality = 95

// Determines the output format from a file name suffix
func FormatFromFileName(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	case ".webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, fileName)
}

// MIME type for HTTP responses
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatTIFF:
		return "image/tiff"
	case FormatWebP:
		return "image/webp"
	}
	return "image/png"
}

// Writes an image to a file, creating parent directories as needed
func WriteFile(fileName string, img *Image) error {
	format, err := FormatFromFileName(fileName)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := Encode(writer, img, format); err != nil {
		return err
	}
	return writer.Flush()
}

// Encodes an image in the given format
func Encode(w io.Writer, img *Image, format Format) error {
	rgba := img.ToRGBA()
	switch format {
	case FormatPNG:
		return png.Encode(w, rgba)
	case FormatJPEG:
		return jpeg.Encode(w, rgba, &jpeg.Options{Quality: JPEGQuality})
	case FormatTIFF:
		return tiff.Encode(w, rgba, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatWebP:
		return nativewebp.Encode(w, rgba, nil)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Writes a calibration in calib.txt format
func WriteCalibration(w io.Writer, c Calibration) error {
	cam := fmt.Sprintf("[%g 0 0; 0 %g 0; 0 0 1]", c.Focal, c.Focal)
	_, err := fmt.Fprintf(w, "cam0=%s\ncam1=%s\ndoffs=%g\nbaseline=%g\nwidth=%d\nheight=%d\nndisp=%d\nvmin=%d\nvmax=%d\n",
		cam, cam, c.Doffs, c.Baseline, c.Width, c.Height, c.NDisp, c.VMin, c.VMax)
	return err
}

// Saves a scene in the directory layout read by LoadScene
func SaveScene(dir string, s *Scene) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i, v := range s.Views {
		if err := WriteFile(filepath.Join(dir, fmt.Sprintf("im%d.png", i)), v.Image); err != nil {
			return err
		}
		if err := writeToFile(filepath.Join(dir, fmt.Sprintf("disp%d.pfm", i)), func(w io.Writer) error {
			return WritePFM(w, v.Disparity)
		}); err != nil {
			return err
		}
	}
	return writeToFile(filepath.Join(dir, "calib.txt"), func(w io.Writer) error {
		return WriteCalibration(w, s.Calib)
	})
}

func writeToFile(fileName string, write func(w io.Writer) error) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		file.Close()
		return err
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
