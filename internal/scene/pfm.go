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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Portable float map. Header is "Pf" (gray) or "PF" (color), width and height,
// and a scale whose sign gives the byte order (negative=little endian).
// Rows are stored bottom to top.

var ErrInvalidPFM = errors.New("invalid PFM")

func ReadPFMFile(fileName string) (*Disparity, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	d, err := ReadPFM(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return d, nil
}

// Reads a PFM. For color files only the first channel is kept.
func ReadPFM(r *bufio.Reader) (*Disparity, error) {
	magic, err := readToken(r)
	if err != nil {
		return nil, err
	}
	channels := 0
	switch magic {
	case "Pf":
		channels = 1
	case "PF":
		channels = 3
	default:
		return nil, fmt.Errorf("%w: magic %q", ErrInvalidPFM, magic)
	}

	var dims [2]int
	for i := range dims {
		tok, err := readToken(r)
		if err != nil {
			return nil, err
		}
		if dims[i], err = strconv.Atoi(tok); err != nil || dims[i] <= 0 {
			return nil, fmt.Errorf("%w: dimension %q", ErrInvalidPFM, tok)
		}
	}
	tok, err := readToken(r)
	if err != nil {
		return nil, err
	}
	scale, err := strconv.ParseFloat(tok, 64)
	if err != nil || scale == 0 {
		return nil, fmt.Errorf("%w: scale %q", ErrInvalidPFM, tok)
	}
	var order binary.ByteOrder = binary.BigEndian
	if scale < 0 {
		order = binary.LittleEndian
	}

	width, height := dims[0], dims[1]
	raw := make([]float32, width*height*channels)
	if err := binary.Read(r, order, raw); err != nil {
		return nil, fmt.Errorf("%w: reading %dx%dx%d samples: %v", ErrInvalidPFM, width, height, channels, err)
	}

	d := NewDisparity(width, height)
	for y := 0; y < height; y++ {
		src := raw[(height-1-y)*width*channels:]
		dst := d.Data[y*width : (y+1)*width]
		for x := range dst {
			dst[x] = src[x*channels]
		}
	}
	return d, nil
}

// Writes a grayscale little-endian PFM
func WritePFM(w io.Writer, d *Disparity) error {
	if _, err := fmt.Fprintf(w, "Pf\n%d %d\n-1\n", d.Width, d.Height); err != nil {
		return err
	}
	for y := d.Height - 1; y >= 0; y-- {
		if err := binary.Write(w, binary.LittleEndian, d.Data[y*d.Width:(y+1)*d.Width]); err != nil {
			return err
		}
	}
	return nil
}

// Reads a whitespace-delimited header token and consumes the single delimiter after it
func readToken(r *bufio.Reader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			return "", fmt.Errorf("%w: truncated header", ErrInvalidPFM)
		}
		if isSpace(b) {
			if len(buf) == 0 {
				continue
			}
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
