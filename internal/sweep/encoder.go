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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"

	"github.com/mlnoga/viewsynth/internal/scene"
)

var (
	ErrUnsupportedOutput = errors.New("unsupported sweep output")
	ErrFrameSize         = errors.New("frame size does not match encoder")
)

// Settings of the external ffmpeg encoder
type FFmpegOptions struct {
	Binary string   // executable name or path, default "ffmpeg"
	Codec  string   // video codec, default "libx264"
	Extra  []string // additional output arguments placed before the file name
}

// Selects an encoder by output name. Names containing %d write one still
// image per frame, .webp writes an animated WebP, and .mp4, .mov, .mkv and
// .avi pipe frames to ffmpeg.
func NewEncoder(ctx context.Context, path string, width, height int, fps float64, opts FFmpegOptions) (Encoder, error) {
	if strings.Contains(path, "%d") {
		return NewSequenceEncoder(path, width, height)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".mkv", ".avi":
		return NewFFmpegEncoder(ctx, path, width, height, fps, opts)
	case ".webp":
		return NewWebPEncoder(path, width, height, fps)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOutput, path)
}

func checkSize(f *scene.Frame, width, height int) error {
	if f.Image.Width != width || f.Image.Height != height {
		return fmt.Errorf("%w: frame %d is %dx%d, encoder expects %dx%d", ErrFrameSize,
			f.ID, f.Image.Width, f.Image.Height, width, height)
	}
	return nil
}

// Pipes raw rgb24 frames into an ffmpeg process
type FFmpegEncoder struct {
	Path   string
	width  int
	height int
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

// Arguments for encoding raw rgb24 frames from stdin into the given file.
// Odd dimensions are padded to even ones as required by yuv420p.
func ffmpegArgs(path string, width, height int, fps float64, opts FFmpegOptions) []string {
	codec := opts.Codec
	if codec == "" {
		codec = "libx264"
	}
	args := []string{
		"-y",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", fmt.Sprintf("%g", fps),
		"-i", "pipe:0",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
	}
	args = append(args, opts.Extra...)
	return append(args, path)
}

// Starts ffmpeg writing to the given video file
func NewFFmpegEncoder(ctx context.Context, path string, width, height int, fps float64, opts FFmpegOptions) (*FFmpegEncoder, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("invalid frame rate %g", fps)
	}
	binary := opts.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	e := &FFmpegEncoder{Path: path, width: width, height: height}
	e.cmd = exec.CommandContext(ctx, binary, ffmpegArgs(path, width, height, fps, opts)...)
	e.cmd.Stderr = &e.stderr
	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	e.stdin = stdin
	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", binary, err)
	}
	return e, nil
}

func (e *FFmpegEncoder) WriteFrame(f *scene.Frame) error {
	if err := checkSize(f, e.width, e.height); err != nil {
		return err
	}
	if _, err := e.stdin.Write(f.Image.Pix); err != nil {
		return fmt.Errorf("ffmpeg: %w", err) // stderr is reported by Close, once the process has exited
	}
	return nil
}

// Closes the pipe and waits for ffmpeg to finish the file
func (e *FFmpegEncoder) Close() error {
	var errs []error
	if err := e.stdin.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stdin: %w", err))
	}
	if err := e.cmd.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("waiting for ffmpeg: %w: %s", err, strings.TrimSpace(e.stderr.String())))
	}
	return errors.Join(errs...)
}

// Collects frames and writes them as one lossless animated WebP on Close
type WebPEncoder struct {
	Path     string
	width    int
	height   int
	duration uint
	images   []image.Image
}

func NewWebPEncoder(path string, width, height int, fps float64) (*WebPEncoder, error) {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return nil, fmt.Errorf("invalid frame rate %g", fps)
	}
	duration := uint(math.Round(1000 / fps))
	if duration < 1 {
		duration = 1
	}
	return &WebPEncoder{Path: path, width: width, height: height, duration: duration}, nil
}

func (e *WebPEncoder) WriteFrame(f *scene.Frame) error {
	if err := checkSize(f, e.width, e.height); err != nil {
		return err
	}
	e.images = append(e.images, f.Image.ToRGBA())
	return nil
}

// Number of frames collected so far
func (e *WebPEncoder) Len() int {
	return len(e.images)
}

// Encodes the collected frames into an infinitely looping animation
func (e *WebPEncoder) Encode(w io.Writer) error {
	if len(e.images) == 0 {
		return fmt.Errorf("%s: no frames to encode", e.Path)
	}
	ani := &nativewebp.Animation{
		Images:    e.images,
		Durations: make([]uint, len(e.images)),
		Disposals: make([]uint, len(e.images)),
	}
	for i := range ani.Durations {
		ani.Durations[i] = e.duration
	}
	return nativewebp.EncodeAll(w, ani, nil)
}

func (e *WebPEncoder) Close() error {
	if err := os.MkdirAll(filepath.Dir(e.Path), 0755); err != nil {
		return err
	}
	f, err := os.Create(e.Path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := e.Encode(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	e.images = nil
	return f.Close()
}

// Writes each frame as a still image. The file name pattern receives the frame number via %d
type SequenceEncoder struct {
	Pattern string
	width   int
	height  int
	Written []string
}

func NewSequenceEncoder(pattern string, width, height int) (*SequenceEncoder, error) {
	if _, err := scene.FormatFromFileName(pattern); err != nil {
		return nil, err
	}
	return &SequenceEncoder{Pattern: pattern, width: width, height: height}, nil
}

func (e *SequenceEncoder) WriteFrame(f *scene.Frame) error {
	if err := checkSize(f, e.width, e.height); err != nil {
		return err
	}
	name := fmt.Sprintf(e.Pattern, f.ID)
	if err := scene.WriteFile(name, f.Image); err != nil {
		return err
	}
	e.Written = append(e.Written, name)
	return nil
}

func (e *SequenceEncoder) Close() error {
	return nil
}
