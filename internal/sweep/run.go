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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mlnoga/viewsynth/internal/scene"
)

// Consumer of rendered frames, called in ascending frame order
type Encoder interface {
	WriteFrame(f *scene.Frame) error
	Close() error
}

// Approximate working memory of rendering one frame in bytes: source depth
// maps, splat buffers, the frame with its mask and the denoised copy
func FrameMemory(width, height int) int64 {
	cells := int64(width) * int64(height)
	return cells * (2*8 + 5*8 + 3 + 1 + 3)
}

// Number of frames to render concurrently, limited by threads and by the
// memory budget in MB. At least one.
func LookAhead(threads int, budgetMB int64, width, height int) int {
	n := threads
	perFrame := FrameMemory(width, height)
	if budgetMB > 0 && perFrame > 0 {
		if byMem := int(budgetMB * 1024 * 1024 / perFrame); byMem < n {
			n = byMem
		}
	}
	if n < 1 {
		n = 1
	}
	return n
}

type frameResult struct {
	frame *scene.Frame
	err   error
}

// Renders all frames of the sweep and writes them to the encoder in ascending
// order. With workers>1, up to that many frames are rendered ahead concurrently,
// sharing the sweep's threads among them. The first render or encoder error
// aborts the sweep and is returned. Context cancellation takes effect between frames.
// The encoder is not closed.
func Run(ctx context.Context, sw *Sweep, enc Encoder, workers int) error {
	if workers > sw.Len() {
		workers = sw.Len()
	}
	if workers <= 1 {
		return runSequential(ctx, sw, enc)
	}

	p := sw.Params
	p.Threads = max(1, p.Threads/workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := sw.Len()
	results := make([]chan frameResult, n)
	for i := range results {
		results[i] = make(chan frameResult, 1)
	}
	slots := make(chan struct{}, workers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				for ; i < n; i++ {
					results[i] <- frameResult{err: ctx.Err()}
				}
				return
			}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				f, err := sw.render(i, p)
				results[i] <- frameResult{frame: f, err: err}
			}(i)
		}
	}()

	var err error
	for i := 0; i < n; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		r := <-results[i]
		if r.err != nil {
			err = r.err
			break
		}
		if err = enc.WriteFrame(r.frame); err != nil {
			err = fmt.Errorf("writing frame %d: %w", i, err)
			break
		}
		<-slots
	}
	cancel()
	wg.Wait()
	return err
}

func runSequential(ctx context.Context, sw *Sweep, enc Encoder) error {
	it := sw.Frames()
	for {
		f, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.WriteFrame(f); err != nil {
			return fmt.Errorf("writing frame %d: %w", f.ID, err)
		}
	}
}
