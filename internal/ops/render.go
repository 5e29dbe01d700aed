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

package ops

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mlnoga/viewsynth/internal/scene"
	"github.com/mlnoga/viewsynth/internal/stats"
	"github.com/mlnoga/viewsynth/internal/sweep"
	"github.com/mlnoga/viewsynth/internal/warp"
)

var ErrNoScene = errors.New("no scene loaded")

// Optional evenly spaced horizontal positions, in addition to explicit ones
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Step  float64 `json:"step"`
}

// Splats the loaded scene at each position. Positions (0,0) and (1,0) yield
// copies of the source views. Takes zero inputs, produces one output per position
type OpWarp struct {
	OpBase
	Positions []warp.Position `json:"positions"`
	Range     *Range          `json:"range,omitempty"`
	Tolerance float64         `json:"tolerance"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpWarpDefault() }) } // register the operator for JSON decoding

func NewOpWarpDefault() *OpWarp { return NewOpWarp(nil, warp.DefaultTolerance) }

func NewOpWarp(positions []warp.Position, tolerance float64) *OpWarp {
	return &OpWarp{
		OpBase:    OpBase{Type: "warp", Active: true},
		Positions: positions,
		Tolerance: tolerance,
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpWarp) UnmarshalJSON(data []byte) error {
	type defaults OpWarp
	def := defaults(*NewOpWarpDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpWarp(def)
	return nil
}

// All positions, explicit ones first, then those of the range
func (op *OpWarp) AllPositions() ([]warp.Position, error) {
	all := append([]warp.Position(nil), op.Positions...)
	if op.Range != nil {
		xs, err := sweep.Positions(op.Range.Start, op.Range.End, op.Range.Step)
		if err != nil {
			return nil, err
		}
		for _, x := range xs {
			all = append(all, warp.Position{X: x})
		}
	}
	return all, nil
}

func (op *OpWarp) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	if !op.Active {
		return nil, nil
	}
	if c.Scene == nil {
		return nil, fmt.Errorf("%s operator: %w", op.Type, ErrNoScene)
	}
	positions, err := op.AllPositions()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%s operator without positions", op.Type)
	}
	p := warp.Params{Tolerance: op.Tolerance, Threads: max(1, c.MaxThreads/len(positions))}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s := c.Scene
	outs = make([]Promise, len(positions))
	for i, pos := range positions {
		outs[i] = func() (*scene.Frame, error) {
			if f := warp.Identity(s, i, pos); f != nil {
				c.Log.Infof("%d: Copied source view at %v", i, pos)
				return f, nil
			}
			f := warp.SplatFrame(s, i, pos, p)
			c.Log.Infof("%d: Splatted view at %v, %d holes", i, pos, f.Holes())
			return f, nil
		}
	}
	return outs, nil
}

// Fills disocclusion holes. Takes n inputs, produces n outputs
type OpFillHoles struct {
	OpUnaryBase
}

func init() { SetOperatorFactory(func() Operator { return NewOpFillHoles() }) } // register the operator for JSON decoding

func NewOpFillHoles() *OpFillHoles {
	op := OpFillHoles{OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "fillHoles", Active: true}}}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpFillHoles) UnmarshalJSON(data []byte) error {
	type defaults OpFillHoles
	def := defaults(*NewOpFillHoles())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpFillHoles(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpFillHoles) Apply(f *scene.Frame, c *Context) (*scene.Frame, error) {
	warp.FillHoles(f)
	return f, nil
}

// Median filters each channel. Takes n inputs, produces n outputs
type OpDenoise struct {
	OpUnaryBase
	Size int `json:"size"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpDenoiseDefault() }) } // register the operator for JSON decoding

func NewOpDenoiseDefault() *OpDenoise { return NewOpDenoise(warp.DefaultMedianSize) }

func NewOpDenoise(size int) *OpDenoise {
	op := OpDenoise{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "denoise", Active: size > 1}},
		Size:        size,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpDenoise) UnmarshalJSON(data []byte) error {
	type defaults OpDenoise
	def := defaults(*NewOpDenoiseDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpDenoise(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpDenoise) Apply(f *scene.Frame, c *Context) (*scene.Frame, error) {
	warp.Denoise(f, op.Size, 1)
	return f, nil
}

// Logs the hole coverage of each frame. Takes n inputs, produces n outputs
type OpHoleStats struct {
	OpUnaryBase
}

func init() { SetOperatorFactory(func() Operator { return NewOpHoleStats() }) } // register the operator for JSON decoding

func NewOpHoleStats() *OpHoleStats {
	op := OpHoleStats{OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "holeStats", Active: true}}}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpHoleStats) UnmarshalJSON(data []byte) error {
	type defaults OpHoleStats
	def := defaults(*NewOpHoleStats())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpHoleStats(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpHoleStats) Apply(f *scene.Frame, c *Context) (*scene.Frame, error) {
	c.Log.Infof("%d: %v", f.ID, stats.OfFrame(f))
	return f, nil
}

// The full rendering pipeline for the given scene directory and positions:
// load, splat, fill holes, denoise and optionally save
func NewOpRender(dir string, positions []warp.Position, p warp.Params, savePattern string) *OpSequence {
	seq := NewOpSequence(
		NewOpLoadScene(dir),
		NewOpWarp(positions, p.Tolerance),
		NewOpFillHoles(),
		NewOpDenoise(p.MedianSize),
	)
	if savePattern != "" {
		seq.Append(NewOpSave(savePattern))
	}
	return seq
}
