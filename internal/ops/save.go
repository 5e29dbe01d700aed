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
	"fmt"
	"strings"

	"github.com/mlnoga/viewsynth/internal/scene"
)

// Saves each frame under a given filename, with pattern expansion for %d based on the frame id.
// Takes n inputs, produces n outputs (the materialized but unchanged inputs)
type OpSave struct {
	OpUnaryBase
	FilePattern string `json:"filePattern"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("") }

func NewOpSave(filenamePattern string) *OpSave {
	op := OpSave{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "save", Active: filenamePattern != ""}},
		FilePattern: filenamePattern,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpSave) UnmarshalJSON(data []byte) error {
	type defaults OpSave
	def := defaults(*NewOpSaveDefault())
	def.Active = true
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpSave(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// File name for a frame
func (op *OpSave) FileName(f *scene.Frame) string {
	if strings.Contains(op.FilePattern, "%d") {
		return fmt.Sprintf(op.FilePattern, f.ID)
	}
	return op.FilePattern
}

func (op *OpSave) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if op.Active {
		if err := c.checkPath(op.FilePattern); err != nil {
			return nil, err
		}
		if _, err := scene.FormatFromFileName(op.FilePattern); err != nil {
			return nil, err
		}
		if len(ins) > 1 && !strings.Contains(op.FilePattern, "%d") {
			return nil, fmt.Errorf("%s operator needs a %%d pattern to save %d frames", op.Type, len(ins))
		}
	}
	return op.OpUnaryBase.MakePromises(ins, c)
}

func (op *OpSave) Apply(f *scene.Frame, c *Context) (result *scene.Frame, err error) {
	if !op.Active || op.FilePattern == "" {
		return f, nil
	}
	fileName := op.FileName(f)
	c.Log.Infof("%d: Writing %s pixel image to %s", f.ID, f.Image.DimensionsToString(), fileName)
	if err := scene.WriteFile(fileName, f.Image); err != nil {
		return nil, fmt.Errorf("%d: error writing to file %s: %w", f.ID, fileName, err)
	}
	return f, nil
}
