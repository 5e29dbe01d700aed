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
	"fmt"
	"strings"

	"github.com/mlnoga/viewsynth/internal/scene"
)

// Loads a stereo scene from a dataset directory into the context.
// Takes zero inputs and passes them through
type OpLoadScene struct {
	OpBase
	Dir string `json:"dir"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadSceneDefault() }) } // register the operator for JSON decoding

func NewOpLoadSceneDefault() *OpLoadScene { return NewOpLoadScene("") }

func NewOpLoadScene(dir string) *OpLoadScene {
	return &OpLoadScene{
		OpBase: OpBase{Type: "loadScene", Active: true},
		Dir:    dir,
	}
}

// Loads the scene right away, so later operators can rely on it when building promises
func (op *OpLoadScene) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	if !op.Active {
		return nil, nil
	}
	if strings.TrimSpace(op.Dir) == "" {
		return nil, fmt.Errorf("%s operator without directory", op.Type)
	}
	if err := c.checkPath(op.Dir); err != nil {
		return nil, err
	}

	s, err := scene.LoadScene(op.Dir)
	if err != nil {
		return nil, err
	}
	c.Scene = s
	c.Log.Infof("Loaded scene %s with %dx%d pixels, %v", s.Name, s.Width(), s.Height(), s.Calib)
	return nil, nil
}
