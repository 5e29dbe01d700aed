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

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
)

type sample struct {
	Dataset string
	Threads int
	hidden  bool
}

func TestStructFields(t *testing.T) {
	f := StructFields(&sample{Dataset: "artroom1", Threads: 4, hidden: true})
	if len(f) != 2 || f["Dataset"] != "artroom1" || f["Threads"] != 4 {
		t.Errorf("fields=%v; want Dataset and Threads", f)
	}
	if f := StructFields(42); len(f) != 0 {
		t.Errorf("fields of non-struct=%v; want empty", f)
	}
	var nilPtr *sample
	if f := StructFields(nilPtr); len(f) != 0 {
		t.Errorf("fields of nil pointer=%v; want empty", f)
	}
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestFileHookWritesJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := log.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(&fileHook{writer: nopCloser{buf}, formatter: &log.JSONFormatter{}})
	logger.WithField("frame", 3).Info("rendered")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if entry["msg"] != "rendered" || entry["frame"] != 3.0 {
		t.Errorf("entry=%v; want msg and frame", entry)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if err := Setup("loud"); err == nil {
		t.Errorf("unknown level accepted; want error")
	}
	if err := Setup("info"); err != nil {
		t.Errorf("Setup(info): %v", err)
	}
}
