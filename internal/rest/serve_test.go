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

package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastrand"

	"github.com/mlnoga/viewsynth/internal/scene"
	"github.com/mlnoga/viewsynth/internal/stats"
	"github.com/mlnoga/viewsynth/internal/warp"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) (*Server, *scene.Scene, string) {
	t.Helper()
	rng := &fastrand.RNG{}
	rng.Seed(3)
	w, h := 10, 6
	im0, im1 := scene.NewImage(w, h), scene.NewImage(w, h)
	for i := range im0.Pix {
		im0.Pix[i], im1.Pix[i] = uint8(rng.Uint32n(256)), uint8(rng.Uint32n(256))
	}
	d0, d1 := scene.NewDisparity(w, h), scene.NewDisparity(w, h)
	for i := range d0.Data {
		d0.Data[i], d1.Data[i] = 1, 1
	}
	s, err := scene.NewScene("tiny", im0, im1, d0, d1, scene.Calibration{Baseline: 1, Focal: 8})
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	dir := filepath.Join(t.TempDir(), "tiny")
	if err := scene.SaveScene(dir, s); err != nil {
		t.Fatalf("SaveScene: %v", err)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	srv := NewServer(log, warp.DefaultParams(), 2, 0)
	srv.AnyPath = true
	return srv, s, dir
}

func post(srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	var data []byte
	switch b := body.(type) {
	case string:
		data = []byte(b)
	default:
		data, _ = json.Marshal(b)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pong") {
		t.Errorf("ping=%d %s; want 200 pong", rec.Code, rec.Body.String())
	}
}

func TestIndex(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("index=%d %s; want 200 text/html", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestWarpIdentity(t *testing.T) {
	srv, s, dir := testServer(t)
	rec := post(srv, "/api/v1/warp", gin.H{"dataset": dir, "x": 0, "y": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d %s; want 200", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type=%s; want image/png", ct)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	got := scene.FromImage(img)
	if !bytes.Equal(got.Pix, s.Views[0].Image.Pix) {
		t.Errorf("identity view differs from view0")
	}
}

func TestWarpNovelView(t *testing.T) {
	srv, s, dir := testServer(t)
	rec := post(srv, "/api/v1/warp", gin.H{"dataset": dir, "x": 0.5, "y": 0.1, "format": "jpg", "medianSize": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d %s; want 200", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type=%s; want image/jpeg", ct)
	}
	if rec.Header().Get("X-Holes") != "0" {
		t.Errorf("holes=%s; want 0", rec.Header().Get("X-Holes"))
	}
	if srv.scenes[dir] == nil || srv.scenes[dir].Width() != s.Width() {
		t.Errorf("scene not cached")
	}
}

func TestWarpErrors(t *testing.T) {
	srv, _, dir := testServer(t)
	for _, tc := range []struct {
		name string
		body interface{}
		want int
	}{
		{"missing dataset", gin.H{"x": 0.5}, http.StatusBadRequest},
		{"malformed", `{"dataset":`, http.StatusBadRequest},
		{"negative tolerance", gin.H{"dataset": dir, "x": 0.5, "tolerance": -1}, http.StatusBadRequest},
		{"unknown format", gin.H{"dataset": dir, "x": 0.5, "format": "gif"}, http.StatusBadRequest},
		{"missing scene", gin.H{"dataset": filepath.Join(dir, "nope")}, http.StatusInternalServerError},
	} {
		if rec := post(srv, "/api/v1/warp", tc.body); rec.Code != tc.want {
			t.Errorf("%s: status=%d %s; want %d", tc.name, rec.Code, rec.Body.String(), tc.want)
		}
	}

	srv.AnyPath = false
	if rec := post(srv, "/api/v1/warp", gin.H{"dataset": "/etc", "x": 0.5}); rec.Code != http.StatusForbidden {
		t.Errorf("absolute path: status=%d; want %d", rec.Code, http.StatusForbidden)
	}
}

func TestStats(t *testing.T) {
	srv, _, dir := testServer(t)
	rec := post(srv, "/api/v1/stats", gin.H{"dataset": dir})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d %s; want 200", rec.Code, rec.Body.String())
	}
	var st stats.SceneStats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if st.Name != "tiny" || st.Width != 10 || st.Height != 6 {
		t.Errorf("stats=%+v; want tiny 10x6", st)
	}
	if d := st.Views[0].Disparity; d.Valid != 60 || d.Min != 1 || d.Max != 1 {
		t.Errorf("disparity=%+v; want 60 values equal to 1", d)
	}
	if z := st.Views[1].Depth; z.Mean != 8 {
		t.Errorf("depth mean=%v; want 8", z.Mean)
	}
}

func TestSweep(t *testing.T) {
	srv, _, dir := testServer(t)
	rec := post(srv, "/api/v1/sweep", gin.H{"dataset": dir, "start": 0, "end": 1, "step": 0.25})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d %s; want 200", rec.Code, rec.Body.String())
	}
	body := rec.Body.Bytes()
	if len(body) < 12 || string(body[:4]) != "RIFF" || string(body[8:12]) != "WEBP" {
		t.Errorf("body is not a WebP container")
	}

	rec = post(srv, "/api/v1/sweep", gin.H{"dataset": dir, "start": 0, "end": 100, "step": 0.1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized sweep: status=%d; want 400", rec.Code)
	}
	rec = post(srv, "/api/v1/sweep", gin.H{"dataset": dir, "start": 1, "end": 0, "step": 0.1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reversed sweep: status=%d; want 400", rec.Code)
	}
}

func TestPipeline(t *testing.T) {
	srv, _, dir := testServer(t)
	out := filepath.Join(t.TempDir(), "p_%d.png")
	body := fmt.Sprintf(`{"type":"seq","steps":[
		{"type":"loadScene","dir":%q},
		{"type":"warp","positions":[{"x":0.25},{"x":0.75}]},
		{"type":"fillHoles"},
		{"type":"denoise","size":3},
		{"type":"save","filePattern":%q}]}`, dir, out)
	rec := post(srv, "/api/v1/pipeline", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d; want 200", rec.Code)
	}
	if text := rec.Body.String(); !strings.Contains(text, "Rendered 2 frames") {
		t.Errorf("log=%s; want 2 rendered frames", text)
	}
	for i := 0; i < 2; i++ {
		if _, err := scene.ReadImage(fmt.Sprintf(out, i)); err != nil {
			t.Errorf("frame %d: %v", i, err)
		}
	}

	if rec := post(srv, "/api/v1/pipeline", `{"type":"stack"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown operator: status=%d; want 400", rec.Code)
	}
}
