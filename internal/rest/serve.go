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

// Package rest exposes view rendering, sweeps, scene statistics and operator
// pipelines over HTTP.
package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fastrand"

	"github.com/mlnoga/viewsynth/internal/ops"
	"github.com/mlnoga/viewsynth/internal/scene"
	"github.com/mlnoga/viewsynth/internal/stats"
	"github.com/mlnoga/viewsynth/internal/sweep"
	"github.com/mlnoga/viewsynth/internal/warp"
	"github.com/mlnoga/viewsynth/web"
)

// Upper limit on frames of a sweep rendered into a single response
const MaxSweepFrames = 256

type Server struct {
	Log        logrus.FieldLogger
	Params     warp.Params // defaults for requests which leave settings out
	MaxThreads int
	MemoryMB   int64
	AnyPath    bool // allow absolute dataset paths and parent directories

	mu     sync.Mutex
	scenes map[string]*scene.Scene
}

func NewServer(log logrus.FieldLogger, p warp.Params, maxThreads int, memoryMB int64) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		Log:        log,
		Params:     p,
		MaxThreads: max(1, maxThreads),
		MemoryMB:   memoryMB,
		scenes:     map[string]*scene.Scene{},
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)
	r.GET("/", getIndex)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/stats", s.postStats)
			v1.POST("/warp", s.postWarp)
			v1.POST("/sweep", s.postSweep)
			v1.POST("/pipeline", s.postPipeline)
		}
	}
	return r
}

// Listens on the given address until the server fails
func (s *Server) Serve(addr string) error {
	s.Log.Infof("Listening on http://%s", addr)
	return s.Router().Run(addr)
}

func (s *Server) logRequests(c *gin.Context) {
	c.Next()
	s.Log.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"status": c.Writer.Status(),
	}).Debug("request")
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Maps errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, ops.ErrPathNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, scene.ErrShapeMismatch), errors.Is(err, scene.ErrInvalidCalibration),
		errors.Is(err, scene.ErrInvalidPFM):
		return http.StatusUnprocessableEntity
	case errors.Is(err, warp.ErrInvalidParams), errors.Is(err, scene.ErrUnknownFormat),
		errors.Is(err, sweep.ErrInvalidRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusOf(err), gin.H{"error": err.Error()})
}

func (s *Server) newContext(log logrus.FieldLogger) *ops.Context {
	oc := ops.NewContext(log)
	oc.MaxThreads = s.MaxThreads
	oc.AnyPath = s.AnyPath
	if s.MemoryMB > 0 {
		oc.SweepMemoryMB = int(s.MemoryMB)
	}
	return oc
}

// Loads a scene through the operator layer, which enforces path restrictions,
// and caches it for later requests
func (s *Server) loadScene(dataset string) (*scene.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.scenes[dataset]; ok {
		return sc, nil
	}
	oc := s.newContext(s.Log)
	if _, err := ops.Run(ops.NewOpLoadScene(dataset), oc); err != nil {
		return nil, err
	}
	s.scenes[dataset] = oc.Scene
	return oc.Scene, nil
}

// Render settings of a request, with server defaults for missing values
type renderArgs struct {
	Dataset    string   `json:"dataset" binding:"required"`
	Tolerance  *float64 `json:"tolerance"`
	MedianSize *int     `json:"medianSize"`
}

func (a renderArgs) params(defaults warp.Params, threads int) warp.Params {
	p := defaults
	if a.Tolerance != nil {
		p.Tolerance = *a.Tolerance
	}
	if a.MedianSize != nil {
		p.MedianSize = *a.MedianSize
	}
	p.Threads = threads
	return p
}

type postStatsArgs struct {
	Dataset    string `json:"dataset" binding:"required"`
	SampleSize int    `json:"sampleSize"`
}

func (s *Server) postStats(c *gin.Context) {
	var args postStatsArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.SampleSize <= 0 {
		args.SampleSize = stats.DefaultSampleSize
	}
	sc, err := s.loadScene(args.Dataset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rng := &fastrand.RNG{}
	rng.Seed(1)
	c.JSON(http.StatusOK, stats.OfScene(sc, args.SampleSize, rng))
}

type postWarpArgs struct {
	renderArgs
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Format string  `json:"format"`
}

// Renders a single view and returns the encoded image
func (s *Server) postWarp(c *gin.Context) {
	var args postWarpArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	format := scene.FormatPNG
	if args.Format != "" {
		var err error
		if format, err = scene.FormatFromFileName("view." + args.Format); err != nil {
			abortWithError(c, err)
			return
		}
	}
	sc, err := s.loadScene(args.Dataset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	pos := warp.Position{X: args.X, Y: args.Y}
	f, err := warp.Render(sc, 0, pos, args.params(s.Params, s.MaxThreads))
	if err != nil {
		abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := scene.Encode(&buf, f.Image, format); err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("X-Holes", fmt.Sprint(f.Holes()))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

type postSweepArgs struct {
	renderArgs
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Step  float64 `json:"step"`
	FPS   float64 `json:"fps"`
}

// Renders a horizontal sweep and returns it as an animated WebP
func (s *Server) postSweep(c *gin.Context) {
	var args postSweepArgs
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.FPS == 0 {
		args.FPS = 10
	}
	xs, err := sweep.Positions(args.Start, args.End, args.Step)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(xs) > MaxSweepFrames {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%d frames exceed the limit of %d", len(xs), MaxSweepFrames)})
		return
	}
	sc, err := s.loadScene(args.Dataset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	sw, err := sweep.New(sc, args.Start, args.End, args.Step, args.params(s.Params, s.MaxThreads), s.Log)
	if err != nil {
		abortWithError(c, err)
		return
	}
	enc, err := sweep.NewWebPEncoder("", sc.Width(), sc.Height(), args.FPS)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	workers := sweep.LookAhead(s.MaxThreads, s.MemoryMB, sc.Width(), sc.Height())
	if err := sweep.Run(c.Request.Context(), sw, enc, workers); err != nil {
		abortWithError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := enc.Encode(&buf); err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, scene.FormatWebP.ContentType(), buf.Bytes())
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Runs an operator pipeline given as JSON, streaming log output as plain text
func (s *Server) postPipeline(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := ops.UnmarshalOperator(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := c.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err := printArgs(logWriter, "Arguments:\n", "\n", op); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	log := logrus.New()
	log.SetOutput(logWriter)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	frames, err := ops.Run(op, s.newContext(log))
	if err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	} else {
		fmt.Fprintf(logWriter, "Rendered %d frames\n", len(frames))
	}
	logWriter.Flush()
}
