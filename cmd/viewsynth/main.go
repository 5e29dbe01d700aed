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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/klauspost/cpuid"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fastrand"

	"github.com/mlnoga/viewsynth/internal/config"
	"github.com/mlnoga/viewsynth/internal/logging"
	"github.com/mlnoga/viewsynth/internal/ops"
	"github.com/mlnoga/viewsynth/internal/rest"
	"github.com/mlnoga/viewsynth/internal/scene"
	"github.com/mlnoga/viewsynth/internal/stats"
	"github.com/mlnoga/viewsynth/internal/sweep"
	"github.com/mlnoga/viewsynth/internal/warp"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var configFile = flag.String("config", "", "read settings from YAML `file`, overridden by VIEWSYNTH_* environment variables and flags")
var logFile = flag.String("log", "", "save log output to `file` in addition to stderr")
var logLevel = flag.String("loglevel", "", "log level, one of debug, info, warn, error. Default info")

var dataset = flag.String("dataset", "", "scene directory with im0.png, im1.png, disp0.pfm, disp1.pfm and calib.txt")
var out = flag.String("out", "", "save rendered view to `file`. Default results/<dataset>_x<x>_y<y>.png")
var video = flag.String("video", "", "save sweep to `file`: .mp4/.mov/.mkv/.avi via ffmpeg, .webp animation, or a %d pattern for stills. Default results/<dataset>_sweep_<start>_<end>.mp4")
var depth = flag.String("depth", "", "save colorized depth map of view0 to `file`")

var x = flag.Float64("x", 0.5, "horizontal position, 0=left view, 1=right view, values outside extrapolate")
var y = flag.Float64("y", 0, "vertical position in multiples of the baseline")

var start = flag.Float64("start", -0.3, "first horizontal position of the sweep")
var end = flag.Float64("end", 1.3, "last horizontal position of the sweep, inclusive")
var step = flag.Float64("step", 0.1, "approximate spacing of sweep positions")
var fps = flag.Float64("fps", 10, "frame rate of the sweep video")

var tolerance = flag.Float64("tolerance", warp.DefaultTolerance, "depth difference below which splats blend instead of occluding")
var median = flag.Int("median", warp.DefaultMedianSize, "median filter window size, 0 or 1=no denoising")
var threads = flag.Int("threads", 0, "worker threads, 0=all cores")

var anyPath = flag.Bool("anypath", false, "serve: allow absolute paths and parent directories in requests")
var setuid = flag.Int("setuid", -1, "serve: change to this user id after startup, -1=keep")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `viewsynth Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (warp|sweep|stats|serve|pipeline|legal|version) [dataset|pipeline.json]

Commands:
  warp     Render the view at -x, -y
  sweep    Render a horizontal sweep from -start to -end into a video
  stats    Show disparity and depth statistics, and hole coverage at -x, -y
  serve    Serve the REST API and web viewer
  pipeline Run a JSON operator pipeline from file
  legal    Show license and attribution information
  version  Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}
	if err := run(args[0], args[1:]); err != nil {
		log.Errorf("Error: %s", err.Error())
		os.Exit(-1)
	}
}

func run(cmd string, args []string) error {
	startTime := time.Now()
	switch cmd {
	case "legal":
		cmdLegal()
		return nil
	case "version":
		fmt.Printf("Version %s\n", version)
		fmt.Printf("%s, %d physical cores, %d logical cores, AVX2 %v\n",
			cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.AVX2())
		return nil
	case "help", "?":
		flag.Usage()
		return nil
	case "warp", "sweep", "stats", "serve", "pipeline":
	default:
		flag.Usage()
		return fmt.Errorf("unknown command '%s'", cmd)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.LogFile != "" {
		closer, err := logging.AlsoToFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("unable to open logfile '%s': %w", cfg.LogFile, err)
		}
		defer closer.Close()
	}
	log.Infof("viewsynth %s on %s with %d threads and %d MB memory budget",
		version, cpuid.CPU.BrandName, cfg.Threads, cfg.MemoryMB)
	log.WithFields(logging.StructFields(cfg)).Debug("Configuration")

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "warp":
		err = cmdWarp(cfg, args)
	case "sweep":
		err = cmdSweep(ctx, cfg, args)
	case "stats":
		err = cmdStats(cfg, args)
	case "serve":
		err = cmdServe(cfg)
	case "pipeline":
		err = cmdPipeline(cfg, args)
	}
	if err != nil {
		return err
	}

	log.Infof("Done after %v", time.Since(startTime))

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			return fmt.Errorf("could not create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			return fmt.Errorf("could not write allocation profile: %w", err)
		}
	}
	return nil
}

// Loads the configuration, then applies explicitly set flags on top
func loadConfig() (config.Config, error) {
	cfg, err := config.GetConfig(*configFile)
	if err != nil {
		return cfg, err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log":
			cfg.LogFile = *logFile
		case "loglevel":
			cfg.LogLevel = *logLevel
		case "dataset":
			cfg.Dataset = *dataset
		case "tolerance":
			cfg.Tolerance = *tolerance
		case "median":
			cfg.Median = median
		case "threads":
			if *threads > 0 {
				cfg.Threads = *threads
			}
		case "start":
			cfg.Sweep.Start = start
		case "end":
			cfg.Sweep.End = end
		case "step":
			cfg.Sweep.Step = *step
		case "fps":
			cfg.Sweep.FPS = *fps
		}
	})
	return cfg, cfg.Params().Validate()
}

// Dataset directory from the first argument, or from flags and configuration
func datasetDir(cfg config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Dataset != "" {
		return cfg.Dataset, nil
	}
	return "", errors.New("no dataset given")
}

func loadScene(cfg config.Config, args []string) (*scene.Scene, error) {
	dir, err := datasetDir(cfg, args)
	if err != nil {
		return nil, err
	}
	s, err := scene.LoadScene(dir)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded scene %s with %dx%d pixels, %v", s.Name, s.Width(), s.Height(), s.Calib)
	if *depth != "" {
		img := scene.ColorizeDepth(warp.DepthMap(s.Views[0].Disparity, s.Calib), s.Width(), s.Height())
		log.Infof("Writing depth map to %s", *depth)
		if err := scene.WriteFile(*depth, img); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func cmdWarp(cfg config.Config, args []string) error {
	s, err := loadScene(cfg, args)
	if err != nil {
		return err
	}
	pos := warp.Position{X: *x, Y: *y}
	fileName := *out
	if fileName == "" {
		fileName = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_x%.2f_y%.2f.png", s.Name, pos.X, pos.Y))
	}
	if _, err := scene.FormatFromFileName(fileName); err != nil {
		return err
	}

	p := cfg.Params()
	log.WithFields(logging.StructFields(p)).Infof("Rendering view at %v", pos)
	f, err := warp.Render(s, 0, pos, p)
	if err != nil {
		return err
	}
	log.Infof("Writing %s pixel image to %s", f.Image.DimensionsToString(), fileName)
	return scene.WriteFile(fileName, f.Image)
}

func cmdSweep(ctx context.Context, cfg config.Config, args []string) error {
	s, err := loadScene(cfg, args)
	if err != nil {
		return err
	}
	first, last := *cfg.Sweep.Start, *cfg.Sweep.End
	fileName := *video
	if fileName == "" {
		fileName = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_sweep_%.2f_%.2f.mp4", s.Name, first, last))
	}

	sw, err := sweep.New(s, first, last, cfg.Sweep.Step, cfg.Params(), log.StandardLogger())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	enc, err := sweep.NewEncoder(ctx, fileName, s.Width(), s.Height(), cfg.Sweep.FPS,
		sweep.FFmpegOptions{Binary: cfg.FFmpeg.Binary, Codec: cfg.FFmpeg.Codec})
	if err != nil {
		return err
	}

	workers := sweep.LookAhead(cfg.Threads, cfg.MemoryMB, s.Width(), s.Height())
	log.Infof("Sweeping %d frames from x=%.2f to x=%.2f into %s, %d at a time", sw.Len(), first, last, fileName, workers)
	runErr := sweep.Run(ctx, sw, enc, workers)
	closeErr := enc.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

type statsReport struct {
	Scene stats.SceneStats `json:"scene"`
	View  *stats.FrameStats `json:"view,omitempty"` // hole coverage before filling
}

func cmdStats(cfg config.Config, args []string) error {
	s, err := loadScene(cfg, args)
	if err != nil {
		return err
	}
	rng := &fastrand.RNG{}
	rng.Seed(uint32(time.Now().UnixNano()))
	report := statsReport{Scene: stats.OfScene(s, stats.DefaultSampleSize, rng)}
	for _, v := range report.Scene.Views {
		log.Infof("View %d disparity %v", v.View, v.Disparity)
		log.Infof("View %d depth %v", v.View, v.Depth)
	}

	pos := warp.Position{X: *x, Y: *y}
	if warp.Identity(s, 0, pos) == nil {
		fs := stats.OfFrame(warp.SplatFrame(s, 0, pos, cfg.Params()))
		log.Info(fs)
		report.View = &fs
	}
	return printJSON(os.Stdout, report)
}

func printJSON(w io.Writer, v interface{}) error {
	m, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", m)
	return err
}

func cmdServe(cfg config.Config) error {
	if err := rest.MakeSandbox(cfg.Server.Sandbox, *setuid); err != nil {
		return err
	}
	srv := rest.NewServer(log.StandardLogger(), cfg.Params(), cfg.Threads, cfg.MemoryMB)
	srv.AnyPath = *anyPath
	return srv.Serve(fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port))
}

func cmdPipeline(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("pipeline needs exactly one JSON file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	op, err := ops.UnmarshalOperator(data)
	if err != nil {
		return err
	}
	if m, err := json.MarshalIndent(op, "", "  "); err == nil {
		log.Infof("Running pipeline with these settings:\n%s", string(m))
	}

	c := ops.NewContext(log.StandardLogger())
	c.MaxThreads = cfg.Threads
	c.AnyPath = true
	frames, err := ops.Run(op, c)
	if err != nil {
		return err
	}
	log.Infof("Rendered %d frames", len(frames))
	return nil
}
