package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/gldevice"
	"github.com/richinsley/goshadermate/glfwcontext"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/headless"
	"github.com/richinsley/goshadermate/options"
	"github.com/richinsley/goshadermate/renderer"
	"github.com/richinsley/goshadermate/translator"
)

func init() {
	runtime.LockOSThread()
}

type flags struct {
	config         string
	shader         string
	width, height  int
	paused         bool
	fixedDelta     float64
	timeScale      float64
	strictUniforms bool
	translate      bool
	watch          bool
	frames         int
	headless       bool
	screenshot     string
	verbose        bool
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.config, "config", "", "Pass configuration file (.json, .yaml or .toml)")
	flag.StringVar(&f.shader, "shader", "", "Single fragment shader rendered to the screen")
	flag.IntVar(&f.width, "width", 1280, "Width of the window")
	flag.IntVar(&f.height, "height", 720, "Height of the window")
	flag.BoolVar(&f.paused, "paused", false, "Start with the clock paused")
	flag.Float64Var(&f.fixedDelta, "fixed-delta", 0, "Fixed frame delta in seconds (0 measures wall time)")
	flag.Float64Var(&f.timeScale, "time-scale", 0, "Clock speed multiplier (0 keeps the configured value)")
	flag.BoolVar(&f.strictUniforms, "strict-uniforms", false, "Fail passes that declare unknown uniforms")
	flag.BoolVar(&f.translate, "translate", false, "Translate GLSL ES 3.00 shaders to desktop GLSL")
	flag.BoolVar(&f.watch, "watch", false, "Rebuild when the configuration or shader files change")
	flag.IntVar(&f.frames, "frames", 0, "Render this many frames in a hidden window, then exit")
	flag.BoolVar(&f.headless, "headless", false, "Render -frames on an EGL pbuffer instead of a hidden window")
	flag.StringVar(&f.screenshot, "screenshot", "", "Save the last rendered frame to this image file")
	flag.BoolVar(&f.verbose, "v", false, "Verbose logging")
	flag.Parse()
	return f
}

// project is a loaded set of pass declarations and the files they came from.
type project struct {
	passes   []api.Pass
	settings api.Settings
	dir      string
	files    []string
}

func loadProject(f *flags) (*project, error) {
	switch {
	case f.config != "":
		cfg, err := api.Load(f.config)
		if err != nil {
			return nil, err
		}
		pr := &project{passes: cfg.Passes, settings: cfg.Options, dir: cfg.Dir, files: []string{f.config}}
		fetch := &api.Fetcher{BaseDir: cfg.Dir}
		for _, p := range cfg.Passes {
			if api.IsInline(p.Source) {
				continue
			}
			if path, ok := fetch.Path(p.Source); ok {
				pr.files = append(pr.files, path)
			}
		}
		return pr, nil
	case f.shader != "":
		return &project{
			passes: []api.Pass{api.SinglePass(filepath.Base(f.shader))},
			dir:    filepath.Dir(f.shader),
			files:  []string{f.shader},
		}, nil
	}
	return nil, errors.New("one of -config or -shader is required")
}

func (f *flags) options(pr *project, canvas graphics.Context, dev *gldevice.Device) options.Options {
	opts := options.Default()
	opts.Apply(pr.settings)
	if f.paused {
		opts.StartPaused = true
	}
	if f.fixedDelta > 0 {
		opts.FixedDelta = f.fixedDelta
	}
	if f.timeScale != 0 {
		opts.TimeScale = f.timeScale
	}
	if f.strictUniforms {
		opts.StrictUniforms = true
	}
	opts.Canvas = canvas
	opts.Device = dev
	opts.Fetcher = &api.Fetcher{BaseDir: pr.dir, UseCache: true}
	return opts
}

func main() {
	f := parseFlags()

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(f); err != nil {
		slog.Error("goshadermate failed", "error", err)
		os.Exit(1)
	}
}

func run(f *flags) error {
	pr, err := loadProject(f)
	if err != nil {
		flag.Usage()
		return err
	}

	v := &viewer{flags: f}
	if f.headless {
		if f.frames <= 0 {
			return errors.New("-headless needs -frames")
		}
		if v.canvas, err = headless.New(f.width, f.height); err != nil {
			return err
		}
	} else {
		if err := glfwcontext.InitGraphics(); err != nil {
			return fmt.Errorf("failed to initialize GLFW: %w", err)
		}
		defer glfwcontext.TerminateGraphics()

		v.win, err = glfwcontext.New(glfwcontext.Config{
			Width:        f.width,
			Height:       f.height,
			Visible:      f.frames == 0,
			SwapInterval: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create window: %w", err)
		}
		v.canvas = v.win
	}
	defer v.canvas.Shutdown()

	var tr *translator.Translator
	if f.translate {
		if tr, err = translator.Shared(); err != nil {
			return err
		}
	}
	if v.dev, err = gldevice.New(tr); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	v.pipeline, err = renderer.Start(ctx, pr.passes, f.options(pr, v.canvas, v.dev))
	if v.pipeline == nil {
		return err
	}
	defer func() { v.pipeline.Dispose() }()
	if err != nil {
		if !f.watch {
			return err
		}
		slog.Error("pipeline failed to build; waiting for changes", "error", err)
	}
	if v.win != nil {
		v.bindKeys()
	}

	if f.frames > 0 {
		return v.renderFrames(f.frames)
	}
	if f.watch {
		return v.watch(ctx, pr)
	}
	if err := v.pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if f.screenshot != "" {
		if err := v.pipeline.RenderFrame(v.canvas.Time()); err != nil {
			return err
		}
		return v.saveScreenshot(f.screenshot)
	}
	return nil
}

// viewer drives the current pipeline from the window.
type viewer struct {
	flags  *flags
	canvas graphics.Context
	// win is nil on a headless canvas
	win      *glfwcontext.Context
	dev      *gldevice.Device
	pipeline *renderer.Pipeline
}

func (v *viewer) bindKeys() {
	v.win.RegisterKeyCallback(glfw.KeySpace, func() {
		if v.pipeline.State() == renderer.StateRunning {
			v.pipeline.Pause()
		} else {
			v.pipeline.Resume()
		}
	})
	v.win.RegisterKeyCallback(glfw.KeyRight, func() {
		dt := v.pipeline.Clock().FixedDelta
		if dt <= 0 {
			dt = 1.0 / 60
		}
		v.pipeline.SetTime(v.pipeline.Clock().Time + dt)
		if err := v.pipeline.Step(1); err != nil {
			slog.Warn("step failed", "error", err)
		}
	})
	v.win.RegisterKeyCallback(glfw.KeyR, func() {
		v.pipeline.SetTime(0)
	})
}

func (v *viewer) renderFrames(n int) error {
	for i := 0; i < n; i++ {
		if err := v.pipeline.Step(1); err != nil {
			return err
		}
		if i < n-1 {
			v.canvas.EndFrame()
		}
	}
	if v.flags.screenshot != "" {
		return v.saveScreenshot(v.flags.screenshot)
	}
	return nil
}
