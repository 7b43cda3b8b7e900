// Package renderer builds multipass pipelines from pass declarations and
// schedules their frames.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/inputs"
	"github.com/richinsley/goshadermate/options"
	"github.com/richinsley/goshadermate/pool"
	"github.com/richinsley/goshadermate/shader"
)

// Pipeline is a built set of passes and the scheduler driving them. Its
// methods must be called from the goroutine that owns the device.
type Pipeline struct {
	dev    graphics.Device
	canvas graphics.Context
	caps   graphics.Capabilities
	opts   options.Options
	pool   *pool.Pool
	fetch  *api.Fetcher

	passes []*Pass
	byName map[string]*Pass
	quad   pool.Handle

	clock    Clock
	stopped  bool
	disposed bool
	// alive is cleared by Dispose; loaders finishing later drop their results.
	alive    atomic.Bool
	buildErr error

	subs          subscribers
	ptr           pointer
	pendingResize bool
	width, height int
	reallocs      int
	unlisten      func()
	now           func() time.Time
}

// Start builds a pipeline for passes on opts.Device, drawing to opts.Canvas.
//
// Building is best effort: a pass that fails to build is logged and skipped,
// and the returned pipeline carries the joined errors, reports Usable() ==
// false and never draws. The caller must Dispose it either way. Start
// returns no pipeline when the environment is unusable, the declarations are
// invalid or ctx is cancelled.
func Start(ctx context.Context, passes []api.Pass, opts options.Options) (*Pipeline, error) {
	if opts.Device == nil || opts.Canvas == nil {
		return nil, fmt.Errorf("%w: a device and a canvas are required", ErrUnsupportedEnvironment)
	}
	decls, err := api.Normalize(passes)
	if err != nil {
		return nil, err
	}
	if opts.TimeScale == 0 {
		opts.TimeScale = 1
	}
	fetch := opts.Fetcher
	if fetch == nil {
		fetch = &api.Fetcher{}
	}

	opts.Canvas.MakeCurrent()
	p := &Pipeline{
		dev:    opts.Device,
		canvas: opts.Canvas,
		caps:   opts.Device.Capabilities(),
		opts:   opts,
		pool:   pool.New(opts.Device),
		fetch:  fetch,
		byName: make(map[string]*Pass),
		clock:  Clock{Running: !opts.StartPaused, FixedDelta: opts.FixedDelta, TimeScale: opts.TimeScale},
		now:    time.Now,
	}
	p.alive.Store(true)

	var errs []error
	for _, decl := range decls {
		ps, err := p.buildPass(ctx, decl)
		if ps != nil {
			p.passes = append(p.passes, ps)
			p.byName[decl.Name] = ps
		}
		if ctx.Err() != nil {
			p.Dispose()
			return nil, ctx.Err()
		}
		if err != nil {
			if !errors.Is(err, ErrCompile) {
				slog.Error("failed to build pass", "pass", decl.Name, "error", err)
			}
			errs = append(errs, err)
		}
	}

	if err := p.loadSources(ctx); err != nil {
		p.Dispose()
		return nil, err
	}

	w, h := opts.Canvas.FramebufferSize()
	errs = append(errs, p.resize(w, h))
	p.unlisten = opts.Canvas.Listen(inputHandler{p})
	p.clock.last, p.clock.started = opts.Canvas.Time(), true

	p.buildErr = errors.Join(errs...)
	if p.buildErr == nil {
		slog.Info("pipeline ready", "passes", len(p.passes), "api", p.caps.API.String())
	}
	return p, p.buildErr
}

type loaded struct {
	pass    *Pass
	slot    int
	pending inputs.Pending
}

// loadSources opens every external channel concurrently and uploads the
// results on the calling goroutine once all have settled. A source that
// fails to load leaves its channel without a texture.
func (p *Pipeline) loadSources(ctx context.Context) error {
	var g errgroup.Group
	results := make(chan loaded, len(p.passes)*api.MaxChannels)
	for _, ps := range p.passes {
		for i, ch := range ps.Decl.Channels {
			if ch == nil || !ch.External() {
				continue
			}
			g.Go(func() error {
				pending, err := inputs.Open(ctx, ch, p.fetch)
				if err != nil {
					slog.Warn("failed to load channel source", "pass", ps.Decl.Name, "channel", i, "kind", ch.Kind.String(), "error", err)
					return nil
				}
				if !p.alive.Load() {
					pending.Discard()
					return nil
				}
				results <- loaded{pass: ps, slot: i, pending: pending}
				return nil
			})
		}
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(results)
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		go func() {
			for r := range results {
				r.pending.Discard()
			}
		}()
		return ctx.Err()
	}

	for r := range results {
		if !p.alive.Load() {
			r.pending.Discard()
			continue
		}
		src, err := r.pending.Upload(p.dev, p.pool)
		if err != nil {
			slog.Warn("failed to upload channel source", "pass", r.pass.Decl.Name, "channel", r.slot, "error", err)
			continue
		}
		r.pass.sources[r.slot] = src
		r.pass.started[r.slot] = p.clock.Time
	}
	return nil
}

// resize resolves every pass target against a w x h canvas.
func (p *Pipeline) resize(w, h int) error {
	p.width, p.height = w, h
	var errs []error
	for _, ps := range p.passes {
		if err := p.allocTargets(ps, w, h); err != nil {
			slog.Error("failed to allocate pass targets", "pass", ps.Decl.Name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) ensureQuad() error {
	if p.quad != 0 {
		return nil
	}
	obj, err := p.dev.CreateQuad(shader.QuadVertices)
	if err != nil {
		return fmt.Errorf("failed to create quad: %w", err)
	}
	p.quad = p.pool.Add(obj, graphics.KindBuffer)
	return nil
}

// Usable reports whether every declared pass built and the pipeline is not disposed.
func (p *Pipeline) Usable() bool {
	return !p.disposed && p.buildErr == nil
}

// RenderFrame renders one frame for wall time now, in seconds.
func (p *Pipeline) RenderFrame(now float64) error {
	if p.disposed {
		return ErrDisposed
	}
	if p.buildErr != nil {
		return p.buildErr
	}
	if p.pendingResize {
		p.pendingResize = false
		w, h := p.canvas.FramebufferSize()
		if err := p.resize(w, h); err != nil {
			slog.Warn("resize left passes without targets", "error", err)
		}
	}
	if err := p.ensureQuad(); err != nil {
		return err
	}

	dt := p.clock.tick(now)
	info := p.clock.info(dt)
	p.subs.emit(BeforeFrame{info})
	if p.disposed {
		return ErrDisposed
	}

	for _, ps := range p.passes {
		for i, s := range ps.sources {
			if u, ok := s.(inputs.Updater); ok {
				if err := u.Update(); err != nil {
					slog.Warn("failed to update channel source", "pass", ps.Decl.Name, "channel", i, "error", err)
				}
			}
		}
	}

	fu := &frameUniforms{info: info, date: date(p.now()), pointer: p.ptr}
	for _, ps := range p.passes {
		p.draw(ps, fu)
	}
	p.clock.Frame++
	p.subs.emit(AfterFrame{info})
	return nil
}

// Run renders a frame per display refresh until the pipeline is stopped,
// the canvas closes or ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.disposed {
		return ErrDisposed
	}
	if p.buildErr != nil {
		return p.buildErr
	}
	p.stopped = false
	for !p.stopped {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.canvas.ShouldClose() {
			p.Stop()
			return nil
		}
		if err := p.RenderFrame(p.canvas.Time()); err != nil {
			return err
		}
		p.canvas.EndFrame()
	}
	return nil
}

// Step renders n frames now, whatever the running state. Time advances only
// when the pipeline is running.
func (p *Pipeline) Step(n int) error {
	for i := 0; i < n; i++ {
		if err := p.RenderFrame(p.canvas.Time()); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) Pause() {
	if !p.clock.Running {
		return
	}
	p.clock.Running = false
	p.subs.emit(Paused{p.clock.info(0)})
}

// Resume restarts the clock of a paused pipeline. A stopped pipeline stays
// stopped until Run is called again.
func (p *Pipeline) Resume() {
	if p.clock.Running || p.stopped {
		return
	}
	p.clock.Running = true
	p.subs.emit(Resumed{p.clock.info(0)})
}

// Stop ends Run after the current frame.
func (p *Pipeline) Stop() {
	if p.stopped {
		return
	}
	p.stopped = true
	p.subs.emit(Stopped{p.clock.info(0)})
}

func (p *Pipeline) SetTime(t float64)        { p.clock.Time = t }
func (p *Pipeline) SetTimeScale(s float64)   { p.clock.TimeScale = s }
func (p *Pipeline) SetFixedDelta(dt float64) { p.clock.FixedDelta = dt }

func (p *Pipeline) State() State {
	switch {
	case p.stopped:
		return StateStopped
	case p.clock.Running:
		return StateRunning
	}
	return StatePaused
}

// Clock returns a copy of the pipeline clock.
func (p *Pipeline) Clock() Clock { return p.clock }

// Subscribe registers fn for every event and returns its unsubscribe func.
func (p *Pipeline) Subscribe(fn func(Event)) (unsubscribe func()) {
	return p.subs.add(fn)
}

// Passes returns the built passes in declaration order.
func (p *Pipeline) Passes() []*Pass {
	return append([]*Pass(nil), p.passes...)
}

func (p *Pipeline) Pass(name string) (*Pass, bool) {
	ps, ok := p.byName[name]
	return ps, ok
}

// ReadPixels reads RGBA floats from the current target of a pass, or from
// the canvas for a screen pass. Rows are bottom first.
func (p *Pipeline) ReadPixels(pass string, x, y, w, h int) ([]float32, error) {
	if p.disposed {
		return nil, ErrDisposed
	}
	ps, ok := p.byName[pass]
	if !ok {
		return nil, fmt.Errorf("unknown pass %q", pass)
	}
	if ps.Decl.Screen {
		return p.dev.ReadPixels(0, x, y, w, h)
	}
	if ps.current == nil {
		return nil, fmt.Errorf("pass %q has no target", pass)
	}
	return p.dev.ReadPixels(p.pool.Object(ps.current.Framebuffer), x, y, w, h)
}

// Dispose stops the pipeline, removes its input listeners and releases every
// device object it owns. It is safe to call more than once and on a pipeline
// that failed to build.
func (p *Pipeline) Dispose() {
	if p.disposed {
		return
	}
	p.Stop()
	p.disposed = true
	p.alive.Store(false)
	if p.unlisten != nil {
		p.unlisten()
		p.unlisten = nil
	}
	for _, ps := range p.passes {
		ps.release(p.pool)
	}
	p.passes, p.byName = nil, nil
	p.pool.Unref(p.quad)
	p.quad = 0
	p.subs = subscribers{}
	if n := p.pool.Len(); n != 0 {
		slog.Warn("device objects still referenced after dispose", "count", n)
	}
}

// inputHandler feeds canvas events to the frame loop. Resizes are coalesced
// into one reallocation at the start of the next frame.
type inputHandler struct{ p *Pipeline }

func (ih inputHandler) PointerMoved(x, y float64) {
	ih.p.ptr.x, ih.p.ptr.y = x, y
}

func (ih inputHandler) PointerButton(down bool, x, y float64) {
	ih.p.ptr.down = down
	if down {
		ih.p.ptr.clickX, ih.p.ptr.clickY = x, y
	}
}

func (ih inputHandler) Resized(w, h int) {
	ih.p.pendingResize = true
}
