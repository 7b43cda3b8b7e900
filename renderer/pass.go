package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/inputs"
	"github.com/richinsley/goshadermate/pool"
	"github.com/richinsley/goshadermate/shader"
)

var samplerNames = [api.MaxChannels]string{"iChannel0", "iChannel1", "iChannel2", "iChannel3"}

// Pass is a compiled pass. Its targets are swapped every frame when it uses
// feedback and reallocated when its resolved size changes; the Pass itself
// lives as long as the pipeline.
type Pass struct {
	Decl api.Pass

	program  pool.Handle
	uniforms uniformTable
	blocks   map[string]graphics.UniformBlock
	statics  []staticUniform

	current  *RenderTarget
	previous *RenderTarget

	sources [api.MaxChannels]inputs.Source
	started [api.MaxChannels]float64
	created float64
}

func (ps *Pass) Name() string            { return ps.Decl.Name }
func (ps *Pass) Program() pool.Handle    { return ps.program }
func (ps *Pass) Current() *RenderTarget  { return ps.current }
func (ps *Pass) Previous() *RenderTarget { return ps.previous }

// Created is the pipeline time the pass was built at, the time origin of
// channels reading it.
func (ps *Pass) Created() float64 { return ps.created }

// Location returns the location of a declared uniform.
func (ps *Pass) Location(name string) (graphics.Location, bool) {
	loc, ok := ps.uniforms[name]
	return loc, ok
}

// UniformBlock returns a declared uniform block.
func (ps *Pass) UniformBlock(name string) (graphics.UniformBlock, bool) {
	b, ok := ps.blocks[name]
	return b, ok
}

// Source returns the external source loaded for a channel slot, or nil.
func (ps *Pass) Source(slot int) inputs.Source {
	if slot < 0 || slot >= len(ps.sources) {
		return nil
	}
	return ps.sources[slot]
}

func (ps *Pass) releaseTargets(pl *pool.Pool) {
	ps.current.release(pl)
	ps.previous.release(pl)
	ps.current, ps.previous = nil, nil
}

func (ps *Pass) release(pl *pool.Pool) {
	ps.releaseTargets(pl)
	for i, s := range ps.sources {
		if s != nil {
			s.Release()
			ps.sources[i] = nil
		}
	}
	pl.Unref(ps.program)
	ps.program = 0
}

func (p *Pipeline) shaderOptions(decl api.Pass) shader.Options {
	defines := append(append([]shader.Define(nil), p.opts.Defines...), decl.Defines...)
	return shader.Options{
		Caps:              p.caps,
		Defines:           defines,
		Loader:            p.includeLoader,
		Strict:            p.opts.StrictIncludes,
		Inject:            p.opts.Injections(),
		EnableDerivatives: p.opts.EnableDerivatives,
	}
}

func (p *Pipeline) includeLoader(ctx context.Context, path string) (string, error) {
	if text, ok := p.opts.Includes[path]; ok {
		return text, nil
	}
	if p.opts.IncludeLoader != nil {
		return p.opts.IncludeLoader(ctx, path)
	}
	return p.fetch.Text(ctx, path)
}

// buildPass fetches, preprocesses, compiles and introspects one declaration.
func (p *Pipeline) buildPass(ctx context.Context, decl api.Pass) (*Pass, error) {
	src, err := p.fetch.Source(ctx, decl.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: pass %s: %w", ErrSourceLoad, decl.Name, err)
	}
	frag, err := shader.Preprocess(ctx, src, p.shaderOptions(decl))
	if err != nil {
		if errors.Is(err, shader.ErrInclude) {
			return nil, fmt.Errorf("%w: pass %s: %w", ErrInclude, decl.Name, err)
		}
		return nil, fmt.Errorf("pass %s: %w", decl.Name, err)
	}
	if !p.alive.Load() {
		return nil, ErrDisposed
	}

	prog, err := p.dev.CompileProgram(shader.VertexSource(p.caps.API), frag)
	if err != nil {
		p.logCompileError(decl.Name, frag, err)
		return nil, fmt.Errorf("%w: pass %s: %w", ErrCompile, decl.Name, err)
	}
	ps := &Pass{
		Decl:     decl,
		program:  p.pool.Add(prog, graphics.KindProgram),
		uniforms: introspect(p.dev, prog),
		blocks:   blockTable(p.dev, prog),
		created:  p.clock.Time,
	}
	ps.statics, err = staticUniforms(decl.Name, decl.Uniforms, ps.uniforms, p.opts.StrictUniforms)
	if err != nil {
		ps.release(p.pool)
		return nil, err
	}
	return ps, nil
}

func (p *Pipeline) logCompileError(name, frag string, err error) {
	var ce *graphics.CompileError
	if !errors.As(err, &ce) {
		slog.Error("failed to create shader program", "pass", name, "error", err)
		return
	}
	d := shader.Diagnose(frag, ce.Log)
	attrs := []any{"pass", name, "stage", ce.Stage, "log", ce.Log, "line", d.Line}
	if p.opts.ShowExpandedOnError {
		attrs = append(attrs, "listing", "\n"+d.Listing)
	}
	slog.Error("failed to compile/link shader program, aborting this pass", attrs...)
}

// allocTargets gives an off-screen pass targets of the resolved size,
// reallocating only when the size changed. Screen passes hold none.
func (p *Pipeline) allocTargets(ps *Pass, canvasW, canvasH int) error {
	if ps.Decl.Screen {
		ps.releaseTargets(p.pool)
		return nil
	}
	w, h := ps.Decl.Size.Resolve(canvasW, canvasH)
	w, h = max(w, 1), max(h, 1)
	if ps.current != nil && ps.current.Width == w && ps.current.Height == h {
		return nil
	}
	ps.releaseTargets(p.pool)

	params := targetParams{float: ps.Decl.Float, depth: ps.Decl.Depth, filter: ps.Decl.Filter, wrap: ps.Decl.Wrap}
	cur, err := newRenderTarget(p.dev, p.pool, w, h, params)
	if err != nil {
		return fmt.Errorf("pass %s: %w", ps.Decl.Name, err)
	}
	if ps.Decl.Feedback {
		prev, err := newRenderTarget(p.dev, p.pool, w, h, params)
		if err != nil {
			cur.release(p.pool)
			return fmt.Errorf("pass %s: %w", ps.Decl.Name, err)
		}
		ps.previous = prev
	}
	ps.current = cur
	p.reallocs++
	slog.Debug("allocated pass targets", "pass", ps.Decl.Name, "width", w, "height", h, "format", cur.Format.String(), "feedback", ps.Decl.Feedback)
	return nil
}

// resolve returns the texture bound to a channel slot and its time origin.
// ok is false when the slot contributes no texture.
func (p *Pipeline) resolve(ps *Pass, slot int) (tex graphics.Object, target graphics.TextureTarget, w, h int, start float64, ok bool) {
	ch := ps.Decl.Channels[slot]
	if ch == nil {
		return 0, 0, 0, 0, 0, false
	}
	if ch.Kind == api.ChannelPass {
		src := p.byName[ch.Pass]
		if src == nil {
			return 0, 0, 0, 0, 0, false
		}
		t := src.current
		if ch.Previous && src.Decl.Feedback {
			t = src.previous
		}
		if t == nil {
			return 0, 0, 0, 0, 0, false
		}
		return p.pool.Object(t.Color), graphics.Texture2D, t.Width, t.Height, src.created, true
	}
	s := ps.sources[slot]
	if s == nil {
		return 0, 0, 0, 0, 0, false
	}
	w, h = s.Size()
	return p.pool.Object(s.Texture()), s.Target(), w, h, ps.started[slot], true
}

func (p *Pipeline) bindChannels(ps *Pass, now float64) {
	var times [api.MaxChannels]float32
	var res [api.MaxChannels * 3]float32
	for i := range ps.Decl.Channels {
		tex, target, w, h, start, ok := p.resolve(ps, i)
		// unset samplers read unit 0, so every declared one gets its own unit
		ps.uniforms.set(p.dev, samplerNames[i], graphics.Int1(int32(i)))
		if !ok {
			p.dev.BindTexture(i, graphics.Texture2D, 0)
			continue
		}
		p.dev.BindTexture(i, target, tex)
		times[i] = float32(now - start)
		res[i*3], res[i*3+1] = float32(w), float32(h)
	}
	ps.uniforms.set(p.dev, "iChannelTime", graphics.Float1v(times[:]...))
	ps.uniforms.set(p.dev, "iChannelResolution", graphics.Float3v(res[:]...))
}

func (p *Pipeline) draw(ps *Pass, fu *frameUniforms) {
	if ps.Decl.Feedback && ps.current != nil && ps.previous != nil {
		ps.current, ps.previous = ps.previous, ps.current
	}

	w, h := p.width, p.height
	if ps.Decl.Screen {
		p.dev.BindFramebuffer(0)
	} else {
		if ps.current == nil {
			return
		}
		p.dev.BindFramebuffer(p.pool.Object(ps.current.Framebuffer))
		w, h = ps.current.Width, ps.current.Height
	}
	p.dev.Viewport(0, 0, w, h)
	p.dev.UseProgram(p.pool.Object(ps.program))
	p.dev.Clear()

	ps.uniforms.bindBuiltins(p.dev, fu, w, h)
	p.bindChannels(ps, fu.info.Time)
	for _, u := range ps.statics {
		p.dev.SetUniform(u.loc, u.value)
	}

	p.dev.BindQuad(p.pool.Object(p.quad))
	p.dev.DrawArrays(0, shader.QuadVertexCount)
}
