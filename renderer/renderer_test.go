package renderer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/graphics/softgpu"
	"github.com/richinsley/goshadermate/options"
)

func init() {
	softgpu.RegisterKernel("render.red", func(f *softgpu.Fragment) [4]float32 {
		return [4]float32{1, 0, 0, 1}
	})
	softgpu.RegisterKernel("render.copy", func(f *softgpu.Fragment) [4]float32 {
		u, v := f.UV()
		return f.Sample("iChannel0", u, v)
	})
	softgpu.RegisterKernel("render.second", func(f *softgpu.Fragment) [4]float32 {
		u, v := f.UV()
		return f.Sample("iChannel1", u, v)
	})
	softgpu.RegisterKernel("render.accumulate", func(f *softgpu.Fragment) [4]float32 {
		u, v := f.UV()
		base := f.Sample("iChannel0", u, v)[0]
		if f.Int("iFrame") == 0 {
			base = f.Float("u_start")
		}
		return [4]float32{base + f.Float("u_inc"), 0, 0, 1}
	})
	softgpu.RegisterKernel("render.builtins", func(f *softgpu.Fragment) [4]float32 {
		return [4]float32{f.Float("iTime"), float32(f.Int("iFrame")), f.Vec("iMouse")[2], f.Vec("iResolution")[0]}
	})
	softgpu.RegisterKernel("render.channels", func(f *softgpu.Fragment) [4]float32 {
		res := f.Vec("iChannelResolution")
		return [4]float32{res[0], res[1], f.Vec("iChannelTime")[0], 1}
	})
}

const (
	redSource      = "uniform vec3 iResolution;\n#pragma kernel render.red\n"
	copySource     = "uniform sampler2D iChannel0;\n#pragma kernel render.copy\n"
	secondSource   = "uniform sampler2D iChannel0;\nuniform sampler2D iChannel1;\n#pragma kernel render.second\n"
	accumSource    = "uniform sampler2D iChannel0;\nuniform int iFrame;\nuniform float u_start;\nuniform float u_inc;\n#pragma kernel render.accumulate\n"
	builtinSource  = "uniform float iTime;\nuniform int iFrame;\nuniform vec4 iMouse;\nuniform vec3 iResolution;\n#pragma kernel render.builtins\n"
	channelsSource = "uniform sampler2D iChannel0;\nuniform float iChannelTime[4];\nuniform vec3 iChannelResolution[4];\n#pragma kernel render.channels\n"
)

type env struct {
	dev     *softgpu.Device
	surface *softgpu.Surface
	opts    options.Options
}

func newEnv(w, h int) *env {
	dev := softgpu.New(graphics.Capabilities{API: graphics.APIGLES3})
	s := softgpu.NewSurface(dev, w, h)
	opts := options.Default()
	opts.Device = dev
	opts.Canvas = s
	opts.Fetcher = &api.Fetcher{Preload: map[string]string{}}
	return &env{dev: dev, surface: s, opts: opts}
}

func (e *env) start(t *testing.T, passes ...api.Pass) *Pipeline {
	t.Helper()
	p, err := Start(context.Background(), passes, e.opts)
	require.NoError(t, err)
	require.True(t, p.Usable())
	t.Cleanup(p.Dispose)
	return p
}

func passRef(name string, prev bool) *api.Channel {
	return &api.Channel{Kind: api.ChannelPass, Pass: name, Previous: prev}
}

func assertSolid(t *testing.T, px []float32, want [4]float32) {
	t.Helper()
	require.NotEmpty(t, px)
	for i := 0; i < len(px); i += 4 {
		require.InDeltaSlice(t, want[:], px[i:i+4], 1e-3, "pixel %d", i/4)
	}
}

func TestRedPassThroughToScreen(t *testing.T) {
	e := newEnv(8, 6)
	p := e.start(t,
		api.Pass{Name: "A", Source: redSource, Size: api.Fixed(64, 64)},
		api.Pass{Name: "Image", Source: copySource, Screen: true, Channels: [4]*api.Channel{passRef("A", false)}},
	)
	a, ok := p.Pass("A")
	require.True(t, ok)
	require.NotNil(t, a.Current())
	assert.Nil(t, a.Previous())
	assert.Equal(t, 64, a.Current().Width)

	require.NoError(t, p.Step(1))
	px, err := p.ReadPixels("Image", 0, 0, 8, 6)
	require.NoError(t, err)
	assertSolid(t, px, [4]float32{1, 0, 0, 1})
	assert.Zero(t, e.dev.DrawErrors)
	assert.Zero(t, e.dev.FeedbackHazards)
}

func TestSingleShaderIsPromotedToScreen(t *testing.T) {
	e := newEnv(4, 4)
	decl := api.SinglePass(redSource)
	decl.Screen = false
	p := e.start(t, decl)
	a, _ := p.Pass("A")
	assert.True(t, a.Decl.Screen)
	assert.Nil(t, a.Current())
}

func TestFeedbackAccumulates(t *testing.T) {
	e := newEnv(4, 4)
	p := e.start(t, api.Pass{
		Name:     "A",
		Source:   accumSource,
		Size:     api.Fixed(2, 2),
		Feedback: true,
		Float:    true,
		Channels: [4]*api.Channel{passRef("A", true)},
		Uniforms: []api.UniformDecl{
			{Name: "u_start", Type: "1f", Values: []float64{0.25}},
			{Name: "u_inc", Type: "1f", Values: []float64{0.5}},
		},
	}, api.Pass{Name: "Image", Source: copySource, Screen: true, Channels: [4]*api.Channel{passRef("A", false)}})

	const n = 5
	require.NoError(t, p.Step(n))
	px, err := p.ReadPixels("A", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25+n*0.5, px[0], 1e-5)
	assert.Equal(t, n, p.Clock().Frame)
	assert.Zero(t, e.dev.FeedbackHazards)
}

func TestFeedbackSwapsWithoutReallocating(t *testing.T) {
	e := newEnv(4, 4)
	p := e.start(t, api.Pass{
		Name:     "A",
		Source:   accumSource,
		Size:     api.Fixed(2, 2),
		Feedback: true,
		Float:    true,
		Channels: [4]*api.Channel{passRef("A", true)},
		Uniforms: []api.UniformDecl{{Name: "u_inc", Type: "1f", Values: []float64{1}}},
	}, api.Pass{Name: "Image", Source: redSource})
	a, _ := p.Pass("A")
	created := e.dev.Created(graphics.KindFramebuffer)

	for k := 0; k < 4; k++ {
		require.NoError(t, p.Step(1))
		written := a.Current()
		want, err := p.ReadPixels("A", 0, 0, 2, 2)
		require.NoError(t, err)

		require.NoError(t, p.Step(1))
		require.Same(t, written, a.Previous(), "frame %d", k)
		got, err := e.dev.ReadPixels(p.pool.Object(a.Previous().Framebuffer), 0, 0, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, created, e.dev.Created(graphics.KindFramebuffer))
}

func TestMissingPassReferenceBindsNothing(t *testing.T) {
	e := newEnv(4, 4)
	p := e.start(t, api.Pass{Name: "Image", Source: copySource, Channels: [4]*api.Channel{passRef("DoesNotExist", false)}})
	require.NoError(t, p.Step(2))
	px, err := p.ReadPixels("Image", 0, 0, 4, 4)
	require.NoError(t, err)
	assertSolid(t, px, [4]float32{})
	assert.Zero(t, e.dev.DrawErrors)
}

func TestUnresolvedChannelDoesNotAliasUnitZero(t *testing.T) {
	e := newEnv(4, 4)
	p := e.start(t,
		api.Pass{Name: "A", Source: redSource, Size: api.Fixed(4, 4)},
		api.Pass{Name: "Image", Source: secondSource, Screen: true, Channels: [4]*api.Channel{passRef("A", false), passRef("DoesNotExist", false)}},
	)
	require.NoError(t, p.Step(1))
	px, err := p.ReadPixels("Image", 0, 0, 4, 4)
	require.NoError(t, err)
	assertSolid(t, px, [4]float32{})
	assert.Zero(t, e.dev.DrawErrors)
}

func TestResizeIsDebounced(t *testing.T) {
	e := newEnv(10, 10)
	p := e.start(t,
		api.Pass{Name: "A", Source: redSource, Size: api.Screen},
		api.Pass{Name: "B", Source: redSource, Size: api.Half, Feedback: true},
		api.Pass{Name: "Image", Source: copySource, Screen: true, Channels: [4]*api.Channel{passRef("A", false)}},
	)
	require.NoError(t, p.Step(1))
	reallocs := p.reallocs
	fbs := e.dev.Created(graphics.KindFramebuffer)

	e.surface.Resize(20, 12)
	e.surface.Resize(30, 14)
	e.surface.Resize(40, 16)
	assert.Equal(t, reallocs, p.reallocs, "resize must wait for the next frame")
	require.NoError(t, p.Step(1))
	assert.Equal(t, reallocs+2, p.reallocs)
	assert.Equal(t, fbs+3, e.dev.Created(graphics.KindFramebuffer))

	a, _ := p.Pass("A")
	b, _ := p.Pass("B")
	assert.Equal(t, 40, a.Current().Width)
	assert.Equal(t, 20, b.Current().Width)
	assert.Equal(t, 8, b.Previous().Height)

	// Only A changes size: B resolves to the same half size.
	e.surface.Resize(41, 17)
	require.NoError(t, p.Step(1))
	assert.Equal(t, reallocs+3, p.reallocs)

	e.surface.Resize(41, 17)
	require.NoError(t, p.Step(1))
	assert.Equal(t, reallocs+3, p.reallocs)

	px, err := p.ReadPixels("Image", 0, 0, 41, 17)
	require.NoError(t, err)
	assertSolid(t, px, [4]float32{1, 0, 0, 1})
}

func encodePNG(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{G: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.String()
}

func TestExternalChannel(t *testing.T) {
	e := newEnv(4, 4)
	e.opts.Fetcher.Preload["green.png"] = encodePNG(t)
	e.opts.FixedDelta = 0.25
	p := e.start(t,
		api.Pass{Name: "A", Source: channelsSource, Size: api.Fixed(1, 1), Float: true, Channels: [4]*api.Channel{{Kind: api.ChannelImage, URL: "green.png"}}},
		api.Pass{Name: "Image", Source: copySource, Channels: [4]*api.Channel{{Kind: api.ChannelImage, URL: "green.png"}}},
	)
	require.NoError(t, p.Step(2))

	px, err := p.ReadPixels("A", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 2, 0.5, 1}, px)

	px, err = p.ReadPixels("Image", 0, 0, 4, 4)
	require.NoError(t, err)
	assertSolid(t, px, [4]float32{0, 1, 0, 1})
}

func TestFailedSourceLeavesChannelEmpty(t *testing.T) {
	e := newEnv(4, 4)
	p := e.start(t, api.Pass{Name: "Image", Source: copySource, Channels: [4]*api.Channel{{Kind: api.ChannelImage, URL: "does/not/exist.png"}}})
	a, _ := p.Pass("Image")
	assert.Nil(t, a.Source(0))
	require.NoError(t, p.Step(1))
	px, err := p.ReadPixels("Image", 0, 0, 4, 4)
	require.NoError(t, err)
	assertSolid(t, px, [4]float32{})
}

func TestDisposeReleasesEverything(t *testing.T) {
	e := newEnv(8, 8)
	e.opts.Fetcher.Preload["green.png"] = encodePNG(t)
	p, err := Start(context.Background(), []api.Pass{
		{Name: "A", Source: accumSource, Feedback: true, Float: true, Depth: true, Channels: [4]*api.Channel{passRef("A", true), {Kind: api.ChannelImage, URL: "green.png"}}},
		{Name: "B", Source: redSource, Size: api.Half},
		{Name: "Image", Source: copySource, Channels: [4]*api.Channel{passRef("B", false)}},
	}, e.opts)
	require.NoError(t, err)
	require.NoError(t, p.Step(3))
	assert.Equal(t, 1, e.surface.Listeners())
	assert.Positive(t, e.dev.LiveTotal())

	p.Dispose()
	p.Dispose()
	assert.Equal(t, 0, e.dev.LiveTotal())
	assert.Equal(t, 0, p.pool.Len())
	assert.Zero(t, e.dev.BadDeletes)
	assert.Equal(t, 0, e.surface.Listeners())
	assert.False(t, p.Usable())
	assert.Equal(t, StateStopped, p.State())
	assert.ErrorIs(t, p.RenderFrame(1), ErrDisposed)
	assert.ErrorIs(t, p.Run(context.Background()), ErrDisposed)
	_, err = p.ReadPixels("Image", 0, 0, 1, 1)
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestClockAndEvents(t *testing.T) {
	e := newEnv(2, 2)
	e.opts.StartPaused = true
	e.opts.FixedDelta = 0.1
	p := e.start(t, api.Pass{Name: "Image", Source: redSource})

	var got []Event
	unsubscribe := p.Subscribe(func(ev Event) { got = append(got, ev) })
	assert.Equal(t, StatePaused, p.State())

	require.NoError(t, p.Step(2))
	assert.Zero(t, p.Clock().Time)
	assert.Equal(t, 2, p.Clock().Frame)

	p.Resume()
	p.Resume()
	assert.Equal(t, StateRunning, p.State())
	require.NoError(t, p.Step(2))
	assert.InDelta(t, 0.2, p.Clock().Time, 1e-9)

	p.SetTimeScale(2)
	require.NoError(t, p.Step(1))
	assert.InDelta(t, 0.4, p.Clock().Time, 1e-9)

	p.SetFixedDelta(0)
	e.surface.Advance(0.5)
	require.NoError(t, p.Step(1))
	assert.InDelta(t, 1.4, p.Clock().Time, 1e-9)

	p.SetTime(10)
	p.Pause()
	p.Stop()
	assert.Equal(t, StateStopped, p.State())

	var kinds []string
	for _, ev := range got {
		switch ev.(type) {
		case BeforeFrame:
			kinds = append(kinds, "before")
		case AfterFrame:
			kinds = append(kinds, "after")
		case Paused:
			kinds = append(kinds, "pause")
		case Resumed:
			kinds = append(kinds, "resume")
		case Stopped:
			kinds = append(kinds, "stop")
		}
	}
	assert.Equal(t, []string{
		"before", "after", "before", "after",
		"resume",
		"before", "after", "before", "after",
		"before", "after",
		"before", "after",
		"pause", "stop",
	}, kinds)

	after, ok := got[len(got)-3].(AfterFrame)
	require.True(t, ok)
	assert.Equal(t, 5, after.Frame)
	assert.InDelta(t, 2.0, after.FPS, 1e-9)
	assert.Equal(t, 10.0, got[len(got)-1].Info().Time)

	unsubscribe()
	p.Resume()
	assert.Len(t, got, 15)
}

func TestBuiltinUniforms(t *testing.T) {
	e := newEnv(6, 4)
	e.opts.StartPaused = true
	p := e.start(t,
		api.Pass{Name: "A", Source: builtinSource, Size: api.Fixed(2, 2), Float: true},
		api.Pass{Name: "Image", Source: redSource},
	)
	p.SetTime(1.5)
	e.surface.Move(5, 6)
	e.surface.Press(3, 4)
	require.NoError(t, p.Step(1))
	px, err := p.ReadPixels("A", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 0, 3, 2}, px)

	e.surface.Release(3, 4)
	require.NoError(t, p.Step(1))
	px, err = p.ReadPixels("A", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 1, 0, 2}, px)
}

func TestStaticUniforms(t *testing.T) {
	decl := api.Pass{Name: "A", Source: accumSource, Uniforms: []api.UniformDecl{
		{Name: "u_inc", Type: "1f", Values: []float64{0.5}},
		{Name: "u_missing", Type: "1f", Values: []float64{1}},
		{Name: "u_start", Type: "5f", Values: []float64{1}},
	}}

	e := newEnv(2, 2)
	p := e.start(t, decl)
	a, _ := p.Pass("A")
	require.Len(t, a.statics, 1)
	assert.Equal(t, "u_inc", a.statics[0].name)
	require.NoError(t, p.Step(1))
	px, err := p.ReadPixels("A", 0, 0, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, px[0], 1.0/255)

	e = newEnv(2, 2)
	e.opts.StrictUniforms = true
	p, err = Start(context.Background(), []api.Pass{decl}, e.opts)
	require.ErrorIs(t, err, ErrUniform)
	require.NotNil(t, p)
	defer p.Dispose()
	assert.False(t, p.Usable())
	assert.Empty(t, p.Passes())
	assert.ErrorIs(t, p.RenderFrame(0), ErrUniform)
	assert.Zero(t, e.dev.Live(graphics.KindProgram))
}

func TestCompileFailureIsReported(t *testing.T) {
	e := newEnv(4, 4)
	p, err := Start(context.Background(), []api.Pass{
		{Name: "A", Source: redSource, Size: api.Fixed(4, 4)},
		{Name: "B", Source: "uniform float x;\n#error broken\n#pragma kernel render.red\n"},
	}, e.opts)
	require.ErrorIs(t, err, ErrCompile)
	var ce *graphics.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, graphics.StageFragment, ce.Stage)
	assert.Contains(t, ce.Log, "ERROR: 0:2:")

	require.NotNil(t, p)
	assert.False(t, p.Usable())
	require.Len(t, p.Passes(), 1)
	assert.ErrorIs(t, p.Run(context.Background()), ErrCompile)
	p.Dispose()
	assert.Equal(t, 0, e.dev.LiveTotal())
}

func TestStartErrors(t *testing.T) {
	_, err := Start(context.Background(), []api.Pass{api.SinglePass(redSource)}, options.Default())
	assert.ErrorIs(t, err, ErrUnsupportedEnvironment)

	e := newEnv(2, 2)
	_, err = Start(context.Background(), nil, e.opts)
	assert.ErrorIs(t, err, api.ErrInvalidConfig)

	p, err := Start(context.Background(), []api.Pass{api.SinglePass("missing.frag")}, e.opts)
	assert.ErrorIs(t, err, ErrSourceLoad)
	p.Dispose()

	e.opts.StrictIncludes = true
	p, err = Start(context.Background(), []api.Pass{api.SinglePass("#include \"lib.glsl\"\n#pragma kernel render.red\n")}, e.opts)
	assert.ErrorIs(t, err, ErrInclude)
	p.Dispose()

	e.opts.Includes = map[string]string{"lib.glsl": "uniform float u_lib;\n"}
	p, err = Start(context.Background(), []api.Pass{api.SinglePass("#include \"lib.glsl\"\n#pragma kernel render.red\n")}, e.opts)
	require.NoError(t, err)
	a, _ := p.Pass("A")
	_, ok := a.Location("u_lib")
	assert.True(t, ok)
	p.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err = Start(ctx, []api.Pass{api.SinglePass(redSource)}, e.opts)
	assert.Nil(t, p)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, e.dev.LiveTotal())
}

func TestRunUntilCanvasCloses(t *testing.T) {
	e := newEnv(2, 2)
	p := e.start(t, api.Pass{Name: "Image", Source: redSource})
	p.Subscribe(func(ev Event) {
		if af, ok := ev.(AfterFrame); ok && af.Frame == 2 {
			e.surface.Shutdown()
		}
	})
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 3, e.surface.Frames)
	assert.Equal(t, StateStopped, p.State())

	assert.NoError(t, p.RenderFrame(1), "a stopped pipeline still renders explicit frames")
}

func TestResumeDoesNotRestartAStoppedPipeline(t *testing.T) {
	e := newEnv(2, 2)
	p := e.start(t, api.Pass{Name: "Image", Source: redSource})
	p.Stop()

	var got []Event
	p.Subscribe(func(ev Event) { got = append(got, ev) })
	p.Resume()
	assert.Equal(t, StateStopped, p.State())
	assert.Empty(t, got)

	var during State
	p.Subscribe(func(ev Event) {
		if _, ok := ev.(AfterFrame); ok {
			during = p.State()
			p.Stop()
		}
	})
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, StateRunning, during, "Run re-arms a stopped pipeline")
	assert.Equal(t, StateStopped, p.State())
}

func TestRunStopsWhenContextIsDone(t *testing.T) {
	e := newEnv(2, 2)
	p := e.start(t, api.Pass{Name: "Image", Source: redSource})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Subscribe(func(ev Event) {
		if af, ok := ev.(AfterFrame); ok && af.Frame == 1 {
			cancel()
		}
	})
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
	assert.Equal(t, 2, e.surface.Frames)
	assert.Equal(t, 2, p.Clock().Frame)
}

func TestNegotiateFormat(t *testing.T) {
	gles2 := graphics.Capabilities{API: graphics.APIGLES2, Extensions: map[string]bool{extFloat: true}}
	assert.Equal(t, graphics.Float, ChooseFormat(gles2, true).Type)
	assert.Equal(t, graphics.RGBA8(graphics.APIGLES2), ChooseFormat(graphics.Capabilities{API: graphics.APIGLES2}, true))
	assert.Equal(t, graphics.InternalRGBA16F, ChooseFormat(graphics.Capabilities{API: graphics.APIGL41}, true).Internal)
	assert.Equal(t, graphics.RGBA8(graphics.APIGL41), ChooseFormat(graphics.Capabilities{API: graphics.APIGL41}, false))

	dev := softgpu.New(graphics.Capabilities{API: graphics.APIGLES3})
	assert.Equal(t, graphics.InternalRGBA16F, NegotiateFormat(dev, true).Internal)

	dev.Unrenderable = map[graphics.InternalFormat]bool{graphics.InternalRGBA16F: true}
	first := NegotiateFormat(dev, true)
	second := NegotiateFormat(dev, true)
	assert.Equal(t, graphics.RGBA8(graphics.APIGLES3), first)
	assert.Equal(t, first, second)
	assert.Equal(t, 0, dev.LiveTotal())

	e := newEnv(4, 4)
	e.dev.Unrenderable = dev.Unrenderable
	p := e.start(t,
		api.Pass{Name: "A", Source: redSource, Float: true, Feedback: true},
		api.Pass{Name: "B", Source: redSource, Float: true},
		api.Pass{Name: "Image", Source: redSource},
	)
	a, _ := p.Pass("A")
	b, _ := p.Pass("B")
	assert.Equal(t, a.Current().Format, a.Previous().Format)
	assert.Equal(t, a.Current().Format, b.Current().Format)
	assert.False(t, b.Current().Format.IsFloat())
}
