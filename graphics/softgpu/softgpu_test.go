package softgpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshadermate/graphics"
)

var caps = graphics.Capabilities{API: graphics.APIGLES3}

func init() {
	RegisterKernel("test.uv", func(f *Fragment) [4]float32 {
		u, v := f.UV()
		return [4]float32{u, v, f.Float("u_gain"), 1}
	})
	RegisterKernel("test.copy", func(f *Fragment) [4]float32 {
		u, v := f.UV()
		return f.Sample("iChannel0", u, v)
	})
}

func TestScanReportsUniformsAndErrors(t *testing.T) {
	p, log := scan("#version 300 es\nuniform highp float iTime;\nuniform vec3 iChannelResolution[4];\nuniform sampler2D iChannel0;\nlayout(std140) uniform Params {\n  vec4 a;\n  vec4 b;\n};\n#pragma kernel test.uv\n")
	assert.Empty(t, log)
	assert.Equal(t, "test.uv", p.kernel)
	require.Len(t, p.uniforms, 3)
	assert.Equal(t, "iChannelResolution", p.uniforms[1].name)
	assert.Equal(t, 4, p.uniforms[1].size)
	require.Len(t, p.blocks, 1)
	assert.Equal(t, "Params", p.blocks[0].Name)
	assert.Equal(t, 32, p.blocks[0].Size)

	_, log = scan("a\n#line 1\nb\n#error broken here\n")
	assert.Equal(t, "ERROR: 0:2: '#error' : broken here\n", log)
}

func TestCompileErrors(t *testing.T) {
	d := New(caps)
	_, err := d.CompileProgram("", "void main(){}")
	var ce *graphics.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, graphics.StageFragment, ce.Stage)

	_, err = d.CompileProgram("", "#pragma kernel nope")
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, graphics.StageLink, ce.Stage)

	_, err = d.CompileProgram("#error v", "#pragma kernel test.uv")
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, graphics.StageVertex, ce.Stage)
}

func TestDrawAndRead(t *testing.T) {
	d := New(caps)
	s := NewSurface(d, 4, 2)
	prog, err := d.CompileProgram("", "uniform float u_gain;\n#pragma kernel test.uv")
	require.NoError(t, err)
	quad, err := d.CreateQuad([]float32{-1, -1, 1, -1, -1, 1, -1, 1, 1, -1, 1, 1})
	require.NoError(t, err)

	w, h := s.FramebufferSize()
	d.BindFramebuffer(0)
	d.Viewport(0, 0, w, h)
	d.UseProgram(prog)
	d.BindQuad(quad)
	d.SetUniform(d.UniformLocation(prog, "u_gain"), graphics.Float1(0.5))
	d.SetUniform(d.UniformLocation(prog, "missing"), graphics.Float1(9))
	d.DrawArrays(0, 6)
	assert.Equal(t, 1, d.Draws)

	px, err := d.ReadPixels(0, 1, 1, 1, 1)
	require.NoError(t, err)
	// 8-bit screen quantizes.
	assert.InDelta(t, 0.375, px[0], 1.0/255)
	assert.InDelta(t, 0.75, px[1], 1.0/255)
	assert.InDelta(t, 0.5, px[2], 1.0/255)
}

func TestFloatTargetAndSampling(t *testing.T) {
	d := New(caps)
	NewSurface(d, 2, 2)
	f16 := graphics.PixelFormat{Internal: graphics.InternalRGBA16F, Format: graphics.FormatRGBA, Type: graphics.HalfFloat}
	tex, err := d.CreateTexture(graphics.TextureDesc{Width: 2, Height: 2, Format: f16, Filter: graphics.FilterNearest})
	require.NoError(t, err)
	fb, err := d.CreateFramebuffer(tex, 0)
	require.NoError(t, err)
	assert.True(t, d.FramebufferComplete(fb))

	d.Unrenderable = map[graphics.InternalFormat]bool{graphics.InternalRGBA16F: true}
	assert.False(t, d.FramebufferComplete(fb))
	d.Unrenderable = nil

	src, err := d.CreateTexture(graphics.TextureDesc{Width: 1, Height: 1, Format: graphics.RGBA8(caps.API), Pixels: []byte{255, 0, 0, 255}})
	require.NoError(t, err)
	prog, err := d.CompileProgram("", "uniform sampler2D iChannel0;\n#pragma kernel test.copy")
	require.NoError(t, err)
	quad, _ := d.CreateQuad([]float32{-1, -1, 1, -1, -1, 1, -1, 1, 1, -1, 1, 1})

	d.BindFramebuffer(fb)
	d.Viewport(0, 0, 2, 2)
	d.UseProgram(prog)
	d.BindQuad(quad)
	d.BindTexture(0, graphics.Texture2D, src)
	d.SetUniform(d.UniformLocation(prog, "iChannel0"), graphics.Int1(0))
	d.DrawArrays(0, 6)

	px, err := d.ReadPixels(fb, 0, 0, 2, 2)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, []float32{1, 0, 0, 1}, px[i*4:i*4+4])
	}
	assert.Zero(t, d.FeedbackHazards)
}

func TestUnsetSamplerReadsUnitZero(t *testing.T) {
	d := New(caps)
	NewSurface(d, 1, 1)
	tex, err := d.CreateTexture(graphics.TextureDesc{Width: 1, Height: 1, Format: graphics.RGBA8(caps.API)})
	require.NoError(t, err)
	fb, err := d.CreateFramebuffer(tex, 0)
	require.NoError(t, err)
	src, err := d.CreateTexture(graphics.TextureDesc{Width: 1, Height: 1, Format: graphics.RGBA8(caps.API), Pixels: []byte{0, 255, 0, 255}})
	require.NoError(t, err)
	prog, err := d.CompileProgram("", "uniform sampler2D iChannel0;\n#pragma kernel test.copy")
	require.NoError(t, err)
	quad, _ := d.CreateQuad([]float32{-1, -1, 1, -1, -1, 1, -1, 1, 1, -1, 1, 1})

	d.BindFramebuffer(fb)
	d.Viewport(0, 0, 1, 1)
	d.UseProgram(prog)
	d.BindQuad(quad)
	d.BindTexture(0, graphics.Texture2D, src)
	d.DrawArrays(0, 6)

	px, err := d.ReadPixels(fb, 0, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0, 1}, px)
}

func TestLiveCountsAndBadDeletes(t *testing.T) {
	d := New(caps)
	tex, _ := d.CreateTexture(graphics.TextureDesc{Width: 1, Height: 1})
	assert.Equal(t, 1, d.Live(graphics.KindTexture2D))
	d.Delete(graphics.KindTexture2D, tex)
	assert.Zero(t, d.LiveTotal())
	d.Delete(graphics.KindTexture2D, tex)
	assert.Equal(t, 1, d.BadDeletes)
}

func TestSurfaceListeners(t *testing.T) {
	d := New(caps)
	s := NewSurface(d, 8, 8)
	var got [2]int
	remove := s.Listen(resizeFunc(func(w, h int) { got = [2]int{w, h} }))
	s.Resize(16, 4)
	assert.Equal(t, [2]int{16, 4}, got)
	assert.Equal(t, 1, s.Listeners())
	remove()
	assert.Zero(t, s.Listeners())
}

type resizeFunc func(w, h int)

func (f resizeFunc) PointerMoved(x, y float64)             {}
func (f resizeFunc) PointerButton(down bool, x, y float64) {}
func (f resizeFunc) Resized(w, h int)                      { f(w, h) }
