// Package gldevice implements graphics.Device on an OpenGL 4.1 core context.
//
// A Device may carry a translator. It then advertises a GLES3 API so that
// fragment sources are prepared as GLSL ES 3.00, and translates them to
// GLSL 4.10 before compiling. Uniform names reported by and accepted from
// the device are always the declared ones.
package gldevice

import (
	"fmt"
	"log/slog"
	"sync"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/translator"
)

var (
	glInitOnce sync.Once
	glInitErr  error
)

// Device issues GL calls on the goroutine owning the current context.
type Device struct {
	caps graphics.Capabilities
	tr   *translator.Translator

	programs map[graphics.Object]*program
	// vertex arrays by the buffer they describe
	vaos map[graphics.Object]uint32
	fb   graphics.Object
}

var _ graphics.Device = (*Device)(nil)

// New loads the GL entry points for the current context. Pass a nil
// translator to compile fragment sources as GLSL 4.10 directly.
func New(tr *translator.Translator) (*Device, error) {
	glInitOnce.Do(func() { glInitErr = gl.Init() })
	if glInitErr != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", glInitErr)
	}
	d := &Device{
		tr:       tr,
		programs: make(map[graphics.Object]*program),
		vaos:     make(map[graphics.Object]uint32),
	}
	d.caps.API = graphics.APIGL41
	if tr != nil {
		d.caps.API = graphics.APIGLES3
	}
	d.caps.Extensions = extensions()
	slog.Debug("OpenGL device ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"api", d.caps.API,
		"extensions", len(d.caps.Extensions))
	return d, nil
}

func extensions() map[string]bool {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	ext := make(map[string]bool, n)
	for i := int32(0); i < n; i++ {
		ext[gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i)))] = true
	}
	return ext
}

func (d *Device) Capabilities() graphics.Capabilities {
	return d.caps
}

func (d *Device) BindFramebuffer(fb graphics.Object) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	d.fb = fb
}

func (d *Device) Viewport(x, y, width, height int) {
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

func (d *Device) Clear() {
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

func (d *Device) UseProgram(prog graphics.Object) {
	gl.UseProgram(uint32(prog))
}

func (d *Device) BindQuad(quad graphics.Object) {
	gl.BindVertexArray(d.vaos[quad])
}

func (d *Device) BindTexture(unit int, target graphics.TextureTarget, tex graphics.Object) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(glTarget(target), uint32(tex))
}

func (d *Device) DrawArrays(first, count int) {
	gl.DrawArrays(gl.TRIANGLES, int32(first), int32(count))
}

// CreateQuad uploads vertices into a buffer described by its own vertex
// array, with two floats per vertex at attribute 0.
func (d *Device) CreateQuad(vertices []float32) (graphics.Object, error) {
	if len(vertices) == 0 {
		return 0, fmt.Errorf("empty vertex buffer")
	}
	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := glError("create quad"); err != nil {
		gl.DeleteVertexArrays(1, &vao)
		gl.DeleteBuffers(1, &vbo)
		return 0, err
	}
	d.vaos[graphics.Object(vbo)] = vao
	return graphics.Object(vbo), nil
}

// ReadPixels reads RGBA floats from fb. The previously bound framebuffer is
// restored.
func (d *Device) ReadPixels(fb graphics.Object, x, y, width, height int) ([]float32, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid read size %dx%d", width, height)
	}
	out := make([]float32, width*height*4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(fb))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.FLOAT, gl.Ptr(&out[0]))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(d.fb))
	if err := glError("read pixels"); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Device) Delete(kind graphics.ObjectKind, obj graphics.Object) {
	n := uint32(obj)
	switch kind {
	case graphics.KindTexture2D, graphics.KindTextureCube:
		gl.DeleteTextures(1, &n)
	case graphics.KindFramebuffer:
		if d.fb == obj {
			d.BindFramebuffer(0)
		}
		gl.DeleteFramebuffers(1, &n)
	case graphics.KindBuffer:
		if vao, ok := d.vaos[obj]; ok {
			gl.DeleteVertexArrays(1, &vao)
			delete(d.vaos, obj)
		}
		gl.DeleteBuffers(1, &n)
	case graphics.KindProgram:
		gl.DeleteProgram(n)
		delete(d.programs, obj)
	}
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: GL error 0x%04x", op, code)
	}
	return nil
}
