// Package softgpu is a CPU implementation of graphics.Device. Fragment
// programs are Go kernels chosen by a "#pragma kernel NAME" line; uniforms
// and uniform blocks are read from the declarations in the source.
package softgpu

import (
	"fmt"

	"github.com/richinsley/goshadermate/graphics"
)

type framebuffer struct {
	color, depth graphics.Object
}

type binding struct {
	target graphics.TextureTarget
	obj    graphics.Object
}

// Device renders into float RGBA textures held in memory. The default
// framebuffer is a screen texture sized by the surface.
type Device struct {
	caps graphics.Capabilities
	// Unrenderable lists internal formats whose framebuffers report incomplete.
	Unrenderable map[graphics.InternalFormat]bool

	next         graphics.Object
	textures     map[graphics.Object]*texture
	framebuffers map[graphics.Object]*framebuffer
	programs     map[graphics.Object]*program
	buffers      map[graphics.Object][]float32
	screen       *texture

	fb       graphics.Object
	viewport [4]int
	prog     graphics.Object
	quad     graphics.Object
	units    [16]binding

	created map[graphics.ObjectKind]int
	deleted map[graphics.ObjectKind]int
	// BadDeletes counts deletions of objects that were not live.
	BadDeletes int
	// Draws counts completed draw calls.
	Draws int
	// DrawErrors counts draws issued without a program or vertex buffer.
	DrawErrors int
	// FeedbackHazards counts samples of the texture being rendered to.
	FeedbackHazards int
}

func New(caps graphics.Capabilities) *Device {
	return &Device{
		caps:         caps,
		textures:     make(map[graphics.Object]*texture),
		framebuffers: make(map[graphics.Object]*framebuffer),
		programs:     make(map[graphics.Object]*program),
		buffers:      make(map[graphics.Object][]float32),
		screen:       &texture{format: graphics.RGBA8(caps.API)},
		created:      make(map[graphics.ObjectKind]int),
		deleted:      make(map[graphics.ObjectKind]int),
	}
}

func (d *Device) Capabilities() graphics.Capabilities {
	return d.caps
}

func (d *Device) alloc(kind graphics.ObjectKind) graphics.Object {
	d.next++
	d.created[kind]++
	return d.next
}

// Created returns the number of objects of kind ever created.
func (d *Device) Created(kind graphics.ObjectKind) int {
	return d.created[kind]
}

// Live returns the number of objects of kind not yet deleted.
func (d *Device) Live(kind graphics.ObjectKind) int {
	return d.created[kind] - d.deleted[kind]
}

// LiveTotal returns the number of live objects of every kind.
func (d *Device) LiveTotal() int {
	n := 0
	for k := range d.created {
		n += d.Live(k)
	}
	return n
}

// ResizeScreen reallocates the default framebuffer.
func (d *Device) ResizeScreen(w, h int) {
	d.screen.respecify(graphics.TextureDesc{Width: w, Height: h, Format: d.screen.format})
}

func (d *Device) CreateTexture(desc graphics.TextureDesc) (graphics.Object, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	obj := d.alloc(graphics.KindTexture2D)
	d.textures[obj] = newTexture(desc)
	return obj, nil
}

func (d *Device) UploadTexture(obj graphics.Object, desc graphics.TextureDesc) error {
	t, ok := d.textures[obj]
	if !ok || t.cube {
		return fmt.Errorf("texture %d is not a live 2D texture", obj)
	}
	t.respecify(desc)
	return nil
}

func (d *Device) CreateCubeMap(desc graphics.CubeDesc) (graphics.Object, error) {
	if desc.Size <= 0 {
		return 0, fmt.Errorf("invalid cube map size %d", desc.Size)
	}
	obj := d.alloc(graphics.KindTextureCube)
	t := &texture{width: desc.Size, height: desc.Size, cube: true, filter: desc.Filter, wrap: graphics.WrapClamp, format: graphics.RGBA8(d.caps.API)}
	for i, f := range desc.Faces {
		t.faces[i] = decodePixels(t.format, desc.Size, desc.Size, f)
	}
	d.textures[obj] = t
	return obj, nil
}

func (d *Device) CreateFramebuffer(color, depth graphics.Object) (graphics.Object, error) {
	if _, ok := d.textures[color]; !ok {
		return 0, fmt.Errorf("color attachment %d is not a live texture", color)
	}
	if depth != 0 {
		if _, ok := d.textures[depth]; !ok {
			return 0, fmt.Errorf("depth attachment %d is not a live texture", depth)
		}
	}
	obj := d.alloc(graphics.KindFramebuffer)
	d.framebuffers[obj] = &framebuffer{color: color, depth: depth}
	return obj, nil
}

func (d *Device) FramebufferComplete(fb graphics.Object) bool {
	f, ok := d.framebuffers[fb]
	if !ok {
		return false
	}
	t, ok := d.textures[f.color]
	return ok && !d.Unrenderable[t.format.Internal]
}

func (d *Device) CompileProgram(vertex, fragment string) (graphics.Object, error) {
	p, err := link(vertex, fragment)
	if err != nil {
		return 0, err
	}
	obj := d.alloc(graphics.KindProgram)
	d.programs[obj] = p
	return obj, nil
}

func (d *Device) ActiveUniforms(prog graphics.Object) []graphics.UniformInfo {
	if p, ok := d.programs[prog]; ok {
		return p.active()
	}
	return nil
}

func (d *Device) ActiveUniformBlocks(prog graphics.Object) []graphics.UniformBlock {
	if p, ok := d.programs[prog]; ok {
		return append([]graphics.UniformBlock(nil), p.blocks...)
	}
	return nil
}

func (d *Device) UniformLocation(prog graphics.Object, name string) graphics.Location {
	if p, ok := d.programs[prog]; ok {
		if loc, ok := p.locations[name]; ok {
			return loc
		}
	}
	return -1
}

func (d *Device) CreateQuad(vertices []float32) (graphics.Object, error) {
	if len(vertices) == 0 || len(vertices)%2 != 0 {
		return 0, fmt.Errorf("vertex data must hold 2D positions")
	}
	obj := d.alloc(graphics.KindBuffer)
	d.buffers[obj] = append([]float32(nil), vertices...)
	return obj, nil
}

func (d *Device) BindFramebuffer(fb graphics.Object) { d.fb = fb }

func (d *Device) Viewport(x, y, w, h int) { d.viewport = [4]int{x, y, w, h} }

func (d *Device) UseProgram(prog graphics.Object) { d.prog = prog }

func (d *Device) BindQuad(quad graphics.Object) { d.quad = quad }

func (d *Device) BindTexture(unit int, target graphics.TextureTarget, tex graphics.Object) {
	if unit >= 0 && unit < len(d.units) {
		d.units[unit] = binding{target: target, obj: tex}
	}
}

func (d *Device) SetUniform(loc graphics.Location, v graphics.UniformValue) {
	if loc < 0 {
		return
	}
	if p, ok := d.programs[d.prog]; ok {
		p.values[loc] = v
	}
}

// target returns the color texture of the bound framebuffer.
func (d *Device) target() *texture {
	if d.fb == 0 {
		return d.screen
	}
	if f, ok := d.framebuffers[d.fb]; ok {
		return d.textures[f.color]
	}
	return nil
}

func (d *Device) Clear() {
	if t := d.target(); t != nil {
		clear(t.data)
	}
}

func (d *Device) DrawArrays(first, count int) {
	p, ok := d.programs[d.prog]
	verts, qok := d.buffers[d.quad]
	t := d.target()
	if !ok || !qok || t == nil || first < 0 || (first+count)*2 > len(verts) {
		d.DrawErrors++
		return
	}
	vx, vy, vw, vh := d.viewport[0], d.viewport[1], d.viewport[2], d.viewport[3]
	frag := &Fragment{dev: d, prog: p, target: t, Width: vw, Height: vh}
	for y := max(vy, 0); y < min(vy+vh, t.height); y++ {
		for x := max(vx, 0); x < min(vx+vw, t.width); x++ {
			frag.X = float32(x-vx) + 0.5
			frag.Y = float32(y-vy) + 0.5
			t.store(x, y, p.kernel(frag))
		}
	}
	d.Draws++
}

func (d *Device) ReadPixels(fb graphics.Object, x, y, w, h int) ([]float32, error) {
	t := d.screen
	if fb != 0 {
		f, ok := d.framebuffers[fb]
		if !ok {
			return nil, fmt.Errorf("framebuffer %d is not live", fb)
		}
		t = d.textures[f.color]
	}
	if x < 0 || y < 0 || x+w > t.width || y+h > t.height {
		return nil, fmt.Errorf("read %d,%d %dx%d outside %dx%d target", x, y, w, h, t.width, t.height)
	}
	out := make([]float32, 0, w*h*4)
	for row := y; row < y+h; row++ {
		i := (row*t.width + x) * 4
		out = append(out, t.data[i:i+w*4]...)
	}
	return out, nil
}

func (d *Device) Delete(kind graphics.ObjectKind, obj graphics.Object) {
	var ok bool
	switch kind {
	case graphics.KindTexture2D, graphics.KindTextureCube:
		_, ok = d.textures[obj]
		delete(d.textures, obj)
	case graphics.KindFramebuffer:
		_, ok = d.framebuffers[obj]
		delete(d.framebuffers, obj)
	case graphics.KindProgram:
		_, ok = d.programs[obj]
		delete(d.programs, obj)
		if d.prog == obj {
			d.prog = 0
		}
	case graphics.KindBuffer:
		_, ok = d.buffers[obj]
		delete(d.buffers, obj)
	}
	if !ok {
		d.BadDeletes++
		return
	}
	d.deleted[kind]++
}
