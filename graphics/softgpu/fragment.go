package softgpu

import "github.com/richinsley/goshadermate/graphics"

// Fragment is the input of a kernel invocation.
type Fragment struct {
	// X and Y are the window coordinates of the pixel center relative to the viewport.
	X, Y          float32
	Width, Height int

	dev    *Device
	prog   *program
	target *texture
}

// Has reports whether the uniform has been set.
func (f *Fragment) Has(name string) bool {
	_, ok := f.prog.value(name)
	return ok
}

// Float returns the first component of a uniform, 0 if unset.
func (f *Fragment) Float(name string) float32 {
	v := f.Vec(name)
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

// Vec returns every component of a uniform as floats.
func (f *Fragment) Vec(name string) []float32 {
	v, ok := f.prog.value(name)
	if !ok {
		return nil
	}
	if v.Kind.IsInt() {
		out := make([]float32, len(v.Ints))
		for i, x := range v.Ints {
			out[i] = float32(x)
		}
		return out
	}
	return v.Floats
}

// Int returns the first component of an integer uniform, 0 if unset.
func (f *Fragment) Int(name string) int32 {
	v, ok := f.prog.value(name)
	if !ok {
		return 0
	}
	if len(v.Ints) > 0 {
		return v.Ints[0]
	}
	if len(v.Floats) > 0 {
		return int32(v.Floats[0])
	}
	return 0
}

// bound returns the texture on the unit held by sampler. A declared sampler
// that was never set reads unit 0, as on GL.
func (f *Fragment) bound(sampler string, want graphics.TextureTarget) *texture {
	if _, ok := f.prog.locations[sampler]; !ok {
		return nil
	}
	unit := f.Int(sampler)
	if unit < 0 || int(unit) >= len(f.dev.units) {
		return nil
	}
	b := f.dev.units[unit]
	if b.target != want {
		return nil
	}
	t := f.dev.textures[b.obj]
	if t != nil && t == f.target {
		f.dev.FeedbackHazards++
	}
	return t
}

// Sample reads the 2D texture bound to the unit held by sampler. Unbound
// samplers read zero.
func (f *Fragment) Sample(sampler string, u, v float32) [4]float32 {
	t := f.bound(sampler, graphics.Texture2D)
	if t == nil || t.cube {
		return [4]float32{}
	}
	return t.sample(t.data, u, v)
}

// SampleCube reads the cube map bound to the unit held by sampler.
func (f *Fragment) SampleCube(sampler string, x, y, z float32) [4]float32 {
	t := f.bound(sampler, graphics.TextureCube)
	if t == nil || !t.cube {
		return [4]float32{}
	}
	return t.sampleCube(x, y, z)
}

// UV returns the fragment position normalized to the viewport.
func (f *Fragment) UV() (float32, float32) {
	return f.X / float32(f.Width), f.Y / float32(f.Height)
}
