package softgpu

import (
	"encoding/binary"

	"github.com/chewxy/math32"

	"github.com/richinsley/goshadermate/graphics"
)

// texture stores RGBA float components, bottom row first.
type texture struct {
	width, height int
	format        graphics.PixelFormat
	filter        graphics.Filter
	wrap          graphics.Wrap
	cube          bool
	faces         [6][]float32
	data          []float32
}

func newTexture(desc graphics.TextureDesc) *texture {
	t := &texture{}
	t.respecify(desc)
	return t
}

func (t *texture) respecify(desc graphics.TextureDesc) {
	t.width, t.height = desc.Width, desc.Height
	t.format = desc.Format
	t.filter = desc.Filter
	t.wrap = desc.Wrap
	t.data = decodePixels(desc.Format, desc.Width, desc.Height, desc.Pixels)
}

func decodePixels(f graphics.PixelFormat, w, h int, pixels []byte) []float32 {
	out := make([]float32, w*h*4)
	if pixels == nil {
		return out
	}
	n := f.Components()
	size := 1
	if f.Type == graphics.Float {
		size = 4
	}
	for i := 0; i < w*h; i++ {
		var c [4]float32
		c[3] = 1
		for k := 0; k < n; k++ {
			off := (i*n + k) * size
			if off+size > len(pixels) {
				break
			}
			if size == 4 {
				c[k] = math32.Float32frombits(binary.LittleEndian.Uint32(pixels[off:]))
			} else {
				c[k] = float32(pixels[off]) / 255
			}
		}
		if f.Format == graphics.FormatLuminance {
			c[1], c[2] = c[0], c[0]
		}
		copy(out[i*4:], c[:])
	}
	return out
}

// store writes a fragment color, quantizing 8-bit formats.
func (t *texture) store(x, y int, c [4]float32) {
	i := (y*t.width + x) * 4
	if !t.format.IsFloat() {
		for k := range c {
			c[k] = math32.Round(clamp01(c[k])*255) / 255
		}
	}
	copy(t.data[i:i+4], c[:])
}

func (t *texture) texel(data []float32, x, y int) [4]float32 {
	x = wrapCoord(x, t.width, t.wrap)
	y = wrapCoord(y, t.height, t.wrap)
	i := (y*t.width + x) * 4
	return [4]float32{data[i], data[i+1], data[i+2], data[i+3]}
}

func wrapCoord(i, n int, w graphics.Wrap) int {
	if w == graphics.WrapRepeat {
		i %= n
		if i < 0 {
			i += n
		}
		return i
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// sample filters data at normalized coordinates.
func (t *texture) sample(data []float32, u, v float32) [4]float32 {
	if t.width == 0 || t.height == 0 {
		return [4]float32{}
	}
	x := u*float32(t.width) - 0.5
	y := v*float32(t.height) - 0.5
	if t.filter == graphics.FilterNearest {
		return t.texel(data, int(math32.Floor(x+0.5)), int(math32.Floor(y+0.5)))
	}
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	a := t.texel(data, ix, iy)
	b := t.texel(data, ix+1, iy)
	c := t.texel(data, ix, iy+1)
	d := t.texel(data, ix+1, iy+1)
	var out [4]float32
	for k := range out {
		top := a[k]*(1-fx) + b[k]*fx
		bot := c[k]*(1-fx) + d[k]*fx
		out[k] = top*(1-fy) + bot*fy
	}
	return out
}

// sampleCube picks the major axis face of direction (x, y, z).
func (t *texture) sampleCube(x, y, z float32) [4]float32 {
	ax, ay, az := math32.Abs(x), math32.Abs(y), math32.Abs(z)
	var face int
	var sc, tc, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if x > 0 {
			face, sc, tc = 0, -z, -y
		} else {
			face, sc, tc = 1, z, -y
		}
	case ay >= az:
		ma = ay
		if y > 0 {
			face, sc, tc = 2, x, z
		} else {
			face, sc, tc = 3, x, -z
		}
	default:
		ma = az
		if z > 0 {
			face, sc, tc = 4, x, -y
		} else {
			face, sc, tc = 5, -x, -y
		}
	}
	if ma == 0 {
		return [4]float32{}
	}
	return t.sample(t.faces[face], (sc/ma+1)/2, (tc/ma+1)/2)
}

func clamp01(x float32) float32 {
	return math32.Max(0, math32.Min(1, x))
}
