package renderer

import (
	"log/slog"

	"github.com/richinsley/goshadermate/graphics"
)

const (
	extHalfFloat = "GL_OES_texture_half_float"
	extFloat     = "GL_OES_texture_float"
)

// ChooseFormat returns the ideal color format for a pass. Float passes get
// half-float color where the API has it; everything else is 8-bit.
func ChooseFormat(caps graphics.Capabilities, float bool) graphics.PixelFormat {
	if !float {
		return graphics.RGBA8(caps.API)
	}
	if caps.Modern() {
		return graphics.PixelFormat{Internal: graphics.InternalRGBA16F, Format: graphics.FormatRGBA, Type: graphics.HalfFloat}
	}
	switch {
	case caps.HasExtension(extHalfFloat):
		return graphics.PixelFormat{Internal: graphics.InternalRGBA, Format: graphics.FormatRGBA, Type: graphics.HalfFloat}
	case caps.HasExtension(extFloat):
		return graphics.PixelFormat{Internal: graphics.InternalRGBA, Format: graphics.FormatRGBA, Type: graphics.Float}
	}
	return graphics.RGBA8(caps.API)
}

// Renderable allocates a disposable 4x4 target in format f and reports
// whether the device can render into it.
func Renderable(dev graphics.Device, f graphics.PixelFormat) bool {
	tex, err := dev.CreateTexture(graphics.TextureDesc{Width: 4, Height: 4, Format: f, Filter: graphics.FilterNearest})
	if err != nil {
		return false
	}
	defer dev.Delete(graphics.KindTexture2D, tex)

	fb, err := dev.CreateFramebuffer(tex, 0)
	if err != nil {
		return false
	}
	defer dev.Delete(graphics.KindFramebuffer, fb)
	return dev.FramebufferComplete(fb)
}

// NegotiateFormat chooses a format and probes it on dev, falling back to the
// 8-bit format when the device cannot render into it. The probe runs on
// every call, so repeated requests on the same device agree.
func NegotiateFormat(dev graphics.Device, float bool) graphics.PixelFormat {
	caps := dev.Capabilities()
	want := ChooseFormat(caps, float)
	safe := graphics.RGBA8(caps.API)
	if want == safe || Renderable(dev, want) {
		return want
	}
	slog.Warn("requested format not renderable, falling back to 8-bit", "format", want.String())
	return safe
}
