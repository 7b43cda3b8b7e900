package renderer

import (
	"fmt"
	"log/slog"

	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/pool"
)

// RenderTarget is an off-screen color texture, optional depth texture and the
// framebuffer joining them. All three are owned through the pool.
type RenderTarget struct {
	Color       pool.Handle
	Depth       pool.Handle
	Framebuffer pool.Handle
	Width       int
	Height      int
	Format      graphics.PixelFormat
}

type targetParams struct {
	float  bool
	depth  bool
	filter graphics.Filter
	wrap   graphics.Wrap
}

func newRenderTarget(dev graphics.Device, pl *pool.Pool, w, h int, tp targetParams) (*RenderTarget, error) {
	format := NegotiateFormat(dev, tp.float)
	color, err := dev.CreateTexture(graphics.TextureDesc{Width: w, Height: h, Format: format, Filter: tp.filter, Wrap: tp.wrap})
	if err != nil {
		return nil, fmt.Errorf("failed to create %dx%d color texture: %w", w, h, err)
	}
	t := &RenderTarget{Width: w, Height: h, Format: format}
	t.Color = pl.Add(color, graphics.KindTexture2D)

	var depth graphics.Object
	if tp.depth {
		depth, err = dev.CreateTexture(graphics.TextureDesc{Width: w, Height: h, Format: graphics.Depth16, Filter: graphics.FilterNearest})
		if err != nil {
			t.release(pl)
			return nil, fmt.Errorf("failed to create %dx%d depth texture: %w", w, h, err)
		}
		t.Depth = pl.Add(depth, graphics.KindTexture2D)
	}

	fb, err := dev.CreateFramebuffer(color, depth)
	if err != nil {
		t.release(pl)
		return nil, fmt.Errorf("failed to create framebuffer: %w", err)
	}
	t.Framebuffer = pl.Add(fb, graphics.KindFramebuffer)
	if !dev.FramebufferComplete(fb) {
		slog.Warn("framebuffer incomplete", "width", w, "height", h, "format", format.String())
	}
	return t, nil
}

// release drops every handle of t. It is safe on a nil or partial target.
func (t *RenderTarget) release(pl *pool.Pool) {
	if t == nil {
		return
	}
	pl.Unref(t.Framebuffer)
	pl.Unref(t.Depth)
	pl.Unref(t.Color)
	t.Framebuffer, t.Depth, t.Color = 0, 0, 0
}
