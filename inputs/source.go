// Package inputs loads external channel sources (images, cube maps, video and
// audio spectra) into device textures.
package inputs

import (
	"context"
	"fmt"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/pool"
)

// Source is a loaded channel input.
type Source interface {
	// Texture is owned by the source and released by Release.
	Texture() pool.Handle
	Target() graphics.TextureTarget
	Size() (int, int)
	Release()
}

// Updater is implemented by sources that refresh their texture every frame.
type Updater interface {
	Update() error
}

// Pending is a source whose CPU side work is done. Upload must run on the
// goroutine that owns the device; Discard releases a pending source that will
// never be uploaded.
type Pending interface {
	Upload(dev graphics.Device, p *pool.Pool) (Source, error)
	Discard()
}

// Open performs the blocking part of loading ch: fetching, decoding and
// starting decoders. It is safe to call off the render goroutine.
func Open(ctx context.Context, ch *api.Channel, f *api.Fetcher) (Pending, error) {
	switch ch.Kind {
	case api.ChannelImage:
		return openImage(ctx, ch, f)
	case api.ChannelCubeMap:
		return openCubeMap(ctx, ch, f)
	case api.ChannelVideo:
		return openVideo(ctx, ch, f)
	case api.ChannelAudio:
		return openAudio(ctx, ch, f)
	case api.ChannelMic:
		return openMic(ch)
	}
	return nil, fmt.Errorf("channel kind %s is not an external source", ch.Kind)
}

// texture2D is the shared Source implementation for 2D textures.
type texture2D struct {
	pool          *pool.Pool
	handle        pool.Handle
	width, height int
}

func (t *texture2D) Texture() pool.Handle           { return t.handle }
func (t *texture2D) Target() graphics.TextureTarget { return graphics.Texture2D }
func (t *texture2D) Size() (int, int)               { return t.width, t.height }

func (t *texture2D) Release() {
	if t.handle != 0 {
		t.pool.Unref(t.handle)
		t.handle = 0
	}
}

func uploadRGBA(dev graphics.Device, p *pool.Pool, ch *api.Channel, w, h int, pix []byte) (*texture2D, error) {
	obj, err := dev.CreateTexture(graphics.TextureDesc{
		Width:  w,
		Height: h,
		Format: graphics.RGBA8(dev.Capabilities().API),
		Filter: ch.Filter,
		Wrap:   ch.Wrap,
		Pixels: pix,
	})
	if err != nil {
		return nil, err
	}
	return &texture2D{pool: p, handle: p.Add(obj, graphics.KindTexture2D), width: w, height: h}, nil
}
