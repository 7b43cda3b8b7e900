package inputs

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/pool"
)

// CubeMap is a six-face cube texture source.
type CubeMap struct {
	pool   *pool.Pool
	handle pool.Handle
	size   int
}

func (c *CubeMap) Texture() pool.Handle           { return c.handle }
func (c *CubeMap) Target() graphics.TextureTarget { return graphics.TextureCube }
func (c *CubeMap) Size() (int, int)               { return c.size, c.size }

func (c *CubeMap) Release() {
	if c.handle != 0 {
		c.pool.Unref(c.handle)
		c.handle = 0
	}
}

type pendingCube struct {
	ch    *api.Channel
	faces [6]*image.NRGBA
}

// openCubeMap loads the faces concurrently; all must be square and equal in size.
func openCubeMap(ctx context.Context, ch *api.Channel, f *api.Fetcher) (Pending, error) {
	pc := &pendingCube{ch: ch}
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range ch.CubeURLs {
		g.Go(func() error {
			data, err := f.Fetch(gctx, url)
			if err != nil {
				return err
			}
			img, err := DecodeImage(data, ch.FlipY)
			if err != nil {
				return fmt.Errorf("cube face %d %s: %w", i, url, err)
			}
			pc.faces[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	size := pc.faces[0].Bounds().Dx()
	for i, img := range pc.faces {
		b := img.Bounds()
		if b.Dx() != size || b.Dy() != size {
			return nil, fmt.Errorf("cube face %d is %dx%d, want %dx%d", i, b.Dx(), b.Dy(), size, size)
		}
	}
	return pc, nil
}

func (p *pendingCube) Upload(dev graphics.Device, pl *pool.Pool) (Source, error) {
	desc := graphics.CubeDesc{
		Size:   p.faces[0].Bounds().Dx(),
		Filter: p.ch.Filter,
		Wrap:   p.ch.Wrap,
	}
	for i, img := range p.faces {
		desc.Faces[i] = img.Pix
	}
	obj, err := dev.CreateCubeMap(desc)
	if err != nil {
		return nil, err
	}
	return &CubeMap{pool: pl, handle: pl.Add(obj, graphics.KindTextureCube), size: desc.Size}, nil
}

func (p *pendingCube) Discard() {}
