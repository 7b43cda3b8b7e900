package inputs

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/pool"
)

// DecodeImage sniffs and decodes an image, returning tightly packed
// non-premultiplied RGBA rows, first row first. flipY reverses the rows.
func DecodeImage(data []byte, flipY bool) (*image.NRGBA, error) {
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, fmt.Errorf("not an image (detected %q)", kind.MIME.Value)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if flipY {
		return imaging.FlipV(img), nil
	}
	return imaging.Clone(img), nil
}

type pendingImage struct {
	ch  *api.Channel
	img *image.NRGBA
}

func openImage(ctx context.Context, ch *api.Channel, f *api.Fetcher) (Pending, error) {
	data, err := f.Fetch(ctx, ch.URL)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(data, ch.FlipY)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ch.URL, err)
	}
	return &pendingImage{ch: ch, img: img}, nil
}

func (p *pendingImage) Upload(dev graphics.Device, pl *pool.Pool) (Source, error) {
	b := p.img.Bounds()
	return uploadRGBA(dev, pl, p.ch, b.Dx(), b.Dy(), p.img.Pix)
}

func (p *pendingImage) Discard() {}
