package main

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
)

// saveScreenshot writes the screen pass as an image; the format follows the
// file extension.
func (v *viewer) saveScreenshot(path string) error {
	var screen string
	for _, ps := range v.pipeline.Passes() {
		if ps.Decl.Screen {
			screen = ps.Name()
		}
	}
	if screen == "" {
		return fmt.Errorf("no screen pass to capture")
	}
	w, h := v.canvas.FramebufferSize()
	px, err := v.pipeline.ReadPixels(screen, 0, 0, w, h)
	if err != nil {
		return fmt.Errorf("failed to read screen: %w", err)
	}
	if err := imaging.Save(toImage(px, w, h), path); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	slog.Info("saved screenshot", "path", path, "width", w, "height", h)
	return nil
}

// toImage converts bottom-first RGBA floats into a top-first image.
func toImage(px []float32, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, c := range px {
		switch {
		case c <= 0:
			img.Pix[i] = 0
		case c >= 1:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8(c*255 + 0.5)
		}
	}
	return imaging.FlipV(img)
}
