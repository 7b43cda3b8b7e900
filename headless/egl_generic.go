//go:build !linux

package headless

import (
	"fmt"

	"github.com/richinsley/goshadermate/graphics"
)

// New is only available on Linux.
func New(width, height int) (graphics.Context, error) {
	return nil, fmt.Errorf("egl headless rendering is not supported on this platform")
}
