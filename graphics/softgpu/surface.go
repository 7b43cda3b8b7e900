package softgpu

import "github.com/richinsley/goshadermate/graphics"

// Surface is a graphics.Context backed by a Device screen with a manual clock.
type Surface struct {
	dev           *Device
	width, height int
	now           float64
	closed        bool
	handlers      map[int]graphics.InputHandler
	nextHandler   int
	// Frames counts EndFrame calls.
	Frames int
}

func NewSurface(dev *Device, width, height int) *Surface {
	s := &Surface{dev: dev, handlers: make(map[int]graphics.InputHandler)}
	s.setSize(width, height)
	return s
}

func (s *Surface) setSize(w, h int) {
	s.width, s.height = w, h
	s.dev.ResizeScreen(w, h)
}

func (s *Surface) MakeCurrent() {}

func (s *Surface) Shutdown() { s.closed = true }

func (s *Surface) ShouldClose() bool { return s.closed }

func (s *Surface) EndFrame() { s.Frames++ }

func (s *Surface) FramebufferSize() (int, int) { return s.width, s.height }

func (s *Surface) Time() float64 { return s.now }

// Advance moves the surface clock forward by dt seconds.
func (s *Surface) Advance(dt float64) { s.now += dt }

func (s *Surface) Listen(h graphics.InputHandler) func() {
	id := s.nextHandler
	s.nextHandler++
	s.handlers[id] = h
	return func() { delete(s.handlers, id) }
}

// Listeners returns the number of installed input handlers.
func (s *Surface) Listeners() int { return len(s.handlers) }

// Resize changes the screen size and notifies listeners.
func (s *Surface) Resize(w, h int) {
	s.setSize(w, h)
	for _, h := range s.handlers {
		h.Resized(s.width, s.height)
	}
}

// Move reports a pointer position in framebuffer pixels, origin bottom left.
func (s *Surface) Move(x, y float64) {
	for _, h := range s.handlers {
		h.PointerMoved(x, y)
	}
}

func (s *Surface) Press(x, y float64) {
	for _, h := range s.handlers {
		h.PointerButton(true, x, y)
	}
}

func (s *Surface) Release(x, y float64) {
	for _, h := range s.handlers {
		h.PointerButton(false, x, y)
	}
}
