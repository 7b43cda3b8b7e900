package graphics

// Context defines the surface a pipeline renders into and the source of its
// display refresh.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	// EndFrame presents the default framebuffer and blocks until the next
	// display refresh, dispatching pending input events.
	EndFrame()
	FramebufferSize() (int, int)
	// Time returns a monotonic wall clock in seconds.
	Time() float64
	// Listen installs h for pointer and resize events. The returned func
	// removes every listener that was installed.
	Listen(h InputHandler) (remove func())
}

// InputHandler receives input events. Coordinates are framebuffer pixels with
// the origin at the bottom-left corner.
type InputHandler interface {
	PointerMoved(x, y float64)
	PointerButton(down bool, x, y float64)
	Resized(width, height int)
}
