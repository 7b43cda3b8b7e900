package glfwcontext

import (
	"log/slog"
	"runtime"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/goshadermate/graphics"
)

// Config selects the window created by New.
type Config struct {
	Width, Height int
	Title         string
	Visible       bool
	// BitDepth above 8 requests 16 bit color channels.
	BitDepth int
	// SwapInterval is passed to glfw.SwapInterval after creation; 1 syncs
	// EndFrame to the display refresh.
	SwapInterval int
}

// Context is a GLFW window implementing graphics.Context.
type Context struct {
	window *glfw.Window
	// cursor in framebuffer pixels, origin bottom-left
	cursorX, cursorY float64
	handlers         map[int]graphics.InputHandler
	nextHandler      int
	// A map to store functions to be called on key presses.
	keyCallbacks map[glfw.Key]func()
}

var _ graphics.Context = (*Context)(nil)

// New creates a window with an OpenGL 4.1 core context. Call it from the
// main thread after InitGraphics.
func New(cfg Config) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	if cfg.BitDepth > 8 {
		glfw.WindowHint(glfw.RedBits, 16)
		glfw.WindowHint(glfw.GreenBits, 16)
		glfw.WindowHint(glfw.BlueBits, 16)
	}

	if cfg.Visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	title := cfg.Title
	if title == "" {
		title = "goshadermate"
	}
	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, title, nil, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{
		window:       win,
		handlers:     make(map[int]graphics.InputHandler),
		keyCallbacks: make(map[glfw.Key]func()),
	}
	win.MakeContextCurrent()
	glfw.SwapInterval(cfg.SwapInterval)

	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetCursorPosCallback(c.glfwCursorCallback)
	win.SetMouseButtonCallback(c.glfwMouseButtonCallback)
	win.SetFramebufferSizeCallback(c.glfwFramebufferSizeCallback)
	return c, nil
}

// RegisterKeyCallback allows the main application to register a function to be
// called when a specific key is pressed.
func (c *Context) RegisterKeyCallback(key glfw.Key, f func()) {
	c.keyCallbacks[key] = f
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
	if action == glfw.Press || action == glfw.Repeat {
		if callback, ok := c.keyCallbacks[key]; ok {
			callback()
		}
	}
}

// toFramebuffer converts window coordinates to framebuffer pixels with the
// origin at the bottom-left corner.
func (c *Context) toFramebuffer(x, y float64) (float64, float64) {
	fbWidth, fbHeight := c.window.GetFramebufferSize()
	winWidth, winHeight := c.window.GetSize()
	scaleX, scaleY := 1.0, 1.0
	if winWidth > 0 && winHeight > 0 {
		scaleX = float64(fbWidth) / float64(winWidth)
		scaleY = float64(fbHeight) / float64(winHeight)
	}
	return x * scaleX, float64(fbHeight) - y*scaleY
}

func (c *Context) glfwCursorCallback(w *glfw.Window, x, y float64) {
	c.cursorX, c.cursorY = c.toFramebuffer(x, y)
	for _, h := range c.handlers {
		h.PointerMoved(c.cursorX, c.cursorY)
	}
}

func (c *Context) glfwMouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if button != glfw.MouseButtonLeft {
		return
	}
	c.cursorX, c.cursorY = c.toFramebuffer(w.GetCursorPos())
	for _, h := range c.handlers {
		h.PointerButton(action == glfw.Press, c.cursorX, c.cursorY)
	}
}

func (c *Context) glfwFramebufferSizeCallback(w *glfw.Window, width, height int) {
	for _, h := range c.handlers {
		h.Resized(width, height)
	}
}

// Listen installs h for pointer and framebuffer size events.
func (c *Context) Listen(h graphics.InputHandler) func() {
	id := c.nextHandler
	c.nextHandler++
	c.handlers[id] = h
	return func() { delete(c.handlers, id) }
}

// DetachCurrent makes no context current on the calling thread.
func (c *Context) DetachCurrent() {
	glfw.DetachCurrentContext()
}

// MakeCurrent makes the context current for the calling goroutine.
func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

// Shutdown destroys the window.
func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

// Close asks the window to close; ShouldClose reports true afterwards.
func (c *Context) Close() {
	c.window.SetShouldClose(true)
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) FramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Time() float64 {
	return glfw.GetTime()
}

// Window returns the underlying *glfw.Window.
func (c *Context) Window() *glfw.Window {
	return c.window
}

// InitGraphics initializes the main graphics subsystem (GLFW). Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	slog.Debug("GLFW initialized")
	return nil
}

// TerminateGraphics shuts down the graphics subsystem. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	slog.Debug("GLFW terminated")
}
