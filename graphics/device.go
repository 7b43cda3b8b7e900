package graphics

import "fmt"

// Object is a raw device object name. Zero never names a live object and
// stands for the default framebuffer where a framebuffer is expected.
type Object uint32

// ObjectKind selects how a device object is destroyed.
type ObjectKind uint8

const (
	KindTexture2D ObjectKind = iota
	KindTextureCube
	KindFramebuffer
	KindBuffer
	KindProgram
)

func (k ObjectKind) String() string {
	switch k {
	case KindTexture2D:
		return "texture2D"
	case KindTextureCube:
		return "textureCube"
	case KindFramebuffer:
		return "framebuffer"
	case KindBuffer:
		return "buffer"
	case KindProgram:
		return "program"
	}
	return fmt.Sprintf("ObjectKind(%d)", k)
}

// TextureTarget is the binding point of a texture.
type TextureTarget uint8

const (
	Texture2D TextureTarget = iota
	TextureCube
)

// Location is a uniform location inside a program; -1 means absent.
type Location int32

// API identifies the shading language generation a device accepts.
type API uint8

const (
	// APIGLES2 is a WebGL1 / GLSL ES 1.00 class device.
	APIGLES2 API = iota
	// APIGLES3 is a WebGL2 / GLSL ES 3.00 class device.
	APIGLES3
	// APIGL41 is a desktop OpenGL 4.1 core device.
	APIGL41
)

func (a API) String() string {
	switch a {
	case APIGLES2:
		return "GLES2"
	case APIGLES3:
		return "GLES3"
	case APIGL41:
		return "GL41"
	}
	return fmt.Sprintf("API(%d)", a)
}

// Capabilities describes what a device accepts.
type Capabilities struct {
	API        API
	Extensions map[string]bool
}

// Modern reports whether the device accepts sized formats and GLSL 3.00+.
func (c Capabilities) Modern() bool {
	return c.API != APIGLES2
}

func (c Capabilities) HasExtension(name string) bool {
	return c.Extensions[name]
}

// VersionDirective returns the #version line for fragment sources, or "" when
// the language default applies.
func (c Capabilities) VersionDirective() string {
	switch c.API {
	case APIGLES3:
		return "#version 300 es"
	case APIGL41:
		return "#version 410 core"
	}
	return ""
}

// TextureDesc describes a 2D texture allocation. Pixels may be nil.
type TextureDesc struct {
	Width, Height int
	Format        PixelFormat
	Filter        Filter
	Wrap          Wrap
	Pixels        []byte
}

// CubeDesc describes a cube map allocation; Faces are RGBA8 in +X,-X,+Y,-Y,+Z,-Z order.
type CubeDesc struct {
	Size   int
	Filter Filter
	Wrap   Wrap
	Faces  [6][]byte
}

// UniformInfo is one active uniform as reported by the device. Array uniforms
// are reported with a "[0]" suffix.
type UniformInfo struct {
	Name string
	Size int
}

// UniformBlock is one active uniform block of a program.
type UniformBlock struct {
	Index int
	Name  string
	Size  int
}

// Stage names a shader stage.
type Stage string

const (
	StageVertex   Stage = "vertex"
	StageFragment Stage = "fragment"
	StageLink     Stage = "link"
)

// CompileError is returned when a program fails to compile or link. Log is the
// device info log verbatim.
type CompileError struct {
	Stage Stage
	Log   string
}

func (e *CompileError) Error() string {
	if e.Stage == StageLink {
		return fmt.Sprintf("failed to link program: %s", e.Log)
	}
	return fmt.Sprintf("failed to compile %s shader: %s", e.Stage, e.Log)
}

// Device is the GPU boundary of the engine. All methods must be called from the
// goroutine that owns the device context.
type Device interface {
	Capabilities() Capabilities

	CreateTexture(desc TextureDesc) (Object, error)
	// UploadTexture respecifies the storage and contents of an existing 2D texture.
	UploadTexture(tex Object, desc TextureDesc) error
	CreateCubeMap(desc CubeDesc) (Object, error)
	// CreateFramebuffer attaches color (and depth when non-zero) textures.
	CreateFramebuffer(color, depth Object) (Object, error)
	FramebufferComplete(fb Object) bool

	CompileProgram(vertex, fragment string) (Object, error)
	ActiveUniforms(prog Object) []UniformInfo
	ActiveUniformBlocks(prog Object) []UniformBlock
	UniformLocation(prog Object, name string) Location

	// CreateQuad uploads a two-component vertex buffer for DrawArrays.
	CreateQuad(vertices []float32) (Object, error)

	BindFramebuffer(fb Object)
	Viewport(x, y, width, height int)
	Clear()
	UseProgram(prog Object)
	BindQuad(quad Object)
	BindTexture(unit int, target TextureTarget, tex Object)
	SetUniform(loc Location, v UniformValue)
	DrawArrays(first, count int)

	// ReadPixels returns RGBA components in [0,1] (or unclamped for float
	// targets), bottom row first.
	ReadPixels(fb Object, x, y, width, height int) ([]float32, error)

	Delete(kind ObjectKind, obj Object)
}
