package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/shader"
)

// ErrInvalidConfig is wrapped by every declaration decoding and
// normalization error.
var ErrInvalidConfig = errors.New("invalid pass configuration")

// MaxChannels is the number of texture inputs of a pass.
const MaxChannels = 4

// SizeKind selects how a pass target is sized.
type SizeKind uint8

const (
	SizeScreen SizeKind = iota
	SizeHalf
	SizeFixed
)

// Size is the declared size of a pass. The zero value is the canvas size.
type Size struct {
	Kind          SizeKind
	Width, Height int
}

var (
	Screen = Size{Kind: SizeScreen}
	Half   = Size{Kind: SizeHalf}
)

func Fixed(w, h int) Size {
	return Size{Kind: SizeFixed, Width: w, Height: h}
}

// Resolve returns the pixel size for a canvas of w x h.
func (s Size) Resolve(w, h int) (int, int) {
	switch s.Kind {
	case SizeHalf:
		return w >> 1, h >> 1
	case SizeFixed:
		return s.Width, s.Height
	}
	return w, h
}

func (s Size) String() string {
	switch s.Kind {
	case SizeHalf:
		return "half"
	case SizeFixed:
		return fmt.Sprintf("%dx%d", s.Width, s.Height)
	}
	return "screen"
}

// ChannelKind is the kind of input bound to a channel slot.
type ChannelKind uint8

const (
	ChannelImage ChannelKind = iota
	ChannelVideo
	ChannelAudio
	ChannelCubeMap
	ChannelPass
	ChannelMic
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelImage:
		return "image"
	case ChannelVideo:
		return "video"
	case ChannelAudio:
		return "audio"
	case ChannelCubeMap:
		return "cubemap"
	case ChannelPass:
		return "pass"
	case ChannelMic:
		return "mic"
	}
	return fmt.Sprintf("ChannelKind(%d)", k)
}

// DefaultFFTSize is used by audio channels that do not declare one.
const DefaultFFTSize = 512

// Channel is one input slot of a pass.
type Channel struct {
	Kind ChannelKind
	// URL locates image, video and audio sources.
	URL      string
	CubeURLs [6]string
	// Pass names the producing pass of a pass channel.
	Pass string
	// Previous requests the producer's previous frame.
	Previous bool
	FFTSize  int
	Filter   graphics.Filter
	Wrap     graphics.Wrap
	FlipY    bool
}

// External reports whether the channel is loaded from outside the pipeline.
func (c *Channel) External() bool {
	return c.Kind != ChannelPass
}

// UniformDecl is a static uniform value declared on a pass.
type UniformDecl struct {
	Name      string
	Type      string
	Values    []float64
	Transpose bool
}

// Value validates the declaration and returns the typed upload.
func (u UniformDecl) Value() (graphics.UniformValue, error) {
	kind, err := graphics.ParseUniformKind(u.Type)
	if err != nil {
		return graphics.UniformValue{}, fmt.Errorf("uniform %s: %w", u.Name, err)
	}
	v, err := graphics.NewUniform(kind, u.Values, u.Transpose)
	if err != nil {
		return graphics.UniformValue{}, fmt.Errorf("uniform %s: %w", u.Name, err)
	}
	return v, nil
}

// Pass is one declared shader pass.
type Pass struct {
	Name string
	// Source is inline shader text or a location to fetch it from.
	Source   string
	Size     Size
	Screen   bool
	Feedback bool
	Float    bool
	Depth    bool
	Filter   graphics.Filter
	Wrap     graphics.Wrap
	Channels [MaxChannels]*Channel
	Defines  []shader.Define
	Uniforms []UniformDecl
}

// SinglePass wraps one shader into an implicit full-screen pass named "A".
func SinglePass(source string) Pass {
	return Pass{Name: "A", Source: source, Size: Screen, Screen: true}
}

// IsInline reports whether src is shader text rather than a location.
func IsInline(src string) bool {
	s := strings.TrimSpace(src)
	return strings.Contains(s, "\n") || strings.HasPrefix(s, "void") || strings.HasPrefix(s, "#")
}
