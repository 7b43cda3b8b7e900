package graphics

import "fmt"

// InternalFormat is the storage format of a texture on the device.
type InternalFormat uint8

const (
	// InternalRGBA is the unsized RGBA format of GLES2-class devices.
	InternalRGBA InternalFormat = iota
	InternalRGBA8
	InternalRGBA16F
	InternalRGBA32F
	InternalR8
	InternalLuminance
	InternalDepth16
)

// DataFormat is the layout of client pixel data.
type DataFormat uint8

const (
	FormatRGBA DataFormat = iota
	FormatRed
	FormatLuminance
	FormatDepth
)

// ComponentType is the type of each pixel component.
type ComponentType uint8

const (
	UnsignedByte ComponentType = iota
	HalfFloat
	Float
	UnsignedShort
)

// PixelFormat is the complete internal format / format / component type
// combination used to allocate a texture.
type PixelFormat struct {
	Internal InternalFormat
	Format   DataFormat
	Type     ComponentType
}

var internalNames = [...]string{"RGBA", "RGBA8", "RGBA16F", "RGBA32F", "R8", "LUMINANCE", "DEPTH_COMPONENT16"}
var formatNames = [...]string{"RGBA", "RED", "LUMINANCE", "DEPTH_COMPONENT"}
var typeNames = [...]string{"UNSIGNED_BYTE", "HALF_FLOAT", "FLOAT", "UNSIGNED_SHORT"}

func (f PixelFormat) String() string {
	return fmt.Sprintf("%s/%s/%s", internalNames[f.Internal], formatNames[f.Format], typeNames[f.Type])
}

// Components returns the number of components per pixel of client data.
func (f PixelFormat) Components() int {
	if f.Format == FormatRGBA {
		return 4
	}
	return 1
}

// IsFloat reports whether the format stores floating point components.
func (f PixelFormat) IsFloat() bool {
	return f.Type == HalfFloat || f.Type == Float
}

// RGBA8 returns the guaranteed-renderable 8-bit format for the API.
func RGBA8(api API) PixelFormat {
	if api == APIGLES2 {
		return PixelFormat{InternalRGBA, FormatRGBA, UnsignedByte}
	}
	return PixelFormat{InternalRGBA8, FormatRGBA, UnsignedByte}
}

// Depth16 is the depth attachment format of pass targets.
var Depth16 = PixelFormat{InternalDepth16, FormatDepth, UnsignedShort}

// Filter selects texture minification and magnification filtering.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterNearest
)

// Wrap selects texture coordinate wrapping.
type Wrap uint8

const (
	WrapClamp Wrap = iota
	WrapRepeat
)

// ParseFilter maps a declaration value to a Filter. Anything but "nearest" is linear.
func ParseFilter(s string) Filter {
	if s == "nearest" {
		return FilterNearest
	}
	return FilterLinear
}

// ParseWrap maps a declaration value to a Wrap. Anything but "repeat" clamps.
func ParseWrap(s string) Wrap {
	if s == "repeat" {
		return WrapRepeat
	}
	return WrapClamp
}
