package gldevice

import (
	"fmt"
	"unsafe"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/goshadermate/graphics"
)

var internalFormats = map[graphics.InternalFormat]int32{
	graphics.InternalRGBA:    gl.RGBA,
	graphics.InternalRGBA8:   gl.RGBA8,
	graphics.InternalRGBA16F: gl.RGBA16F,
	graphics.InternalRGBA32F: gl.RGBA32F,
	graphics.InternalR8:      gl.R8,
	// the core profile has no luminance textures; see swizzleLuminance
	graphics.InternalLuminance: gl.R8,
	graphics.InternalDepth16:   gl.DEPTH_COMPONENT16,
}

var dataFormats = map[graphics.DataFormat]uint32{
	graphics.FormatRGBA:      gl.RGBA,
	graphics.FormatRed:       gl.RED,
	graphics.FormatLuminance: gl.RED,
	graphics.FormatDepth:     gl.DEPTH_COMPONENT,
}

var componentTypes = map[graphics.ComponentType]uint32{
	graphics.UnsignedByte:  gl.UNSIGNED_BYTE,
	graphics.HalfFloat:     gl.HALF_FLOAT,
	graphics.Float:         gl.FLOAT,
	graphics.UnsignedShort: gl.UNSIGNED_SHORT,
}

func glTarget(t graphics.TextureTarget) uint32 {
	if t == graphics.TextureCube {
		return gl.TEXTURE_CUBE_MAP
	}
	return gl.TEXTURE_2D
}

func setSampling(target uint32, filter graphics.Filter, wrap graphics.Wrap) {
	f := int32(gl.LINEAR)
	if filter == graphics.FilterNearest {
		f = gl.NEAREST
	}
	w := int32(gl.CLAMP_TO_EDGE)
	if wrap == graphics.WrapRepeat {
		w = gl.REPEAT
	}
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, f)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, f)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, w)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, w)
	if target == gl.TEXTURE_CUBE_MAP {
		gl.TexParameteri(target, gl.TEXTURE_WRAP_R, w)
	}
}

// swizzleLuminance makes a single channel texture sample as (l, l, l, 1).
func swizzleLuminance() {
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_SWIZZLE_G, gl.RED)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_SWIZZLE_B, gl.RED)
}

func (d *Device) texImage(desc graphics.TextureDesc) error {
	internal, ok := internalFormats[desc.Format.Internal]
	if !ok {
		return fmt.Errorf("unsupported internal format %s", desc.Format)
	}
	var pix unsafe.Pointer
	if len(desc.Pixels) > 0 {
		pix = gl.Ptr(desc.Pixels)
	}
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, int32(desc.Width), int32(desc.Height), 0,
		dataFormats[desc.Format.Format], componentTypes[desc.Format.Type], pix)
	setSampling(gl.TEXTURE_2D, desc.Filter, desc.Wrap)
	if desc.Format.Internal == graphics.InternalLuminance {
		swizzleLuminance()
	}
	return glError("texture " + desc.Format.String())
}

func (d *Device) CreateTexture(desc graphics.TextureDesc) (graphics.Object, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	err := d.texImage(desc)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, err
	}
	return graphics.Object(tex), nil
}

func (d *Device) UploadTexture(tex graphics.Object, desc graphics.TextureDesc) error {
	gl.BindTexture(gl.TEXTURE_2D, uint32(tex))
	defer gl.BindTexture(gl.TEXTURE_2D, 0)
	return d.texImage(desc)
}

func (d *Device) CreateCubeMap(desc graphics.CubeDesc) (graphics.Object, error) {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, tex)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	for i, face := range desc.Faces {
		if len(face) != desc.Size*desc.Size*4 {
			gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)
			gl.DeleteTextures(1, &tex)
			return 0, fmt.Errorf("cube face %d has %d bytes, want %d", i, len(face), desc.Size*desc.Size*4)
		}
		gl.TexImage2D(gl.TEXTURE_CUBE_MAP_POSITIVE_X+uint32(i), 0, gl.RGBA8, int32(desc.Size), int32(desc.Size), 0,
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&face[0]))
	}
	setSampling(gl.TEXTURE_CUBE_MAP, desc.Filter, desc.Wrap)
	gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)
	if err := glError("cube map"); err != nil {
		gl.DeleteTextures(1, &tex)
		return 0, err
	}
	return graphics.Object(tex), nil
}

// CreateFramebuffer attaches color, and depth when non-zero. The previously
// bound framebuffer is restored.
func (d *Device) CreateFramebuffer(color, depth graphics.Object) (graphics.Object, error) {
	var fbo uint32
	gl.GenFramebuffers(1, &fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, uint32(color), 0)
	if depth != 0 {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, uint32(depth), 0)
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(d.fb))
	if err := glError("framebuffer"); err != nil {
		gl.DeleteFramebuffers(1, &fbo)
		return 0, err
	}
	return graphics.Object(fbo), nil
}

func (d *Device) FramebufferComplete(fb graphics.Object) bool {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(fb))
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(d.fb))
	return status == gl.FRAMEBUFFER_COMPLETE
}
