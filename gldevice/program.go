package gldevice

import (
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/shader"
	"github.com/richinsley/goshadermate/translator"
)

type program struct {
	// names is nil when the fragment source was compiled untranslated
	names *translator.Result
}

func (p *program) mapped(name string) string {
	if p == nil || p.names == nil {
		return name
	}
	return p.names.Mapped(name)
}

func (p *program) declared(name string) string {
	if p == nil || p.names == nil {
		return name
	}
	return p.names.Declared(name)
}

// CompileProgram compiles and links both stages. With a translator attached
// the fragment stage is translated first and the vertex stage is replaced by
// its desktop equivalent.
func (d *Device) CompileProgram(vertex, fragment string) (graphics.Object, error) {
	p := &program{}
	if d.tr != nil {
		res, err := d.tr.Fragment(fragment)
		if err != nil {
			return 0, &graphics.CompileError{Stage: graphics.StageFragment, Log: err.Error()}
		}
		p.names = res
		fragment = res.Code
		vertex = shader.VertexSource(graphics.APIGL41)
	}

	vs, err := compileShader(vertex, gl.VERTEX_SHADER, graphics.StageVertex)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(fragment, gl.FRAGMENT_SHADER, graphics.StageFragment)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.BindAttribLocation(prog, 0, gl.Str(shader.PositionAttribute+"\x00"))
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(prog, logLength, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, &graphics.CompileError{Stage: graphics.StageLink, Log: strings.TrimRight(log, "\x00")}
	}
	gl.DetachShader(prog, vs)
	gl.DetachShader(prog, fs)

	d.programs[graphics.Object(prog)] = p
	return graphics.Object(prog), nil
}

func compileShader(source string, shaderType uint32, stage graphics.Stage) (uint32, error) {
	sh := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(sh, 1, csources, nil)
	free()
	gl.CompileShader(sh)

	var status int32
	gl.GetShaderiv(sh, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(sh, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(sh, logLength, nil, gl.Str(log))
		gl.DeleteShader(sh)
		return 0, &graphics.CompileError{Stage: stage, Log: strings.TrimRight(log, "\x00")}
	}
	return sh, nil
}

// ActiveUniforms lists uniforms of the default block under their declared
// names.
func (d *Device) ActiveUniforms(prog graphics.Object) []graphics.UniformInfo {
	p := d.programs[prog]
	var n, maxLen int32
	gl.GetProgramiv(uint32(prog), gl.ACTIVE_UNIFORMS, &n)
	gl.GetProgramiv(uint32(prog), gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)
	if n == 0 {
		return nil
	}
	buf := make([]uint8, maxLen+1)
	out := make([]graphics.UniformInfo, 0, n)
	for i := uint32(0); i < uint32(n); i++ {
		var block int32
		gl.GetActiveUniformsiv(uint32(prog), 1, &i, gl.UNIFORM_BLOCK_INDEX, &block)
		if block >= 0 {
			continue
		}
		var length, size int32
		var xtype uint32
		gl.GetActiveUniform(uint32(prog), i, maxLen+1, &length, &size, &xtype, &buf[0])
		out = append(out, graphics.UniformInfo{
			Name: p.declared(string(buf[:length])),
			Size: int(size),
		})
	}
	return out
}

func (d *Device) ActiveUniformBlocks(prog graphics.Object) []graphics.UniformBlock {
	p := d.programs[prog]
	var n, maxLen int32
	gl.GetProgramiv(uint32(prog), gl.ACTIVE_UNIFORM_BLOCKS, &n)
	gl.GetProgramiv(uint32(prog), gl.ACTIVE_UNIFORM_BLOCK_MAX_NAME_LENGTH, &maxLen)
	if n == 0 {
		return nil
	}
	buf := make([]uint8, maxLen+1)
	out := make([]graphics.UniformBlock, 0, n)
	for i := uint32(0); i < uint32(n); i++ {
		var length, size int32
		gl.GetActiveUniformBlockName(uint32(prog), i, maxLen+1, &length, &buf[0])
		gl.GetActiveUniformBlockiv(uint32(prog), i, gl.UNIFORM_BLOCK_DATA_SIZE, &size)
		out = append(out, graphics.UniformBlock{
			Index: int(i),
			Name:  p.declared(string(buf[:length])),
			Size:  int(size),
		})
	}
	return out
}

func (d *Device) UniformLocation(prog graphics.Object, name string) graphics.Location {
	mapped := d.programs[prog].mapped(name)
	return graphics.Location(gl.GetUniformLocation(uint32(prog), gl.Str(mapped+"\x00")))
}

func (d *Device) SetUniform(loc graphics.Location, v graphics.UniformValue) {
	if loc < 0 {
		return
	}
	l := int32(loc)
	f, n := v.Floats, int32(v.Count())
	switch v.Kind {
	case graphics.Uniform1f:
		gl.Uniform1f(l, f[0])
	case graphics.Uniform2f:
		gl.Uniform2f(l, f[0], f[1])
	case graphics.Uniform3f:
		gl.Uniform3f(l, f[0], f[1], f[2])
	case graphics.Uniform4f:
		gl.Uniform4f(l, f[0], f[1], f[2], f[3])
	case graphics.Uniform1i:
		gl.Uniform1i(l, v.Ints[0])
	case graphics.Uniform2i:
		gl.Uniform2i(l, v.Ints[0], v.Ints[1])
	case graphics.Uniform3i:
		gl.Uniform3i(l, v.Ints[0], v.Ints[1], v.Ints[2])
	case graphics.Uniform4i:
		gl.Uniform4i(l, v.Ints[0], v.Ints[1], v.Ints[2], v.Ints[3])
	case graphics.Uniform1fv:
		gl.Uniform1fv(l, n, &f[0])
	case graphics.Uniform2fv:
		gl.Uniform2fv(l, n, &f[0])
	case graphics.Uniform3fv:
		gl.Uniform3fv(l, n, &f[0])
	case graphics.Uniform4fv:
		gl.Uniform4fv(l, n, &f[0])
	case graphics.UniformMat3:
		gl.UniformMatrix3fv(l, n, v.Transpose, &f[0])
	case graphics.UniformMat4:
		gl.UniformMatrix4fv(l, n, v.Transpose, &f[0])
	}
}
