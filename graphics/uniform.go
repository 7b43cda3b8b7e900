package graphics

import (
	"errors"
	"fmt"
)

// UniformKind is the type tag of a uniform upload.
type UniformKind uint8

const (
	Uniform1f UniformKind = iota
	Uniform2f
	Uniform3f
	Uniform4f
	Uniform1i
	Uniform2i
	Uniform3i
	Uniform4i
	Uniform1fv
	Uniform2fv
	Uniform3fv
	Uniform4fv
	UniformMat3
	UniformMat4
)

var uniformTags = [...]string{
	"1f", "2f", "3f", "4f",
	"1i", "2i", "3i", "4i",
	"1fv", "2fv", "3fv", "4fv",
	"Matrix3fv", "Matrix4fv",
}

func (k UniformKind) String() string {
	if int(k) < len(uniformTags) {
		return uniformTags[k]
	}
	return fmt.Sprintf("UniformKind(%d)", k)
}

// ErrUnknownUniformKind is returned by ParseUniformKind for an unrecognized tag.
var ErrUnknownUniformKind = errors.New("unknown uniform type")

// ParseUniformKind maps a type tag such as "3fv" or "Matrix4fv" to its kind.
func ParseUniformKind(tag string) (UniformKind, error) {
	for i, t := range uniformTags {
		if t == tag {
			return UniformKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownUniformKind, tag)
}

// Width returns the number of components of one element of the kind.
func (k UniformKind) Width() int {
	switch k {
	case Uniform1f, Uniform1i, Uniform1fv:
		return 1
	case Uniform2f, Uniform2i, Uniform2fv:
		return 2
	case Uniform3f, Uniform3i, Uniform3fv:
		return 3
	case Uniform4f, Uniform4i, Uniform4fv:
		return 4
	case UniformMat3:
		return 9
	case UniformMat4:
		return 16
	}
	return 0
}

// IsInt reports whether the kind uploads integers.
func (k UniformKind) IsInt() bool {
	return k >= Uniform1i && k <= Uniform4i
}

// IsArray reports whether the kind accepts any multiple of its width.
func (k UniformKind) IsArray() bool {
	return k >= Uniform1fv
}

// UniformValue is a typed uniform upload. Exactly one of Floats or Ints is set.
type UniformValue struct {
	Kind      UniformKind
	Floats    []float32
	Ints      []int32
	Transpose bool
}

// Count returns the number of array elements carried by the value.
func (v UniformValue) Count() int {
	n := len(v.Floats)
	if v.Kind.IsInt() {
		n = len(v.Ints)
	}
	return n / v.Kind.Width()
}

// NewUniform builds a value of the given kind from generic numbers, checking
// the component count.
func NewUniform(kind UniformKind, values []float64, transpose bool) (UniformValue, error) {
	w := kind.Width()
	if w == 0 {
		return UniformValue{}, fmt.Errorf("%w %d", ErrUnknownUniformKind, kind)
	}
	if kind.IsArray() {
		if len(values) == 0 || len(values)%w != 0 {
			return UniformValue{}, fmt.Errorf("uniform %s needs a multiple of %d values, got %d", kind, w, len(values))
		}
	} else if len(values) != w {
		return UniformValue{}, fmt.Errorf("uniform %s needs %d values, got %d", kind, w, len(values))
	}
	v := UniformValue{Kind: kind, Transpose: transpose}
	if kind.IsInt() {
		v.Ints = make([]int32, len(values))
		for i, x := range values {
			v.Ints[i] = int32(x)
		}
		return v, nil
	}
	v.Floats = make([]float32, len(values))
	for i, x := range values {
		v.Floats[i] = float32(x)
	}
	return v, nil
}

func Float1(x float32) UniformValue {
	return UniformValue{Kind: Uniform1f, Floats: []float32{x}}
}

func Vec2(x, y float32) UniformValue {
	return UniformValue{Kind: Uniform2f, Floats: []float32{x, y}}
}

func Vec3(x, y, z float32) UniformValue {
	return UniformValue{Kind: Uniform3f, Floats: []float32{x, y, z}}
}

func Vec4(x, y, z, w float32) UniformValue {
	return UniformValue{Kind: Uniform4f, Floats: []float32{x, y, z, w}}
}

func Int1(x int32) UniformValue {
	return UniformValue{Kind: Uniform1i, Ints: []int32{x}}
}

func Float1v(xs ...float32) UniformValue {
	return UniformValue{Kind: Uniform1fv, Floats: xs}
}

func Float3v(xs ...float32) UniformValue {
	return UniformValue{Kind: Uniform3fv, Floats: xs}
}
