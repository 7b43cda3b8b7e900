package renderer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
)

// uniformTable maps declared uniform names to locations. Arrays are keyed
// both as "name" and "name[0]".
type uniformTable map[string]graphics.Location

func introspect(dev graphics.Device, prog graphics.Object) uniformTable {
	t := make(uniformTable)
	for _, u := range dev.ActiveUniforms(prog) {
		loc := dev.UniformLocation(prog, u.Name)
		if loc < 0 {
			continue
		}
		t[u.Name] = loc
		if base, ok := strings.CutSuffix(u.Name, "[0]"); ok {
			t[base] = loc
		}
	}
	return t
}

func blockTable(dev graphics.Device, prog graphics.Object) map[string]graphics.UniformBlock {
	blocks := dev.ActiveUniformBlocks(prog)
	t := make(map[string]graphics.UniformBlock, len(blocks))
	for _, b := range blocks {
		t[b.Name] = b
	}
	return t
}

// set writes v to name if the program declared it.
func (t uniformTable) set(dev graphics.Device, name string, v graphics.UniformValue) {
	if loc, ok := t[name]; ok {
		dev.SetUniform(loc, v)
	}
}

type staticUniform struct {
	name  string
	loc   graphics.Location
	value graphics.UniformValue
}

// staticUniforms validates the declared uniforms of a pass against its
// program. Invalid declarations fail in strict mode and are dropped with a
// warning otherwise.
func staticUniforms(pass string, decls []api.UniformDecl, table uniformTable, strict bool) ([]staticUniform, error) {
	var out []staticUniform
	for _, d := range decls {
		v, err := d.Value()
		if err == nil {
			if loc, ok := table[d.Name]; ok {
				out = append(out, staticUniform{name: d.Name, loc: loc, value: v})
				continue
			}
			err = fmt.Errorf("unknown uniform: %s", d.Name)
		}
		if strict {
			return nil, fmt.Errorf("%w: pass %s: %w", ErrUniform, pass, err)
		}
		slog.Warn("skipping uniform", "pass", pass, "error", err)
	}
	return out, nil
}

// pointer is the pointer state shared by input callbacks and the frame loop.
type pointer struct {
	x, y           float64
	clickX, clickY float64
	down           bool
}

// mouse returns the iMouse value: position plus the press anchor, zeroed
// while released.
func (p pointer) mouse() graphics.UniformValue {
	if !p.down {
		return graphics.Vec4(float32(p.x), float32(p.y), 0, 0)
	}
	return graphics.Vec4(float32(p.x), float32(p.y), float32(p.clickX), float32(p.clickY))
}

// date returns year, month, day and whole seconds since midnight.
func date(t time.Time) graphics.UniformValue {
	secs := t.Hour()*3600 + t.Minute()*60 + t.Second()
	return graphics.Vec4(float32(t.Year()), float32(t.Month()), float32(t.Day()), float32(secs))
}

// frameUniforms are the per-frame values shared by every pass.
type frameUniforms struct {
	info    FrameInfo
	date    graphics.UniformValue
	pointer pointer
}

// bindBuiltins writes the built-in uniforms the program declared, under
// both the iName and u_name conventions.
func (t uniformTable) bindBuiltins(dev graphics.Device, fu *frameUniforms, w, h int) {
	t.set(dev, "iTime", graphics.Float1(float32(fu.info.Time)))
	t.set(dev, "u_time", graphics.Float1(float32(fu.info.Time)))
	t.set(dev, "iTimeDelta", graphics.Float1(float32(fu.info.DT)))
	t.set(dev, "u_delta", graphics.Float1(float32(fu.info.DT)))
	t.set(dev, "iFrame", graphics.Int1(int32(fu.info.Frame)))
	t.set(dev, "u_frame", graphics.Int1(int32(fu.info.Frame)))
	t.set(dev, "iFrameRate", graphics.Float1(float32(fu.info.FPS)))
	t.set(dev, "iResolution", graphics.Vec3(float32(w), float32(h), 0))
	t.set(dev, "u_resolution", graphics.Vec2(float32(w), float32(h)))
	t.set(dev, "iDate", fu.date)
	t.set(dev, "u_date", fu.date)
	t.set(dev, "iMouse", fu.pointer.mouse())
	t.set(dev, "u_mouse", graphics.Vec2(float32(fu.pointer.x), float32(fu.pointer.y)))
}
