package softgpu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/richinsley/goshadermate/graphics"
)

// Kernel computes the color of one fragment.
type Kernel func(f *Fragment) [4]float32

var (
	kernelsMu sync.RWMutex
	kernels   = map[string]Kernel{}
)

// RegisterKernel makes k available to fragment sources containing
// "#pragma kernel name".
func RegisterKernel(name string, k Kernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[name] = k
}

func lookupKernel(name string) (Kernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[name]
	return k, ok
}

var (
	uniformRe = regexp.MustCompile(`^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*(?:\[\s*(\d+)\s*\])?\s*;`)
	blockRe   = regexp.MustCompile(`^\s*(?:layout\s*\([^)]*\)\s*)?uniform\s+(\w+)\s*\{?\s*$`)
	lineRe    = regexp.MustCompile(`^\s*#line\s+(\d+)`)
	errorRe   = regexp.MustCompile(`^\s*#error\s*(.*)$`)
	pragmaRe  = regexp.MustCompile(`^\s*#pragma\s+kernel\s+([\w.]+)`)
)

type uniformDecl struct {
	name  string
	typ   string
	size  int
	array bool
}

type program struct {
	kernel    Kernel
	uniforms  []uniformDecl
	blocks    []graphics.UniformBlock
	locations map[string]graphics.Location
	values    map[graphics.Location]graphics.UniformValue
}

// parsed is the result of scanning one stage.
type parsed struct {
	kernel   string
	uniforms []uniformDecl
	blocks   []graphics.UniformBlock
}

// scan reads a stage the way a compiler front end would report it: #error
// lines become device log entries numbered with #line resets applied.
func scan(src string) (parsed, string) {
	var p parsed
	var log strings.Builder
	lines := strings.Split(src, "\n")
	logical := 1
	inBlock := -1
	for _, l := range lines {
		next := logical + 1
		switch {
		case lineRe.MatchString(l):
			n, _ := strconv.Atoi(lineRe.FindStringSubmatch(l)[1])
			next = n
		case errorRe.MatchString(l):
			fmt.Fprintf(&log, "ERROR: 0:%d: '#error' : %s\n", logical, strings.TrimSpace(errorRe.FindStringSubmatch(l)[1]))
		case pragmaRe.MatchString(l):
			p.kernel = pragmaRe.FindStringSubmatch(l)[1]
		case inBlock >= 0:
			if strings.Contains(l, "}") {
				inBlock = -1
			} else if strings.TrimSpace(l) != "" && !strings.HasPrefix(strings.TrimSpace(l), "{") {
				p.blocks[inBlock].Size += 16
			}
		case blockRe.MatchString(l):
			p.blocks = append(p.blocks, graphics.UniformBlock{Index: len(p.blocks), Name: blockRe.FindStringSubmatch(l)[1]})
			inBlock = len(p.blocks) - 1
		case uniformRe.MatchString(l):
			m := uniformRe.FindStringSubmatch(l)
			d := uniformDecl{typ: m[1], name: m[2], size: 1}
			if m[3] != "" {
				d.size, _ = strconv.Atoi(m[3])
				d.array = true
			}
			p.uniforms = append(p.uniforms, d)
		}
		logical = next
	}
	return p, log.String()
}

func link(vertex, fragment string) (*program, error) {
	if _, log := scan(vertex); log != "" {
		return nil, &graphics.CompileError{Stage: graphics.StageVertex, Log: log}
	}
	fs, log := scan(fragment)
	if log != "" {
		return nil, &graphics.CompileError{Stage: graphics.StageFragment, Log: log}
	}
	if fs.kernel == "" {
		return nil, &graphics.CompileError{Stage: graphics.StageFragment, Log: "ERROR: 0:0: no kernel pragma\n"}
	}
	k, ok := lookupKernel(fs.kernel)
	if !ok {
		return nil, &graphics.CompileError{Stage: graphics.StageLink, Log: fmt.Sprintf("unknown kernel %q", fs.kernel)}
	}
	p := &program{
		kernel:    k,
		uniforms:  fs.uniforms,
		blocks:    fs.blocks,
		locations: make(map[string]graphics.Location),
		values:    make(map[graphics.Location]graphics.UniformValue),
	}
	for i, u := range fs.uniforms {
		loc := graphics.Location(i)
		p.locations[u.name] = loc
		if u.array {
			p.locations[u.name+"[0]"] = loc
		}
	}
	return p, nil
}

func (p *program) active() []graphics.UniformInfo {
	out := make([]graphics.UniformInfo, len(p.uniforms))
	for i, u := range p.uniforms {
		name := u.name
		if u.array {
			name += "[0]"
		}
		out[i] = graphics.UniformInfo{Name: name, Size: u.size}
	}
	return out
}

func (p *program) value(name string) (graphics.UniformValue, bool) {
	loc, ok := p.locations[name]
	if !ok {
		return graphics.UniformValue{}, false
	}
	v, ok := p.values[loc]
	return v, ok
}
