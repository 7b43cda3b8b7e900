// Package shader expands fragment sources into complete programs for a device:
// include resolution, boilerplate injection, entry-point wrapping and mapping
// of device compile errors back to source lines.
package shader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/richinsley/goshadermate/graphics"
)

// ErrInclude is returned in strict mode when an include target cannot be loaded.
var ErrInclude = errors.New("include failed")

// Loader returns the text of an include path.
type Loader func(ctx context.Context, path string) (string, error)

// Define is one injected macro. An empty Value emits a bare define.
type Define struct {
	Name  string
	Value string
}

func (d Define) String() string {
	if d.Value == "" {
		return "#define " + d.Name
	}
	return "#define " + d.Name + " " + d.Value
}

// Inject selects the boilerplate added around the user source.
type Inject struct {
	Header   bool // version and precision declarations
	Defines  bool
	MainWrap bool // synthesize main() for sources that only define mainImage
	Builtins bool // sampling shims and the output variable
}

// Any reports whether anything is injected.
func (i Inject) Any() bool {
	return i.Header || i.Defines || i.MainWrap || i.Builtins
}

// InjectAll enables every injection.
var InjectAll = Inject{Header: true, Defines: true, MainWrap: true, Builtins: true}

type Options struct {
	Caps    graphics.Capabilities
	Defines []Define
	Loader  Loader
	// Strict makes an include load failure abort preprocessing.
	Strict bool
	Inject Inject
	// EnableDerivatives enables GL_OES_standard_derivatives on GLES2 devices
	// that advertise it.
	EnableDerivatives bool
}

// LineSentinel resets the device line counter so that reported lines count
// from the first line of the user source.
const LineSentinel = "#line 1"

// wrapperLine numbers the synthesized main() far past any user line.
const wrapperLine = 100000

const builtinShims = `
#if __VERSION__ >= 300
#define texture2D(s,u)   texture(s,u)
#define textureCube(s,u) texture(s,u)
#define TEX(s,u)         texture(s,u)
#define TEX_LOD(s,u,l)   textureLod(s,u,l)
#else
#define TEX(s,u)         texture2D(s,u)
#define TEX_LOD(s,u,l)   texture2D(s,u)
#endif
`

var includeRe = regexp.MustCompile(`(?m)^[ \t]*#include\s+["<]([^">]+)[">]`)

// Preprocess expands includes in src and applies the injections selected by
// opts. With nothing injected the expanded source is returned as is.
func Preprocess(ctx context.Context, src string, opts Options) (string, error) {
	expanded, err := expandIncludes(ctx, src, opts, nil)
	if err != nil {
		return "", err
	}
	if !opts.Inject.Any() {
		return expanded, nil
	}
	modern := opts.Caps.Modern()

	var b strings.Builder
	if opts.Inject.Header {
		if v := opts.Caps.VersionDirective(); v != "" {
			b.WriteString(v + "\n")
		}
	}
	if opts.EnableDerivatives && !modern && opts.Caps.HasExtension("GL_OES_standard_derivatives") {
		b.WriteString("#extension GL_OES_standard_derivatives : enable\n")
	}
	if opts.Inject.Header {
		b.WriteString("precision highp float;\nprecision highp int;\n")
	}
	if opts.Inject.Builtins {
		b.WriteString(builtinShims)
		if modern {
			b.WriteString("out vec4 outColor;\n")
		}
	}
	if opts.Inject.Defines {
		for _, d := range opts.Defines {
			b.WriteString(d.String() + "\n")
		}
	}

	b.WriteString(LineSentinel + "\n")
	b.WriteString(expanded)

	if opts.Inject.MainWrap && NeedsWrap(expanded) {
		out := "gl_FragColor"
		if modern {
			out = "outColor"
		}
		fmt.Fprintf(&b, "\n#line %d\nvoid main(){\n  vec4 c;\n  mainImage(c, gl_FragCoord.xy);\n  %s = c;\n}", wrapperLine, out)
	}
	return b.String(), nil
}

// NeedsWrap reports whether src defines mainImage but no main.
func NeedsWrap(src string) bool {
	return strings.Contains(src, "mainImage(") && !strings.Contains(src, "void main(")
}

// expandIncludes replaces include directives depth first. chain holds the
// paths currently being expanded; a path already on it is skipped.
func expandIncludes(ctx context.Context, code string, opts Options, chain []string) (string, error) {
	matches := includeRe.FindAllStringSubmatchIndex(code, -1)
	if matches == nil {
		return code, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(code[last:m[0]])
		last = m[1]
		path := code[m[2]:m[3]]

		if onChain(chain, path) {
			slog.Warn("circular include skipped", "path", path)
			fmt.Fprintf(&b, "\n// skipped include %q (already included)\n", path)
			continue
		}

		text, err := load(ctx, opts.Loader, path)
		if err == nil {
			text, err = expandIncludes(ctx, text, opts, append(chain, path))
			if err != nil {
				return "", err
			}
		} else {
			if opts.Strict {
				return "", fmt.Errorf("%w: %q: %w", ErrInclude, path, err)
			}
			slog.Warn("failed to load include", "path", path, "error", err)
			fmt.Fprintf(&b, "\n// failed include %q\n", path)
			continue
		}
		fmt.Fprintf(&b, "\n// begin include %q\n%s\n// end include %q\n", path, text, path)
	}
	b.WriteString(code[last:])
	return b.String(), nil
}

func load(ctx context.Context, loader Loader, path string) (string, error) {
	if loader == nil {
		return "", fmt.Errorf("no include loader configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return loader(ctx, path)
}

func onChain(chain []string, path string) bool {
	for _, p := range chain {
		if p == path {
			return true
		}
	}
	return false
}
