// Package translator converts GLSL ES 3.00 fragment sources into desktop
// GLSL 4.10 and keeps the renamed identifiers of every translated source.
package translator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

// Translator wraps a shader translator instance. It is safe for use by one
// goroutine at a time.
type Translator struct {
	st *gst.ShaderTranslator
	mu sync.Mutex
}

// Result is a translated fragment source.
type Result struct {
	Code string
	// Names maps identifiers as declared in the input to their names in Code.
	Names map[string]string
}

// Mapped returns the translated name of a declared identifier. Array
// uniforms may be given with or without their "[0]" suffix.
func (r *Result) Mapped(name string) string {
	base, suffix := name, ""
	if i := strings.IndexByte(name, '['); i >= 0 {
		base, suffix = name[:i], name[i:]
	}
	if m, ok := r.Names[base]; ok {
		return m + suffix
	}
	return name
}

// Declared is the inverse of Mapped.
func (r *Result) Declared(mapped string) string {
	base, suffix := mapped, ""
	if i := strings.IndexByte(mapped, '['); i >= 0 {
		base, suffix = mapped[:i], mapped[i:]
	}
	for name, m := range r.Names {
		if m == base {
			return name + suffix
		}
	}
	return mapped
}

func New(ctx context.Context) (*Translator, error) {
	st, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create shader translator: %w", err)
	}
	return &Translator{st: st}, nil
}

var (
	shared     *Translator
	sharedErr  error
	sharedOnce sync.Once
)

// Shared returns a process wide translator, creating it on first use.
func Shared() (*Translator, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = New(context.Background())
	})
	return shared, sharedErr
}

// Fragment translates a WebGL2 fragment source to GLSL 4.10.
func (t *Translator) Fragment(source string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out, err := t.st.TranslateShader(source, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return nil, err
	}
	r := &Result{Code: out.Code, Names: make(map[string]string, len(out.Variables))}
	for name, v := range out.Variables {
		r.Names[name] = v.MappedName
	}
	return r, nil
}
