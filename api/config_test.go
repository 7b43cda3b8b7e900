package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/shader"
)

const jsonConfig = `{
  "options": {"strictUniforms": true, "timeScale": 2, "defines": ["FAST", {"STEPS": 64, "HQ": true}]},
  "passes": [
    {"name": "A", "source": "a.glsl", "size": [64, 64], "feedback": true, "float": true,
     "channels": [{"pass": "A", "buffer": "prev"}, null, {"audio": "song.mp3", "fftSize": 1024}, null],
     "uniforms": {"u_tint": {"type": "3f", "value": [1, 0.5, 0]}, "u_gain": {"type": "1f", "value": 2}}},
    {"name": "Image", "src": "void mainImage(out vec4 c, in vec2 p) { c = texture(iChannel0, p); }",
     "channels": [{"pass": "A", "filter": "nearest", "wrap": "repeat"}]}
  ]
}`

const yamlConfig = `
options:
  strictUniforms: true
  timeScale: 2
  defines: [FAST, {STEPS: 64, HQ: true}]
passes:
  - name: A
    source: a.glsl
    size: [64, 64]
    feedback: true
    float: true
    channels:
      - {pass: A, buffer: prev}
      - null
      - {audio: song.mp3, fftSize: 1024}
    uniforms:
      u_tint: {type: 3f, value: [1, 0.5, 0]}
      u_gain: {type: 1f, value: 2}
  - name: Image
    src: "void mainImage(out vec4 c, in vec2 p) { c = texture(iChannel0, p); }"
    channels:
      - {pass: A, filter: nearest, wrap: repeat}
`

const tomlConfig = `
[options]
strictUniforms = true
timeScale = 2
defines = ["FAST", {STEPS = 64, HQ = true}]

[[passes]]
name = "A"
source = "a.glsl"
size = [64, 64]
feedback = true
float = true
[passes.channels.0]
pass = "A"
buffer = "prev"
[passes.channels.2]
audio = "song.mp3"
fftSize = 1024
[passes.uniforms.u_tint]
type = "3f"
value = [1, 0.5, 0]
[passes.uniforms.u_gain]
type = "1f"
value = 2

[[passes]]
name = "Image"
src = "void mainImage(out vec4 c, in vec2 p) { c = texture(iChannel0, p); }"
[passes.channels.iChannel0]
pass = "A"
filter = "nearest"
wrap = "repeat"
`

func TestParseFormatsAgree(t *testing.T) {
	for format, doc := range map[Format]string{FormatJSON: jsonConfig, FormatYAML: yamlConfig, FormatTOML: tomlConfig} {
		t.Run(string(format), func(t *testing.T) {
			cfg, err := Parse([]byte(doc), format)
			require.NoError(t, err)
			require.Len(t, cfg.Passes, 2)

			require.NotNil(t, cfg.Options.StrictUniforms)
			assert.True(t, *cfg.Options.StrictUniforms)
			require.NotNil(t, cfg.Options.TimeScale)
			assert.Equal(t, 2.0, *cfg.Options.TimeScale)
			assert.Nil(t, cfg.Options.StartPaused)
			assert.Equal(t, []shader.Define{{Name: "FAST"}, {Name: "HQ"}, {Name: "STEPS", Value: "64"}}, cfg.Options.Defines)

			a := cfg.Passes[0]
			assert.Equal(t, "A", a.Name)
			assert.Equal(t, Fixed(64, 64), a.Size)
			assert.True(t, a.Feedback)
			assert.True(t, a.Float)
			assert.False(t, a.Screen)
			require.NotNil(t, a.Channels[0])
			assert.Equal(t, ChannelPass, a.Channels[0].Kind)
			assert.True(t, a.Channels[0].Previous)
			assert.Nil(t, a.Channels[1])
			require.NotNil(t, a.Channels[2])
			assert.Equal(t, ChannelAudio, a.Channels[2].Kind)
			assert.Equal(t, 1024, a.Channels[2].FFTSize)
			assert.Equal(t, "song.mp3", a.Channels[2].URL)

			require.Len(t, a.Uniforms, 2)
			assert.Equal(t, "u_gain", a.Uniforms[0].Name)
			assert.Equal(t, []float64{2}, a.Uniforms[0].Values)
			assert.Equal(t, []float64{1, 0.5, 0}, a.Uniforms[1].Values)

			img := cfg.Passes[1]
			assert.Equal(t, Screen, img.Size)
			assert.True(t, IsInline(img.Source))
			require.NotNil(t, img.Channels[0])
			assert.Equal(t, graphics.FilterNearest, img.Channels[0].Filter)
			assert.Equal(t, graphics.WrapRepeat, img.Channels[0].Wrap)
			assert.False(t, img.Channels[0].Previous)
		})
	}
}

func TestParseList(t *testing.T) {
	cfg, err := Parse([]byte(`[{"name": "Image", "source": "x.frag", "size": "half", "channels": [{"cubemap": ["a","b","c","d","e","f"]}]}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, cfg.Passes, 1)
	assert.Equal(t, Half, cfg.Passes[0].Size)
	ch := cfg.Passes[0].Channels[0]
	require.NotNil(t, ch)
	assert.Equal(t, ChannelCubeMap, ch.Kind)
	assert.Equal(t, "f", ch.CubeURLs[5])
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"no passes":     `{"passes": []}`,
		"no name":       `[{"source": "x"}]`,
		"no source":     `[{"name": "A"}]`,
		"bad size":      `[{"name": "A", "source": "x", "size": "double"}]`,
		"five channels": `[{"name": "A", "source": "x", "channels": [null, null, null, null, null]}]`,
		"bad cubemap":   `[{"name": "A", "source": "x", "channels": [{"cubemap": ["a"]}]}]`,
		"bad fft":       `[{"name": "A", "source": "x", "channels": [{"audio": "a", "fftSize": 100}]}]`,
		"bad uniform":   `[{"name": "A", "source": "x", "uniforms": {"u": {"type": "1f", "value": "x"}}}]`,
		"syntax":        `[{`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), FormatJSON)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestUniformDeclValue(t *testing.T) {
	v, err := UniformDecl{Name: "m", Type: "Matrix3fv", Values: make([]float64, 9), Transpose: true}.Value()
	require.NoError(t, err)
	assert.Equal(t, graphics.UniformMat3, v.Kind)
	assert.True(t, v.Transpose)

	_, err = UniformDecl{Name: "u", Type: "5f", Values: []float64{1}}.Value()
	assert.ErrorIs(t, err, graphics.ErrUnknownUniformKind)

	_, err = UniformDecl{Name: "u", Type: "2f", Values: []float64{1}}.Value()
	assert.Error(t, err)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Dir)
	assert.Len(t, cfg.Passes, 2)
}

func TestSizeResolve(t *testing.T) {
	w, h := Half.Resolve(801, 600)
	assert.Equal(t, 400, w)
	assert.Equal(t, 300, h)
	w, h = Fixed(64, 32).Resolve(801, 600)
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)
	w, h = Screen.Resolve(801, 600)
	assert.Equal(t, 801, w)
	assert.Equal(t, 600, h)
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "goshadermate")
		if r.URL.Path == "/lib.glsl" {
			w.Write([]byte("float lib;"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.glsl"), []byte("float local;"), 0644))

	f := &Fetcher{Preload: map[string]string{"pre.glsl": "float pre;"}, BaseDir: dir}
	ctx := context.Background()

	s, err := f.Text(ctx, "pre.glsl")
	require.NoError(t, err)
	assert.Equal(t, "float pre;", s)

	s, err = f.Text(ctx, "local.glsl")
	require.NoError(t, err)
	assert.Equal(t, "float local;", s)

	s, err = f.Text(ctx, srv.URL+"/lib.glsl")
	require.NoError(t, err)
	assert.Equal(t, "float lib;", s)

	_, err = f.Text(ctx, srv.URL+"/missing.glsl")
	assert.ErrorContains(t, err, "404")

	s, err = f.Source(ctx, "void mainImage(out vec4 c, in vec2 p) {}")
	require.NoError(t, err)
	assert.Equal(t, "void mainImage(out vec4 c, in vec2 p) {}", s)
}

func TestFetcherCacheKeysByFullURL(t *testing.T) {
	var hitsA, hitsB atomic.Int32
	serve := func(body string, hits *atomic.Int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Write([]byte(body))
		}))
	}
	a := serve("// from A", &hitsA)
	defer a.Close()
	b := serve("// from B", &hitsB)
	defer b.Close()

	cache := t.TempDir()
	f := &Fetcher{UseCache: true, CacheDir: cache}
	ctx := context.Background()

	s, err := f.Text(ctx, a.URL+"/x/common.glsl")
	require.NoError(t, err)
	assert.Equal(t, "// from A", s)
	s, err = f.Text(ctx, b.URL+"/y/common.glsl")
	require.NoError(t, err)
	assert.Equal(t, "// from B", s)
	s, err = f.Text(ctx, b.URL+"/y/common.glsl?v=2")
	require.NoError(t, err)
	assert.Equal(t, "// from B", s)
	assert.Equal(t, int32(2), hitsB.Load())

	s, err = f.Text(ctx, a.URL+"/x/common.glsl")
	require.NoError(t, err)
	assert.Equal(t, "// from A", s)
	assert.Equal(t, int32(1), hitsA.Load(), "second read is served from the cache")

	entries, err := os.ReadDir(cache)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, ".glsl", filepath.Ext(e.Name()))
	}
}

func TestCacheName(t *testing.T) {
	assert.NotEqual(t, cacheName("https://a/x/common.glsl"), cacheName("https://b/y/common.glsl"))
	assert.Equal(t, cacheName("https://a/x/tex.png"), cacheName("https://a/x/tex.png"))
	assert.Equal(t, ".png", filepath.Ext(cacheName("https://a/x/tex.png?size=2")))
	assert.Len(t, cacheName("https://a/noext"), 64)
}
