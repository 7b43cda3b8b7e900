package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToImageFlipsAndClamps(t *testing.T) {
	// 1x2, bottom row first
	px := []float32{
		1, 0, 0, 1,
		-0.5, 0.5, 2, 1,
	}
	img := toImage(px, 1, 2)
	assert.Equal(t, []uint8{0, 128, 255, 255}, img.Pix[0:4], "top row is the last row read")
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pix[4:8])
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
options:
  timeScale: 2
passes:
  - name: A
    source: a.frag
  - name: Image
    source: |
      void mainImage(out vec4 c, in vec2 p) { c = vec4(1.0); }
    screen: true
`), 0o644))

	pr, err := loadProject(&flags{config: cfg})
	require.NoError(t, err)
	assert.Len(t, pr.passes, 2)
	require.NotNil(t, pr.settings.TimeScale)
	assert.Equal(t, 2.0, *pr.settings.TimeScale)
	assert.Equal(t, dir, pr.dir)
	assert.Equal(t, []string{cfg, filepath.Join(dir, "a.frag")}, pr.files, "inline sources are not watched")

	pr, err = loadProject(&flags{shader: filepath.Join(dir, "x.frag")})
	require.NoError(t, err)
	require.Len(t, pr.passes, 1)
	assert.Equal(t, "x.frag", pr.passes[0].Source)
	assert.True(t, pr.passes[0].Screen)

	_, err = loadProject(&flags{})
	assert.Error(t, err)
}

func TestFlagsOverrideSettings(t *testing.T) {
	scale := 3.0
	pr := &project{dir: "/shaders"}
	pr.settings.TimeScale = &scale

	opts := (&flags{}).options(pr, nil, nil)
	assert.Equal(t, 3.0, opts.TimeScale)
	assert.False(t, opts.StartPaused)

	opts = (&flags{paused: true, timeScale: 0.5, fixedDelta: 0.1, strictUniforms: true}).options(pr, nil, nil)
	assert.Equal(t, 0.5, opts.TimeScale)
	assert.Equal(t, 0.1, opts.FixedDelta)
	assert.True(t, opts.StartPaused)
	assert.True(t, opts.StrictUniforms)
	assert.Equal(t, "/shaders", opts.Fetcher.BaseDir)
}
