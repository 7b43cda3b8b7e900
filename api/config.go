package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/shader"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the syntax from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	}
	return FormatJSON
}

// Settings is the optional engine options block of a configuration file.
// Nil fields leave the engine default in place.
type Settings struct {
	AutoSetup           *bool
	Defines             []shader.Define
	Includes            map[string]string
	StrictUniforms      *bool
	StrictIncludes      *bool
	ShowExpandedOnError *bool
	StartPaused         *bool
	FixedDelta          *float64
	TimeScale           *float64
}

// Config is a decoded configuration file.
type Config struct {
	Passes  []Pass
	Options Settings
	// Dir is the directory relative locations resolve against.
	Dir string
}

// Load reads and decodes a configuration file, choosing the syntax by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes a configuration. The document is either a list of passes or a
// table with "passes" and an optional "options" table.
func Parse(data []byte, format Format) (*Config, error) {
	var doc any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		var m map[string]any
		err = toml.Unmarshal(data, &m)
		doc = m
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, format, err)
	}

	cfg := &Config{}
	var passes any
	switch d := doc.(type) {
	case []any:
		passes = d
	case map[string]any:
		passes = d["passes"]
		if o, ok := d["options"]; ok {
			if cfg.Options, err = decodeSettings(o); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: expected a list of passes or a table", ErrInvalidConfig)
	}
	list, ok := passes.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: no passes declared", ErrInvalidConfig)
	}
	for i, p := range list {
		pass, err := decodePass(p)
		if err != nil {
			return nil, fmt.Errorf("%w: pass %d: %w", ErrInvalidConfig, i, err)
		}
		cfg.Passes = append(cfg.Passes, pass)
	}
	return cfg, nil
}

func decodeSettings(v any) (Settings, error) {
	var s Settings
	m, ok := v.(map[string]any)
	if !ok {
		return s, fmt.Errorf("%w: options must be a table", ErrInvalidConfig)
	}
	var err error
	boolPtr := func(key string) *bool {
		if b, ok := m[key].(bool); ok {
			return &b
		}
		return nil
	}
	floatPtr := func(key string) *float64 {
		if f, ok := toFloat(m[key]); ok {
			return &f
		}
		return nil
	}
	s.AutoSetup = boolPtr("autoSetup")
	s.StrictUniforms = boolPtr("strictUniforms")
	s.StrictIncludes = boolPtr("strictIncludes")
	s.ShowExpandedOnError = boolPtr("showExpandedOnError")
	s.StartPaused = boolPtr("startPaused")
	s.FixedDelta = floatPtr("fixedDelta")
	s.TimeScale = floatPtr("timeScale")
	if d, ok := m["defines"]; ok {
		if s.Defines, err = decodeDefines(d); err != nil {
			return s, err
		}
	}
	if inc, ok := m["includes"].(map[string]any); ok {
		s.Includes = make(map[string]string, len(inc))
		for k, v := range inc {
			text, ok := v.(string)
			if !ok {
				return s, fmt.Errorf("%w: include %q must be text", ErrInvalidConfig, k)
			}
			s.Includes[k] = text
		}
	}
	return s, nil
}

func decodePass(v any) (Pass, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Pass{}, fmt.Errorf("pass must be a table")
	}
	p := Pass{
		Name:     str(m, "name"),
		Source:   str(m, "source", "src"),
		Screen:   flag(m, "screenOutput", "screen"),
		Feedback: flag(m, "feedback", "pingpong"),
		Float:    flag(m, "floatPrecision", "float"),
		Depth:    flag(m, "depth"),
		Filter:   graphics.ParseFilter(str(m, "filter")),
		Wrap:     graphics.ParseWrap(str(m, "wrap")),
	}
	if p.Name == "" {
		return p, fmt.Errorf("missing name")
	}
	if p.Source == "" {
		return p, fmt.Errorf("%s: missing source", p.Name)
	}
	var err error
	if p.Size, err = decodeSize(m["size"]); err != nil {
		return p, fmt.Errorf("%s: %w", p.Name, err)
	}
	if p.Channels, err = decodeChannels(m["channels"]); err != nil {
		return p, fmt.Errorf("%s: %w", p.Name, err)
	}
	if d, ok := m["defines"]; ok {
		if p.Defines, err = decodeDefines(d); err != nil {
			return p, fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	if u, ok := m["uniforms"]; ok {
		if p.Uniforms, err = decodeUniforms(u); err != nil {
			return p, fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return p, nil
}

func decodeSize(v any) (Size, error) {
	switch s := v.(type) {
	case nil:
		return Screen, nil
	case string:
		switch s {
		case "screen", "":
			return Screen, nil
		case "half":
			return Half, nil
		}
		return Size{}, fmt.Errorf("unknown size %q", s)
	case []any:
		if len(s) == 2 {
			w, okw := toInt(s[0])
			h, okh := toInt(s[1])
			if okw && okh && w > 0 && h > 0 {
				return Fixed(w, h), nil
			}
		}
	case map[string]any:
		w, okw := toInt(s["width"])
		h, okh := toInt(s["height"])
		if okw && okh && w > 0 && h > 0 {
			return Fixed(w, h), nil
		}
	}
	return Size{}, fmt.Errorf("size must be \"screen\", \"half\" or [width, height]")
}

// decodeChannels accepts a list of up to four entries (null for empty) or a
// table keyed by slot index.
func decodeChannels(v any) ([MaxChannels]*Channel, error) {
	var out [MaxChannels]*Channel
	var slots []any
	switch c := v.(type) {
	case nil:
		return out, nil
	case []any:
		slots = c
	case map[string]any:
		slots = make([]any, MaxChannels)
		for k, e := range c {
			i, err := strconv.Atoi(strings.TrimPrefix(k, "iChannel"))
			if err != nil || i < 0 || i >= MaxChannels {
				return out, fmt.Errorf("unknown channel slot %q", k)
			}
			slots[i] = e
		}
	default:
		return out, fmt.Errorf("channels must be a list")
	}
	if len(slots) > MaxChannels {
		return out, fmt.Errorf("%d channels declared, at most %d allowed", len(slots), MaxChannels)
	}
	for i, s := range slots {
		ch, err := decodeChannel(s)
		if err != nil {
			return out, fmt.Errorf("channel %d: %w", i, err)
		}
		out[i] = ch
	}
	return out, nil
}

func decodeChannel(v any) (*Channel, error) {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		if v == nil || ok {
			return nil, nil
		}
		return nil, fmt.Errorf("channel must be a table or null")
	}
	ch := &Channel{
		Filter: graphics.ParseFilter(str(m, "filter")),
		Wrap:   graphics.ParseWrap(str(m, "wrap")),
		FlipY:  flag(m, "flipY"),
	}
	switch {
	case str(m, "pass") != "":
		ch.Kind = ChannelPass
		ch.Pass = str(m, "pass")
		ch.Previous = str(m, "buffer") == "prev"
	case str(m, "url") != "":
		ch.Kind = ChannelImage
		ch.URL = str(m, "url")
	case str(m, "video") != "":
		ch.Kind = ChannelVideo
		ch.URL = str(m, "video")
	case str(m, "audio", "audioFFT") != "":
		ch.Kind = ChannelAudio
		ch.URL = str(m, "audio", "audioFFT")
	case flag(m, "mic"):
		ch.Kind = ChannelMic
	case m["cubemap"] != nil:
		ch.Kind = ChannelCubeMap
		faces, ok := m["cubemap"].([]any)
		if !ok || len(faces) != 6 {
			return nil, fmt.Errorf("cubemap needs 6 face locations")
		}
		for i, f := range faces {
			s, ok := f.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("cubemap face %d must be a location", i)
			}
			ch.CubeURLs[i] = s
		}
	default:
		return nil, fmt.Errorf("unrecognized channel")
	}
	if ch.Kind == ChannelAudio || ch.Kind == ChannelMic {
		ch.FFTSize = DefaultFFTSize
		if n, ok := toInt(m["fftSize"]); ok {
			if n < 32 || n&(n-1) != 0 {
				return nil, fmt.Errorf("fftSize %d must be a power of two >= 32", n)
			}
			ch.FFTSize = n
		}
	}
	return ch, nil
}

// decodeDefines accepts a single name, a list of names and tables, or a table.
// A table value of true or "" is a bare define.
func decodeDefines(v any) ([]shader.Define, error) {
	switch d := v.(type) {
	case string:
		return []shader.Define{{Name: d}}, nil
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]shader.Define, 0, len(keys))
		for _, k := range keys {
			out = append(out, shader.Define{Name: k, Value: defineValue(d[k])})
		}
		return out, nil
	case []any:
		var out []shader.Define
		for _, e := range d {
			defs, err := decodeDefines(e)
			if err != nil {
				return nil, err
			}
			out = append(out, defs...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("defines must be a name, a list or a table")
}

func defineValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return ""
		}
		return "false"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

// decodeUniforms reads name -> {type, value, transpose} in name order.
func decodeUniforms(v any) ([]UniformDecl, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("uniforms must be a table")
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]UniformDecl, 0, len(names))
	for _, name := range names {
		u, ok := m[name].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("uniform %s must be a table", name)
		}
		decl := UniformDecl{Name: name, Type: str(u, "type"), Transpose: flag(u, "transpose")}
		switch val := u["value"].(type) {
		case []any:
			for _, e := range val {
				f, ok := toFloat(e)
				if !ok {
					return nil, fmt.Errorf("uniform %s: non-numeric value %v", name, e)
				}
				decl.Values = append(decl.Values, f)
			}
		default:
			f, ok := toFloat(val)
			if !ok {
				return nil, fmt.Errorf("uniform %s: non-numeric value %v", name, val)
			}
			decl.Values = []float64{f}
		}
		out = append(out, decl)
	}
	return out, nil
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func flag(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok && b {
			return true
		}
	}
	return false
}

// toFloat converts the numeric types produced by the JSON, YAML and TOML decoders.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
