package options

import (
	"github.com/richinsley/goshadermate/api"
	"github.com/richinsley/goshadermate/graphics"
	"github.com/richinsley/goshadermate/shader"
)

// Options is the engine startup configuration.
type Options struct {
	// AutoSetup enables header, define, wrapper and builtin injection.
	AutoSetup bool
	// Inject narrows the injections selected by AutoSetup. It has no effect
	// when AutoSetup is off.
	Inject *shader.Inject
	// Defines are injected into every pass ahead of the pass's own defines.
	Defines []shader.Define
	// Includes preloads include paths, avoiding any fetch for them.
	Includes map[string]string
	// IncludeLoader replaces the fetcher for include paths not in Includes.
	IncludeLoader shader.Loader

	StrictUniforms      bool
	StrictIncludes      bool
	ShowExpandedOnError bool
	EnableDerivatives   bool

	StartPaused bool
	// FixedDelta replaces the measured frame delta when positive, in seconds.
	FixedDelta float64
	TimeScale  float64

	// Canvas is the display surface; Device draws into it.
	Canvas graphics.Context
	Device graphics.Device
	// Fetcher resolves shader and media locations.
	Fetcher *api.Fetcher
}

func Default() Options {
	return Options{
		AutoSetup:           true,
		ShowExpandedOnError: true,
		EnableDerivatives:   true,
		TimeScale:           1,
	}
}

// Injections returns the injections in effect.
func (o *Options) Injections() shader.Inject {
	if !o.AutoSetup {
		return shader.Inject{}
	}
	if o.Inject != nil {
		return *o.Inject
	}
	return shader.InjectAll
}

// Apply overlays the options block of a configuration file.
func (o *Options) Apply(s api.Settings) {
	if s.AutoSetup != nil {
		o.AutoSetup = *s.AutoSetup
	}
	if s.StrictUniforms != nil {
		o.StrictUniforms = *s.StrictUniforms
	}
	if s.StrictIncludes != nil {
		o.StrictIncludes = *s.StrictIncludes
	}
	if s.ShowExpandedOnError != nil {
		o.ShowExpandedOnError = *s.ShowExpandedOnError
	}
	if s.StartPaused != nil {
		o.StartPaused = *s.StartPaused
	}
	if s.FixedDelta != nil {
		o.FixedDelta = *s.FixedDelta
	}
	if s.TimeScale != nil {
		o.TimeScale = *s.TimeScale
	}
	o.Defines = append(o.Defines, s.Defines...)
	if len(s.Includes) > 0 {
		if o.Includes == nil {
			o.Includes = make(map[string]string, len(s.Includes))
		}
		for k, v := range s.Includes {
			o.Includes[k] = v
		}
	}
}
