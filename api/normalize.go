package api

import (
	"fmt"
	"log/slog"
)

// Normalize validates passes and returns a copy in which exactly the last pass
// is promoted to screen output when none is declared. More than one screen
// pass is allowed; each draws to the canvas in order, so the last one wins.
func Normalize(passes []Pass) ([]Pass, error) {
	if len(passes) == 0 {
		return nil, fmt.Errorf("%w: no passes declared", ErrInvalidConfig)
	}
	out := make([]Pass, len(passes))
	copy(out, passes)

	names := make(map[string]bool, len(out))
	screens := 0
	for _, p := range out {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: pass without a name", ErrInvalidConfig)
		}
		if names[p.Name] {
			return nil, fmt.Errorf("%w: duplicate pass name %q", ErrInvalidConfig, p.Name)
		}
		names[p.Name] = true
		if p.Screen {
			screens++
		}
	}

	if screens == 0 {
		out[len(out)-1].Screen = true
	} else if screens > 1 {
		slog.Warn("multiple screen output passes; the last one drawn wins", "count", screens)
	}

	for _, p := range out {
		if p.Screen && p.Feedback {
			slog.Warn("feedback has no effect on a screen output pass", "pass", p.Name)
		}
		for i, ch := range p.Channels {
			if ch != nil && ch.Kind == ChannelPass && !names[ch.Pass] {
				slog.Warn("channel references an unknown pass", "pass", p.Name, "channel", i, "ref", ch.Pass)
			}
		}
	}
	return out, nil
}
