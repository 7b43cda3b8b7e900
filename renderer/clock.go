package renderer

// State is the scheduler state.
type State uint8

const (
	StateStopped State = iota
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	}
	return "stopped"
}

// Clock is the simulated time of a pipeline. Time advances only while Running.
type Clock struct {
	Time    float64
	Frame   int
	Running bool
	// FixedDelta replaces the measured delta when positive.
	FixedDelta float64
	TimeScale  float64

	last    float64
	started bool
}

// tick advances the clock to wall time now and returns the frame delta.
func (c *Clock) tick(now float64) float64 {
	raw := 0.0
	if c.started {
		raw = max(now-c.last, 0)
	}
	c.last, c.started = now, true

	dt := raw
	if c.FixedDelta > 0 {
		dt = c.FixedDelta
	}
	if c.Running {
		c.Time += dt * c.TimeScale
	}
	return dt
}

func (c *Clock) info(dt float64) FrameInfo {
	fps := 0.0
	if dt > 0 {
		fps = 1 / dt
	}
	return FrameInfo{Time: c.Time, Frame: c.Frame, DT: dt, FPS: fps}
}
