package formant

// linearSmoother ramps a value toward its target over a fixed number of
// steps, one step per call to next. Used for the per-frame gain
// compensation so level corrections never jump.
type linearSmoother struct {
	current    float64
	target     float64
	step       float64
	remaining  int
	rampLength int
}

// reset sets the ramp length and snaps the value to initial.
func (ls *linearSmoother) reset(rampLength int, initial float64) {
	ls.rampLength = rampLength
	ls.current = initial
	ls.target = initial
	ls.step = 0
	ls.remaining = 0
}

// setTarget starts a new ramp from the current value toward v.
func (ls *linearSmoother) setTarget(v float64) {
	if v == ls.target {
		return
	}

	ls.target = v

	if ls.rampLength <= 0 {
		ls.current = v
		ls.remaining = 0

		return
	}

	ls.step = (v - ls.current) / float64(ls.rampLength)
	ls.remaining = ls.rampLength
}

// next advances the ramp one step and returns the new value.
func (ls *linearSmoother) next() float64 {
	if ls.remaining <= 0 {
		ls.current = ls.target

		return ls.current
	}

	ls.current += ls.step
	ls.remaining--

	if ls.remaining == 0 {
		ls.current = ls.target
	}

	return ls.current
}
