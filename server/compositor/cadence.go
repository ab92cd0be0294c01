package compositor

import "time"

// Output pacing. We aim for maxFPS, and back off toward minFPS when the
// consumer can't keep up or when drawing itself becomes the bottleneck.
const (
	maxCompositedFPS = 30
	minCompositedFPS = 12

	slowdownFactor = 1.25
	recoveryFactor = 0.85
)

// cadenceController owns the adaptive frame interval. It is a pure function
// of its inputs plus the current interval, which keeps it trivially testable.
type cadenceController struct {
	minInterval time.Duration
	maxInterval time.Duration
	current     time.Duration
}

func newCadenceController() cadenceController {
	minInterval := time.Second / maxCompositedFPS
	return cadenceController{
		minInterval: minInterval,
		maxInterval: time.Second / minCompositedFPS,
		current:     minInterval,
	}
}

// adjust updates the interval after one composited frame. droppedFrame means
// the consumer didn't take the previous frame in time. composeTime is how
// long drawing took.
func (c *cadenceController) adjust(composeTime time.Duration, droppedFrame bool) time.Duration {
	switch {
	case droppedFrame:
		// Consumer is falling behind. Back off multiplicatively, and hold
		// at the cap; a drop cycle must never trigger the recovery branch.
		c.current = min(time.Duration(float64(c.current)*slowdownFactor), c.maxInterval)
	case composeTime > c.current && c.current < c.maxInterval:
		// Drawing alone blew the budget. Make the budget realistic.
		c.current = min(time.Duration(float64(composeTime)*slowdownFactor), c.maxInterval)
	case composeTime*3 < c.current*2 && c.current > c.minInterval:
		// Comfortable headroom. Speed back up gently.
		c.current = max(time.Duration(float64(c.current)*recoveryFactor), c.minInterval)
	}
	return c.current
}
