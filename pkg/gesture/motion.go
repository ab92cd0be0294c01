package gesture

import (
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
)

// motionWindow is how far back we look when deciding whether the hand is
// waving, fanning, or just drifting.
const motionWindow = 1200 * time.Millisecond

// motionHistorySize must be a power of 2, and large enough to hold
// motionWindow worth of samples at full frame rate.
const motionHistorySize = 64

type motionSample struct {
	time time.Time
	x    float32
	y    float32
	span float32
}

// motionTracker watches the wrist position over a sliding time window and
// classifies the recent trajectory. Displacements are normalized by the
// average hand span, so the result is independent of distance from camera.
type motionTracker struct {
	history ringbuffer.RingP[motionSample]
}

func newMotionTracker() motionTracker {
	return motionTracker{
		history: ringbuffer.NewRingP[motionSample](motionHistorySize),
	}
}

func (t *motionTracker) update(wrist nn.Point, span float32, now time.Time, primary hand.GestureKind) hand.GestureMotion {
	t.history.Add(motionSample{
		time: now,
		x:    wrist.X,
		y:    wrist.Y,
		span: max(span, 1),
	})

	// The ring holds more than a window's worth, so we filter by age rather
	// than evicting.
	recent := make([]motionSample, 0, t.history.Len())
	for i := 0; i < t.history.Len(); i++ {
		s := t.history.Peek(i)
		if now.Sub(s.time) > motionWindow {
			continue
		}
		recent = append(recent, s)
	}

	if len(recent) < 3 {
		return hand.MotionSteady
	}

	avgSpan := float32(0)
	for _, s := range recent {
		avgSpan += s.span
	}
	avgSpan /= float32(len(recent))
	norm := max(avgSpan, 1)

	minX, minY := float32(math32.MaxFloat32), float32(math32.MaxFloat32)
	maxX, maxY := float32(-math32.MaxFloat32), float32(-math32.MaxFloat32)
	for _, s := range recent {
		minX = min(minX, s.x)
		maxX = max(maxX, s.x)
		minY = min(minY, s.y)
		maxY = max(maxY, s.y)
	}

	spanX := (maxX - minX) / norm
	spanY := (maxY - minY) / norm

	changesX := directionChanges(recent, func(s motionSample) float32 { return s.x }, norm*0.08)
	changesY := directionChanges(recent, func(s motionSample) float32 { return s.y }, norm*0.08)

	// Fanning only makes sense with the hand open (or unresolved).
	isOpenHand := primary == hand.GestureOpenPalm || primary == hand.GestureFour || primary == hand.GestureUnknown

	switch {
	case spanX > 0.55 && changesX >= 2 && isOpenHand:
		return hand.MotionFanning
	case spanY > 0.55 && changesY >= 2:
		return hand.MotionVerticalWave
	case spanX > 0.25 || spanY > 0.25:
		return hand.MotionMoving
	}
	return hand.MotionSteady
}

// directionChanges counts sign reversals of consecutive deltas along one
// axis, ignoring steps smaller than minStep so that jitter doesn't register
// as a reversal.
func directionChanges(samples []motionSample, axis func(motionSample) float32, minStep float32) int {
	changes := 0
	lastSign := 0
	for i := 1; i < len(samples); i++ {
		delta := axis(samples[i]) - axis(samples[i-1])
		if abs(delta) < minStep {
			continue
		}
		sign := 1
		if delta < 0 {
			sign = -1
		}
		if lastSign != 0 && sign != lastSign {
			changes++
		}
		lastSign = sign
	}
	return changes
}
