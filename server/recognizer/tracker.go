package recognizer

import (
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
)

// Keep a short-lived track so the hand does not disappear immediately when
// palm detection drops (e.g. back-of-hand rotations).
const (
	trackMaxAge  = 450 * time.Millisecond
	trackMinConf = 0.15

	// ROI estimation from a surviving track
	trackRoiExpand  = 1.8 // landmark bounds span to crop side
	trackSideMinMul = 0.7 // clamp relative to the previous crop side
	trackSideMaxMul = 2.5
	trackSideMinPx  = 80.0
)

type trackedHand struct {
	transform  hand.CropTransform
	projected  []nn.Point
	confidence float32
	lastSeen   time.Time
}

// A track aged exactly trackMaxAge is still usable; only strictly older
// tracks are stale. Deliberate, and pinned by the staleness boundary test.
func (t *trackedHand) isStale(now time.Time) bool {
	return now.Sub(t.lastSeen) > trackMaxAge || t.confidence < trackMinConf
}

// estimateRoi derives a crop region from the last seen landmarks. Returns
// ok=false when the track has too few points to bound.
func (t *trackedHand) estimateRoi() (hand.CropTransform, bool) {
	if len(t.projected) < 3 {
		return hand.CropTransform{}, false
	}

	minX, minY, maxX, maxY := hand.PointBounds(t.projected)

	span := max(maxX-minX, maxY-minY, 1)
	side := span * trackRoiExpand
	side = max(side, t.transform.Side*trackSideMinMul)
	side = min(side, t.transform.Side*trackSideMaxMul)
	side = max(side, trackSideMinPx)

	center := nn.Point{X: (minX + maxX) * 0.5, Y: (minY + maxY) * 0.5}
	angle, ok := orientationFromLandmarks(t.projected)
	if !ok {
		angle = t.transform.Angle
	}

	return hand.CropTransform{Center: center, Side: side, Angle: angle}, true
}

// handTracker remembers the last successful landmark fix. It is owned by the
// recognition worker goroutine and needs no locking.
type handTracker struct {
	last *trackedHand
}

// update replaces the track wholesale. An empty landmark set clears it.
func (h *handTracker) update(transform hand.CropTransform, projected []nn.Point, confidence float32, now time.Time) {
	if len(projected) == 0 {
		h.last = nil
		return
	}
	h.last = &trackedHand{
		transform:  transform,
		projected:  append([]nn.Point(nil), projected...),
		confidence: confidence,
		lastSeen:   now,
	}
}

// estimateRoi returns a crop region and the track's confidence, or ok=false
// when there is no usable track.
func (h *handTracker) estimateRoi(now time.Time) (hand.CropTransform, float32, bool) {
	if h.last == nil || h.last.isStale(now) {
		return hand.CropTransform{}, 0, false
	}
	roi, ok := h.last.estimateRoi()
	if !ok {
		return hand.CropTransform{}, 0, false
	}
	return roi, h.last.confidence, true
}

// orientationFromLandmarks estimates the hand rotation from the wrist toward
// the midpoint between the index and pinky knuckles.
func orientationFromLandmarks(points []nn.Point) (float32, bool) {
	if len(points) <= hand.PinkyMCP {
		return 0, false
	}

	wrist := points[hand.Wrist]
	index := points[hand.IndexMCP]
	pinky := points[hand.PinkyMCP]
	axisX := (index.X+pinky.X)*0.5 - wrist.X
	axisY := (index.Y+pinky.Y)*0.5 - wrist.Y

	if math32.Abs(axisX) < 1e-7 && math32.Abs(axisY) < 1e-7 {
		return 0, false
	}
	return hand.OrientationFromAxis(axisX, axisY), true
}
