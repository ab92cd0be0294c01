package recognizer

import (
	"testing"
	"time"

	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
	"github.com/stretchr/testify/require"
)

// trackedPoints builds a 21-point hand with the wrist at the bottom center of
// a box from (cx-half, cy-half) to (cx+half, cy+half), fingers pointing up.
func trackedPoints(cx, cy, half float32) []nn.Point {
	pts := make([]nn.Point, hand.NumLandmarks)
	for i := range pts {
		pts[i] = nn.Point{X: cx, Y: cy}
	}
	pts[hand.Wrist] = nn.Point{X: cx, Y: cy + half}
	pts[hand.IndexMCP] = nn.Point{X: cx - half, Y: cy - half}
	pts[hand.PinkyMCP] = nn.Point{X: cx + half, Y: cy - half}
	return pts
}

func TestTrackerRoundTrip(t *testing.T) {
	now := time.Now()
	tracker := handTracker{}

	_, _, ok := tracker.estimateRoi(now)
	require.False(t, ok)

	prior := hand.CropTransform{Center: nn.Point{X: 200, Y: 200}, Side: 200}
	tracker.update(prior, trackedPoints(200, 200, 100), 0.8, now)

	roi, conf, ok := tracker.estimateRoi(now.Add(100 * time.Millisecond))
	require.True(t, ok)
	require.Equal(t, float32(0.8), conf)
	require.InDelta(t, 200, roi.Center.X, 1e-3)
	require.InDelta(t, 200, roi.Center.Y, 1e-3)
	// Landmark bounds are 200px wide, expanded by 1.8
	require.InDelta(t, 360, roi.Side, 1e-3)
	// Wrist below, knuckles above: hand points straight up
	require.InDelta(t, 0, roi.Angle, 1e-5)
}

func TestTrackerStalenessBoundary(t *testing.T) {
	now := time.Now()
	tracker := handTracker{}
	prior := hand.CropTransform{Center: nn.Point{X: 200, Y: 200}, Side: 200}
	tracker.update(prior, trackedPoints(200, 200, 100), 0.8, now)

	// Exactly at the age limit the track is still usable
	_, _, ok := tracker.estimateRoi(now.Add(trackMaxAge))
	require.True(t, ok)

	_, _, ok = tracker.estimateRoi(now.Add(trackMaxAge + time.Nanosecond))
	require.False(t, ok)
}

func TestTrackerConfidenceFloor(t *testing.T) {
	now := time.Now()
	tracker := handTracker{}
	prior := hand.CropTransform{Center: nn.Point{X: 200, Y: 200}, Side: 200}

	tracker.update(prior, trackedPoints(200, 200, 100), 0.14, now)
	_, _, ok := tracker.estimateRoi(now)
	require.False(t, ok)

	tracker.update(prior, trackedPoints(200, 200, 100), 0.15, now)
	_, _, ok = tracker.estimateRoi(now)
	require.True(t, ok)
}

func TestTrackerClearsOnEmptyUpdate(t *testing.T) {
	now := time.Now()
	tracker := handTracker{}
	prior := hand.CropTransform{Center: nn.Point{X: 200, Y: 200}, Side: 200}
	tracker.update(prior, trackedPoints(200, 200, 100), 0.8, now)
	tracker.update(prior, nil, 0.8, now)

	_, _, ok := tracker.estimateRoi(now)
	require.False(t, ok)
}

func TestTrackerNeedsThreePoints(t *testing.T) {
	now := time.Now()
	tracker := handTracker{}
	prior := hand.CropTransform{Center: nn.Point{X: 200, Y: 200}, Side: 200}
	tracker.update(prior, []nn.Point{{X: 10, Y: 10}, {X: 20, Y: 20}}, 0.8, now)

	_, _, ok := tracker.estimateRoi(now)
	require.False(t, ok)
}

func TestTrackerSideClamps(t *testing.T) {
	now := time.Now()
	tracker := handTracker{}

	// Tiny landmark cluster: raw side 1.8px, lifted to 0.7x the prior side
	// (70px), then to the absolute floor of 80px.
	prior := hand.CropTransform{Center: nn.Point{X: 100, Y: 100}, Side: 100}
	tracker.update(prior, trackedPoints(100, 100, 0.5), 0.8, now)
	roi, _, ok := tracker.estimateRoi(now)
	require.True(t, ok)
	require.InDelta(t, 80, roi.Side, 1e-3)

	// Huge cluster against a small prior: capped at 2.5x the prior side
	prior = hand.CropTransform{Center: nn.Point{X: 300, Y: 300}, Side: 100}
	tracker.update(prior, trackedPoints(300, 300, 300), 0.8, now)
	roi, _, ok = tracker.estimateRoi(now)
	require.True(t, ok)
	require.InDelta(t, 250, roi.Side, 1e-3)
}

func TestTrackerUpdateCopiesLandmarks(t *testing.T) {
	now := time.Now()
	tracker := handTracker{}
	prior := hand.CropTransform{Center: nn.Point{X: 200, Y: 200}, Side: 200}
	pts := trackedPoints(200, 200, 100)
	tracker.update(prior, pts, 0.8, now)

	// Mutating the caller's slice must not affect the track
	pts[hand.Wrist] = nn.Point{X: 9999, Y: 9999}
	roi, _, ok := tracker.estimateRoi(now)
	require.True(t, ok)
	require.InDelta(t, 200, roi.Center.X, 1e-3)
}

func TestOrientationFromLandmarksDegenerate(t *testing.T) {
	pts := trackedPoints(200, 200, 100)
	_, ok := orientationFromLandmarks(pts[:hand.PinkyMCP])
	require.False(t, ok)

	// Knuckle midpoint coincides with the wrist
	collapsed := make([]nn.Point, hand.NumLandmarks)
	for i := range collapsed {
		collapsed[i] = nn.Point{X: 50, Y: 50}
	}
	_, ok = orientationFromLandmarks(collapsed)
	require.False(t, ok)

	angle, ok := orientationFromLandmarks(pts)
	require.True(t, ok)
	require.InDelta(t, 0, angle, 1e-5)
}
