package hand

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/nn"
)

// CropTransform describes how a square, possibly rotated crop was extracted
// from a source frame: the crop center and side length in frame pixels, and
// the rotation angle in radians. Value type, recreated each inference cycle.
type CropTransform struct {
	Center nn.Point
	Side   float32
	Angle  float32 // radians
}

// Apply maps a point in normalized crop space ([0,1] x [0,1]) into frame
// pixel coordinates: translate to crop center, scale by side, rotate.
func (c CropTransform) Apply(u, v float32) nn.Point {
	du := (u - 0.5) * c.Side
	dv := (v - 0.5) * c.Side
	sin, cos := math32.Sincos(c.Angle)
	return nn.Point{
		X: c.Center.X + du*cos - dv*sin,
		Y: c.Center.Y + du*sin + dv*cos,
	}
}

// Project maps crop-space landmarks into frame pixel coordinates.
func (c CropTransform) Project(landmarks Landmarks) []nn.Point {
	out := make([]nn.Point, len(landmarks))
	for i, p := range landmarks {
		out[i] = c.Apply(p.X, p.Y)
	}
	return out
}

// OrientationFromAxis converts a hand axis vector (wrist toward fingers, in
// image coordinates where Y grows downward) into the crop rotation angle,
// wrapped to [-pi, pi).
func OrientationFromAxis(dx, dy float32) float32 {
	radians := math32.Pi/2 - math32.Atan2(-dy, dx)
	twoPi := 2 * math32.Pi
	return radians - twoPi*math32.Floor((radians+math32.Pi)/twoPi)
}
