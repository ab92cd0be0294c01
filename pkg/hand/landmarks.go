// Package hand holds the hand data model: landmark geometry, palm regions,
// crop transforms, and the gesture vocabulary.
package hand

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/nn"
)

// Hand landmark indices, MediaPipe convention.
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3 is a landmark position. X and Y are in normalized crop space,
// Z is relative depth in the same scale.
type Point3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (p Point3) Sub(b Point3) Point3 {
	return Point3{p.X - b.X, p.Y - b.Y, p.Z - b.Z}
}

func (p Point3) Distance(b Point3) float32 {
	d := p.Sub(b)
	return math32.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

func (p Point3) Length() float32 {
	return math32.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

func (p Point3) Dot(b Point3) float32 {
	return p.X*b.X + p.Y*b.Y + p.Z*b.Z
}

// Normalized returns the unit vector, or zero if the vector is degenerate.
func (p Point3) Normalized() Point3 {
	len := p.Length()
	if len < 1e-5 {
		return Point3{}
	}
	return Point3{p.X / len, p.Y / len, p.Z / len}
}

// Landmarks is an ordered set of 3D hand landmarks. A full decode has
// exactly NumLandmarks points; anything shorter is treated as "no hand"
// by downstream consumers.
type Landmarks []Point3

// Bounds returns the XY bounding box of the landmarks.
func (l Landmarks) Bounds() (minX, minY, maxX, maxY float32) {
	minX, minY = math32.MaxFloat32, math32.MaxFloat32
	maxX, maxY = -math32.MaxFloat32, -math32.MaxFloat32
	for _, p := range l {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return
}

// Span returns the larger side of the XY bounding box, floored at minSpan
// to keep it usable as a divisor.
func (l Landmarks) Span(minSpan float32) float32 {
	minX, minY, maxX, maxY := l.Bounds()
	return max(max(maxX-minX, maxY-minY), minSpan)
}

// PointBounds is Bounds for 2D projected points.
func PointBounds(points []nn.Point) (minX, minY, maxX, maxY float32) {
	minX, minY = math32.MaxFloat32, math32.MaxFloat32
	maxX, maxY = -math32.MaxFloat32, -math32.MaxFloat32
	for _, p := range points {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return
}

// PointSpan returns the larger side of the bounding box of 2D points,
// floored at minSpan.
func PointSpan(points []nn.Point, minSpan float32) float32 {
	minX, minY, maxX, maxY := PointBounds(points)
	return max(max(maxX-minX, maxY-minY), minSpan)
}
