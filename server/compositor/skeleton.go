package compositor

import (
	"image"

	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
	"github.com/fogleman/gg"
)

// Bone connectivity of the 21 landmark skeleton. Each pair is (from, to).
var skeletonBones = [][2]int{
	{hand.Wrist, hand.ThumbCMC}, {hand.ThumbCMC, hand.ThumbMCP}, {hand.ThumbMCP, hand.ThumbIP}, {hand.ThumbIP, hand.ThumbTip},
	{hand.Wrist, hand.IndexMCP}, {hand.IndexMCP, hand.IndexPIP}, {hand.IndexPIP, hand.IndexDIP}, {hand.IndexDIP, hand.IndexTip},
	{hand.IndexMCP, hand.MiddleMCP}, {hand.MiddleMCP, hand.MiddlePIP}, {hand.MiddlePIP, hand.MiddleDIP}, {hand.MiddleDIP, hand.MiddleTip},
	{hand.MiddleMCP, hand.RingMCP}, {hand.RingMCP, hand.RingPIP}, {hand.RingPIP, hand.RingDIP}, {hand.RingDIP, hand.RingTip},
	{hand.RingMCP, hand.PinkyMCP}, {hand.PinkyMCP, hand.PinkyPIP}, {hand.PinkyPIP, hand.PinkyDIP}, {hand.PinkyDIP, hand.PinkyTip},
	{hand.Wrist, hand.PinkyMCP},
}

// wrapRGBA presents the frame's pixel buffer as an image.RGBA so that gg can
// draw on it in place.
func wrapRGBA(frame *hand.Frame) *image.RGBA {
	return &image.RGBA{
		Pix:    frame.Pixels,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
}

// drawPalmRegions outlines every detected palm box and marks its keypoints.
func drawPalmRegions(frame *hand.Frame, regions []hand.PalmRegion) {
	dc := gg.NewContextForRGBA(wrapRGBA(frame))
	dc.SetRGBA(1, 0.85, 0.2, 0.9)
	dc.SetLineWidth(2)
	for _, region := range regions {
		dc.DrawRectangle(float64(region.Box.X), float64(region.Box.Y), float64(region.Box.Width), float64(region.Box.Height))
		dc.Stroke()
		for _, kp := range region.Keypoints {
			dc.DrawCircle(float64(kp.X), float64(kp.Y), 2.5)
			dc.Fill()
		}
	}
}

// drawSkeleton renders the landmark skeleton: bones first, then joints on
// top. Points outside the frame are fine, gg clips them.
func drawSkeleton(frame *hand.Frame, points []nn.Point) {
	if len(points) < hand.NumLandmarks {
		return
	}
	dc := gg.NewContextForRGBA(wrapRGBA(frame))

	dc.SetRGBA(0.2, 1, 0.4, 0.9)
	dc.SetLineWidth(3)
	for _, bone := range skeletonBones {
		a := points[bone[0]]
		b := points[bone[1]]
		dc.DrawLine(float64(a.X), float64(a.Y), float64(b.X), float64(b.Y))
		dc.Stroke()
	}

	dc.SetRGBA(1, 1, 1, 0.95)
	for _, p := range points {
		dc.DrawCircle(float64(p.X), float64(p.Y), 3)
		dc.Fill()
	}
}
