// Package gesture classifies a set of hand landmarks into a gesture kind,
// and tracks wrist motion over a short time window.
package gesture

import (
	"time"

	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
)

// MinConfidence is the classification floor (inclusive). Below it we report
// "no stable gesture", which the caller distinguishes from "no hand" using
// the confidence alone.
const MinConfidence = 0.2

// The numeric thresholds in this file are empirically tuned and preserved
// exactly; don't re-derive them.

// Classifier is a pure decision table plus a stateful motion tracker.
// One instance lives for the lifetime of the recognition worker; it is not
// safe for concurrent use and doesn't need to be.
type Classifier struct {
	motion motionTracker
}

func NewClassifier() *Classifier {
	return &Classifier{
		motion: newMotionTracker(),
	}
}

// Classify derives the gesture detail for one frame's landmarks.
// Returns nil when confidence is below the floor or fewer than the full 21
// landmarks are present.
func (c *Classifier) Classify(raw hand.Landmarks, projected []nn.Point, confidence, handednessScore float32, timestamp time.Time) *hand.GestureDetail {
	if confidence < MinConfidence {
		return nil
	}
	if len(raw) < hand.NumLandmarks || len(projected) < hand.NumLandmarks {
		return nil
	}

	normalized := normalizeLandmarks(raw)
	wristPx := projected[hand.Wrist]
	spanPx := hand.PointSpan(projected, 1.0)

	fingerStates := [5]hand.FingerState{
		classifyThumb(normalized),
		classifyFinger(normalized, hand.IndexMCP, hand.IndexPIP, hand.IndexDIP, hand.IndexTip),
		classifyFinger(normalized, hand.MiddleMCP, hand.MiddlePIP, hand.MiddleDIP, hand.MiddleTip),
		classifyFinger(normalized, hand.RingMCP, hand.RingPIP, hand.RingDIP, hand.RingTip),
		classifyFinger(normalized, hand.PinkyMCP, hand.PinkyPIP, hand.PinkyDIP, hand.PinkyTip),
	}

	primary := detectPrimaryGesture(normalized, fingerStates)
	secondary := detectSecondary(normalized, fingerStates, primary)
	motion := c.motion.update(wristPx, spanPx, timestamp, primary)

	return &hand.GestureDetail{
		Primary:      primary,
		Secondary:    secondary,
		Handedness:   hand.HandednessFromScore(handednessScore),
		FingerStates: fingerStates,
		Motion:       motion,
	}
}

// normalizeLandmarks translates by the bounding box minimum and scales by
// the larger box dimension (floored to avoid dividing by near-zero),
// producing scale and translation invariant coordinates. Z is scaled by the
// same factor.
func normalizeLandmarks(points hand.Landmarks) hand.Landmarks {
	minX, minY, _, _ := points.Bounds()
	span := points.Span(1e-3)
	out := make(hand.Landmarks, len(points))
	for i, p := range points {
		out[i] = hand.Point3{
			X: (p.X - minX) / span,
			Y: (p.Y - minY) / span,
			Z: p.Z / span,
		}
	}
	return out
}

// classifyFinger classifies one of the four non-thumb fingers from
// wrist-relative distances and segment straightness.
func classifyFinger(points hand.Landmarks, mcp, pip, dip, tip int) hand.FingerState {
	wrist := points[hand.Wrist]

	distTip := points[tip].Distance(wrist)
	distPip := points[pip].Distance(wrist)
	distMcp := points[mcp].Distance(wrist)

	straightness := averageStraightness(
		points[pip].Sub(points[mcp]),
		points[dip].Sub(points[pip]),
		points[tip].Sub(points[dip]),
	)

	extension := distTip - distPip
	reach := distTip - distMcp

	if extension > 0.18 && straightness > 0.45 && reach > 0.08 {
		return hand.FingerExtended
	} else if extension < 0.08 || straightness < 0.18 || reach < 0.05 {
		return hand.FingerFolded
	}
	return hand.FingerHalfBent
}

// The thumb has no PIP/DIP chain, so it gets its own rule based on reach
// from the wrist, straightness of MCP->IP->TIP, and spread (proximity to the
// neighboring finger MCPs).
func classifyThumb(points hand.Landmarks) hand.FingerState {
	wrist := points[hand.Wrist]
	mcp := points[hand.ThumbCMC]
	ip := points[hand.ThumbMCP]
	tip := points[hand.ThumbTip]

	distTipWrist := tip.Distance(wrist)
	distTipIndex := tip.Distance(points[hand.IndexMCP])
	distTipPinky := tip.Distance(points[hand.PinkyMCP])
	straightness := averageStraightness(ip.Sub(mcp), tip.Sub(ip), tip.Sub(ip))

	spread := min(distTipIndex, distTipPinky)

	if spread < 0.16 && straightness < 0.25 {
		return hand.FingerFolded
	} else if distTipWrist > 0.35 && straightness > 0.35 {
		return hand.FingerExtended
	}
	return hand.FingerHalfBent
}

// averageStraightness is the mean cosine similarity of consecutive segment
// vectors, clamped to [-1,1]. 1 means perfectly straight.
func averageStraightness(a, b, c hand.Point3) float32 {
	ab := a.Normalized().Dot(b.Normalized())
	bc := b.Normalized().Dot(c.Normalized())
	return max(-1, min(1, (ab+bc)/2))
}

// detectPrimaryGesture evaluates the named predicates in fixed priority
// order; the first match wins. The order is part of the contract.
func detectPrimaryGesture(points hand.Landmarks, fingerStates [5]hand.FingerState) hand.GestureKind {
	extendedCount := 0
	foldedCount := 0
	for _, s := range fingerStates {
		if s == hand.FingerExtended {
			extendedCount++
		} else if s == hand.FingerFolded {
			foldedCount++
		}
	}

	thumb := fingerStates[0]
	index := fingerStates[1]
	middle := fingerStates[2]
	ring := fingerStates[3]
	pinky := fingerStates[4]

	thumbIndexGap := points[hand.ThumbTip].Distance(points[hand.IndexTip])
	thumbMiddleGap := points[hand.ThumbTip].Distance(points[hand.MiddleTip])
	wristY := points[hand.Wrist].Y
	thumbTipY := points[hand.ThumbTip].Y

	notExtended := func(s hand.FingerState) bool { return s != hand.FingerExtended }
	bentOrFolded := func(s hand.FingerState) bool {
		return s == hand.FingerHalfBent || s == hand.FingerFolded
	}

	// Finger heart: thumb + index very close, both at least half bent,
	// other fingers mostly folded, tips vertically aligned.
	fingerHeart := thumbIndexGap < 0.08 &&
		foldedCount >= 3 &&
		bentOrFolded(index) &&
		bentOrFolded(thumb) &&
		abs(points[hand.ThumbTip].Y-points[hand.IndexTip].Y) < 0.08

	// Pinch allows thumb-index or thumb-middle pairing; non-participating
	// fingers must not be extended.
	pinchWithIndex := thumbIndexGap < 0.12 && bentOrFolded(middle) && bentOrFolded(ring) && bentOrFolded(pinky)
	pinchWithMiddle := thumbMiddleGap < 0.12 && bentOrFolded(index) && bentOrFolded(ring) && bentOrFolded(pinky)
	pinchLike := pinchWithIndex || pinchWithMiddle
	okLike := thumbIndexGap < 0.18 && (middle == hand.FingerExtended || ring == hand.FingerExtended)
	iLoveYou := (thumb == hand.FingerExtended || thumb == hand.FingerHalfBent) &&
		index == hand.FingerExtended &&
		notExtended(middle) &&
		notExtended(ring) &&
		pinky == hand.FingerExtended
	rock := index == hand.FingerExtended &&
		pinky == hand.FingerExtended &&
		notExtended(middle) &&
		notExtended(ring) &&
		thumb == hand.FingerFolded
	victory := index == hand.FingerExtended &&
		middle == hand.FingerExtended &&
		notExtended(ring) &&
		notExtended(pinky)
	point := index == hand.FingerExtended &&
		notExtended(middle) &&
		notExtended(ring) &&
		notExtended(pinky)
	three := index == hand.FingerExtended &&
		middle == hand.FingerExtended &&
		ring == hand.FingerExtended &&
		notExtended(pinky)
	four := extendedCount >= 4 && notExtended(thumb)
	fist := foldedCount >= 4
	openPalm := extendedCount >= 4

	thumbUp := thumb == hand.FingerExtended && foldedCount >= 3 && thumbTipY+0.08 < wristY
	thumbDown := thumb == hand.FingerExtended && foldedCount >= 3 && thumbTipY > wristY+0.08

	switch {
	case fingerHeart:
		return hand.GestureFingerHeart
	case pinchLike:
		return hand.GesturePinch
	case okLike:
		return hand.GestureOk
	case iLoveYou:
		return hand.GestureILoveYou
	case rock:
		return hand.GestureRock
	case victory:
		return hand.GestureVictory
	case point:
		return hand.GesturePoint
	case thumbUp:
		return hand.GestureThumbUp
	case thumbDown:
		return hand.GestureThumbDown
	case fist:
		return hand.GestureFist
	case four:
		return hand.GestureFour
	case openPalm:
		return hand.GestureOpenPalm
	case three:
		return hand.GestureThree
	}
	return hand.GestureUnknown
}

// detectSecondary produces a fallback guess, only when the primary
// classification came up Unknown.
func detectSecondary(points hand.Landmarks, fingerStates [5]hand.FingerState, primary hand.GestureKind) hand.GestureKind {
	if primary != hand.GestureUnknown {
		return hand.GestureUnknown
	}

	extendedCount := 0
	foldedCount := 0
	for _, s := range fingerStates {
		if s == hand.FingerExtended {
			extendedCount++
		} else if s == hand.FingerFolded {
			foldedCount++
		}
	}

	thumbGap := min(
		points[hand.ThumbTip].Distance(points[hand.IndexTip]),
		points[hand.ThumbTip].Distance(points[hand.MiddleTip]),
	)

	switch {
	case extendedCount >= 4:
		return hand.GestureOpenPalm
	case foldedCount >= 4:
		return hand.GestureFist
	case thumbGap < 0.14:
		return hand.GesturePinch
	}
	return hand.GestureUnknown
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
