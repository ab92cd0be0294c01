// Package handpose runs the second-stage hand landmark model on a rotated
// crop and decodes its 21 3D landmarks.
package handpose

import (
	"fmt"

	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
	"github.com/cyclopcam/logs"
)

// Confidence from a tracker-fallback crop is damped to reflect the extra
// uncertainty of not having a fresh palm detection.
const trackerConfidenceDamping = 0.9

// Output of one landmark estimation cycle. Raw landmarks are in normalized
// crop space; Projected are in frame pixels. Empty landmarks mean "no hand",
// which is not an error.
type Output struct {
	Raw        hand.Landmarks
	Projected  []nn.Point
	Confidence float32
	Handedness float32
}

// Estimator decodes landmark model output. Owned by a single thread.
type Estimator struct {
	log       logs.Log
	engine    nn.Engine
	inputSize int
}

func NewEstimator(logger logs.Log, engine nn.Engine) *Estimator {
	return &Estimator{
		log:       logs.NewPrefixLogger(logger, "handpose:"),
		engine:    engine,
		inputSize: engine.Config().Width,
	}
}

// Estimate runs the landmark model on the crop described by xform.
// priorScore is the detection score of the region that produced the crop;
// fromTracker is true when the crop came from the tracking fallback path
// rather than a fresh palm detection.
// Returns an error only for per-frame recoverable failures (the caller logs
// and skips the frame).
func (e *Estimator) Estimate(frame *hand.Frame, xform hand.CropTransform, priorScore float32, fromTracker bool) (Output, error) {
	input := prepareRotatedCrop(frame, xform, e.inputSize)
	outputs, err := e.engine.Run(input)
	if err != nil {
		return Output{}, fmt.Errorf("landmark inference: %w", err)
	}
	if len(outputs) < 1 {
		return Output{}, fmt.Errorf("landmark model returned no outputs")
	}

	landmarks, err := e.decodeLandmarks(outputs[0].Data)
	if err != nil {
		return Output{}, err
	}

	confidence := float32(0)
	if len(outputs) > 1 && len(outputs[1].Data) > 0 {
		confidence = outputs[1].Data[0]
	}
	handedness := float32(0)
	if len(outputs) > 2 && len(outputs[2].Data) > 0 {
		handedness = outputs[2].Data[0]
	}

	// Effective confidence is the model's own confidence multiplied by the
	// detection prior of the region the crop came from.
	confidence = clamp(confidence*priorScore, 0, 1)
	if fromTracker {
		confidence = trackerConfidenceDamping * confidence
	}

	return Output{
		Raw:        landmarks,
		Projected:  xform.Project(landmarks),
		Confidence: confidence,
		Handedness: handedness,
	}, nil
}

// decodeLandmarks converts the flat x,y,z triplet tensor into normalized
// crop-space landmarks. The model emits coordinates in input pixels; we
// divide by the input size.
func (e *Estimator) decodeLandmarks(flat []float32) (hand.Landmarks, error) {
	if len(flat) < hand.NumLandmarks*3 {
		return nil, fmt.Errorf("landmark tensor has %v floats, need %v", len(flat), hand.NumLandmarks*3)
	}
	scale := 1 / float32(e.inputSize)
	landmarks := make(hand.Landmarks, hand.NumLandmarks)
	for i := 0; i < hand.NumLandmarks; i++ {
		landmarks[i] = hand.Point3{
			X: flat[i*3+0] * scale,
			Y: flat[i*3+1] * scale,
			Z: flat[i*3+2] * scale,
		}
	}
	return landmarks, nil
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}
