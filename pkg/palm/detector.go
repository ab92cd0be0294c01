// Package palm runs the first-stage palm detection model and decodes its
// output into candidate palm regions.
package palm

import (
	"fmt"
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
	"github.com/cyclopcam/logs"
)

const DefaultScoreThreshold = 0.5
const DefaultNmsIouThreshold = 0.3

// Empirically tuned crop parameters, preserved for behavioral parity.
const cropScale = 2.6      // crop side = 2.6 x max box dimension
const cropShift = 0.5      // center shift along the palm axis, x box height
const numKeypoints = 7     // keypoints per palm region in the regressor output
const regressorStride = 18 // dx,dy,w,h + 7 keypoint pairs
const rawScoreClamp = 100  // clamp raw logits before sigmoid

// Keypoint indices within a palm region.
const (
	KeypointWristCenter = 0
	KeypointMiddleBase  = 2
)

type Config struct {
	ScoreThreshold  float32
	NmsIouThreshold float32
}

func DefaultConfig() Config {
	return Config{
		ScoreThreshold:  DefaultScoreThreshold,
		NmsIouThreshold: DefaultNmsIouThreshold,
	}
}

// Detector decodes palm detection model output into palm regions.
// Owned by a single thread.
type Detector struct {
	log       logs.Log
	engine    nn.Engine
	config    Config
	anchors   []nn.Point
	inputSize int
	lastWarn  time.Time
}

func NewDetector(logger logs.Log, engine nn.Engine, config Config) *Detector {
	return &Detector{
		log:       logs.NewPrefixLogger(logger, "palm:"),
		engine:    engine,
		config:    config,
		anchors:   generateAnchors(engine.Config().Width),
		inputSize: engine.Config().Width,
	}
}

// Detect runs palm detection on the frame and returns candidate regions in
// frame pixel coordinates. Detection failure is expected and recoverable:
// on any internal error we log a warning (rate limited) and return an empty
// list, never an error.
func (d *Detector) Detect(frame *hand.Frame) []hand.PalmRegion {
	input, lbox := prepareInput(frame, d.inputSize)
	outputs, err := d.engine.Run(input)
	if err != nil {
		d.warnf("palm inference failed: %v", err)
		return nil
	}
	regions, err := d.decode(outputs, lbox)
	if err != nil {
		d.warnf("palm decode failed: %v", err)
		return nil
	}
	return regions
}

func (d *Detector) warnf(format string, args ...any) {
	if time.Now().Sub(d.lastWarn) > 15*time.Second {
		d.log.Warnf(format, args...)
		d.lastWarn = time.Now()
	}
}

// decode turns the raw regressor + score tensors into thresholded,
// NMS-filtered palm regions in frame pixel coordinates.
func (d *Detector) decode(outputs []nn.Tensor, lbox letterbox) ([]hand.PalmRegion, error) {
	if len(outputs) < 2 {
		return nil, fmt.Errorf("expected 2 output tensors, got %v", len(outputs))
	}
	regressors := outputs[0].Data
	scores := outputs[1].Data
	numAnchors := len(d.anchors)
	if len(regressors) < numAnchors*regressorStride || len(scores) < numAnchors {
		return nil, fmt.Errorf("output tensors too small for %v anchors: %v regressor, %v score floats",
			numAnchors, len(regressors), len(scores))
	}

	inputSize := float32(d.inputSize)
	boxes := []nn.Rect{}
	boxScores := []float32{}
	keypoints := [][]nn.Point{}
	for i := 0; i < numAnchors; i++ {
		score := sigmoid(clamp(scores[i], -rawScoreClamp, rawScoreClamp))
		if score < d.config.ScoreThreshold {
			continue
		}
		r := regressors[i*regressorStride : (i+1)*regressorStride]
		anchorX := d.anchors[i].X * inputSize
		anchorY := d.anchors[i].Y * inputSize
		cx := anchorX + r[0]
		cy := anchorY + r[1]
		w := r[2]
		h := r[3]
		if w <= 0 || h <= 0 {
			continue
		}
		boxes = append(boxes, nn.Rect{X: cx - w/2, Y: cy - h/2, Width: w, Height: h})
		boxScores = append(boxScores, score)
		kp := make([]nn.Point, numKeypoints)
		for k := 0; k < numKeypoints; k++ {
			kp[k] = nn.Point{
				X: anchorX + r[4+k*2],
				Y: anchorY + r[4+k*2+1],
			}
		}
		keypoints = append(keypoints, kp)
	}

	retain := nn.NonMaxSuppression(boxes, boxScores, d.config.NmsIouThreshold)
	regions := make([]hand.PalmRegion, 0, len(retain))
	for _, i := range retain {
		box := boxes[i]
		topLeft := lbox.backProject(nn.Point{X: box.X, Y: box.Y})
		bottomRight := lbox.backProject(nn.Point{X: box.X2(), Y: box.Y2()})
		kp := make([]nn.Point, len(keypoints[i]))
		for k, p := range keypoints[i] {
			kp[k] = lbox.backProject(p)
		}
		regions = append(regions, hand.PalmRegion{
			Box: nn.Rect{
				X:      topLeft.X,
				Y:      topLeft.Y,
				Width:  bottomRight.X - topLeft.X,
				Height: bottomRight.Y - topLeft.Y,
			},
			Keypoints: kp,
			Score:     boxScores[i],
		})
	}
	return regions, nil
}

// PrimaryRegion picks the single region the pipeline will track.
// Fixed rule, part of the contract: highest score wins; scores within 1e-6
// of each other are considered tied and broken by larger box area.
func PrimaryRegion(regions []hand.PalmRegion) *hand.PalmRegion {
	var best *hand.PalmRegion
	for i := range regions {
		r := &regions[i]
		if best == nil {
			best = r
			continue
		}
		delta := r.Score - best.Score
		if delta > 1e-6 || (math32.Abs(delta) <= 1e-6 && r.Box.Area() > best.Box.Area()) {
			best = r
		}
	}
	return best
}

// RegionCrop builds the square crop transform for the second-stage landmark
// model from a palm region: side 2.6x the larger box dimension, center
// shifted from the box center along the wrist->middle-finger axis, angle
// aligning that axis to vertical.
func RegionCrop(region *hand.PalmRegion) hand.CropTransform {
	center := region.Box.Center()
	side := cropScale * max(region.Box.Width, region.Box.Height)
	angle := float32(0)

	if len(region.Keypoints) > KeypointMiddleBase {
		wrist := region.Keypoints[KeypointWristCenter]
		middle := region.Keypoints[KeypointMiddleBase]
		dx := middle.X - wrist.X
		dy := middle.Y - wrist.Y
		length := math32.Hypot(dx, dy)
		if length > 1e-3 {
			angle = hand.OrientationFromAxis(dx, dy)
			center.X += dx / length * cropShift * region.Box.Height
			center.Y += dy / length * cropShift * region.Box.Height
		}
	}

	return hand.CropTransform{Center: center, Side: side, Angle: angle}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(hi, v))
}
