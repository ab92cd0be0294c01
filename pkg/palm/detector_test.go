package palm

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

const testInputSize = 192

type fakeEngine struct {
	config  nn.ModelConfig
	outputs []nn.Tensor
	err     error
}

func (f *fakeEngine) Close() {}

func (f *fakeEngine) Run(input nn.Tensor) ([]nn.Tensor, error) {
	return f.outputs, f.err
}

func (f *fakeEngine) Config() *nn.ModelConfig {
	return &f.config
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		config: nn.ModelConfig{
			Width:       testInputSize,
			Height:      testInputSize,
			Channels:    3,
			InputName:   "input",
			OutputNames: []string{"Identity", "Identity_1"},
		},
	}
}

func testFrame(width, height int) *hand.Frame {
	return &hand.Frame{
		Pixels: make([]byte, width*height*4),
		Width:  width,
		Height: height,
	}
}

// logit is the inverse of the sigmoid applied during decode.
func logit(p float32) float32 {
	return math32.Log(p / (1 - p))
}

// emptyOutputs returns regressor + score tensors that decode to no regions.
func emptyOutputs(numAnchors int) []nn.Tensor {
	regressors := nn.MakeTensor(1, numAnchors, regressorStride)
	scores := nn.MakeTensor(1, numAnchors, 1)
	for i := range scores.Data {
		scores.Data[i] = -50 // sigmoid(-50) is 0
	}
	return []nn.Tensor{regressors, scores}
}

// setDetection writes a detection into the output tensors at an anchor.
// dx,dy,w,h and the keypoints are regressor values, ie offsets relative to
// the anchor center in input pixels.
func setDetection(outputs []nn.Tensor, anchor int, score, dx, dy, w, h float32) {
	r := outputs[0].Data[anchor*regressorStride:]
	r[0] = dx
	r[1] = dy
	r[2] = w
	r[3] = h
	// Keypoint 0 (wrist center) below the box center, keypoint 2 (middle
	// finger base) above it, so the hand points straight up.
	r[4+KeypointWristCenter*2] = dx
	r[4+KeypointWristCenter*2+1] = dy + h/2
	r[4+KeypointMiddleBase*2] = dx
	r[4+KeypointMiddleBase*2+1] = dy - h/2
	outputs[1].Data[anchor] = logit(score)
}

func TestGenerateAnchors(t *testing.T) {
	anchors := generateAnchors(testInputSize)
	require.Len(t, anchors, 2016)
	// First anchor sits at the center of the top-left stride-8 cell
	require.InDelta(t, 0.5/24, anchors[0].X, 1e-6)
	require.InDelta(t, 0.5/24, anchors[0].Y, 1e-6)
	// All anchors are inside the unit square
	for _, a := range anchors {
		require.Greater(t, a.X, float32(0))
		require.Less(t, a.X, float32(1))
		require.Greater(t, a.Y, float32(0))
		require.Less(t, a.Y, float32(1))
	}
}

func TestDetectDecodesRegion(t *testing.T) {
	engine := newFakeEngine()
	detector := NewDetector(logs.NewTestingLog(t), engine, DefaultConfig())

	// Anchor at grid cell (12,12) of the stride-8 layer: center (100, 100)
	anchor := (12*24 + 12) * 2
	outputs := emptyOutputs(len(detector.anchors))
	setDetection(outputs, anchor, 0.9, 0, 0, 48, 48)
	engine.outputs = outputs

	regions := detector.Detect(testFrame(testInputSize, testInputSize))
	require.Len(t, regions, 1)

	region := regions[0]
	require.InDelta(t, 0.9, region.Score, 1e-3)
	require.InDelta(t, 76, region.Box.X, 1e-2)
	require.InDelta(t, 76, region.Box.Y, 1e-2)
	require.InDelta(t, 48, region.Box.Width, 1e-2)
	require.InDelta(t, 48, region.Box.Height, 1e-2)
	require.Len(t, region.Keypoints, numKeypoints)
	require.InDelta(t, 100, region.Keypoints[KeypointWristCenter].X, 1e-2)
	require.InDelta(t, 124, region.Keypoints[KeypointWristCenter].Y, 1e-2)
}

func TestDetectBackProjectsToFrameCoordinates(t *testing.T) {
	engine := newFakeEngine()
	detector := NewDetector(logs.NewTestingLog(t), engine, DefaultConfig())

	anchor := (12*24 + 12) * 2
	outputs := emptyOutputs(len(detector.anchors))
	setDetection(outputs, anchor, 0.9, 0, 0, 48, 48)
	engine.outputs = outputs

	// A 384-wide frame letterboxes at scale 0.5, so every decoded
	// coordinate doubles on the way back out.
	regions := detector.Detect(testFrame(384, 384))
	require.Len(t, regions, 1)
	require.InDelta(t, 152, regions[0].Box.X, 1e-2)
	require.InDelta(t, 96, regions[0].Box.Width, 1e-2)
}

func TestDetectThreshold(t *testing.T) {
	engine := newFakeEngine()
	detector := NewDetector(logs.NewTestingLog(t), engine, DefaultConfig())

	outputs := emptyOutputs(len(detector.anchors))
	setDetection(outputs, 0, 0.4, 0, 0, 48, 48) // below 0.5
	engine.outputs = outputs

	require.Empty(t, detector.Detect(testFrame(testInputSize, testInputSize)))
}

func TestDetectNMSKeepsHighestScore(t *testing.T) {
	engine := newFakeEngine()
	detector := NewDetector(logs.NewTestingLog(t), engine, DefaultConfig())

	// Two anchors in the same cell produce near-identical boxes; NMS must
	// keep only the higher scoring one.
	anchor := (12*24 + 12) * 2
	outputs := emptyOutputs(len(detector.anchors))
	setDetection(outputs, anchor, 0.7, 0, 0, 48, 48)
	setDetection(outputs, anchor+1, 0.95, 1, 1, 48, 48)
	engine.outputs = outputs

	regions := detector.Detect(testFrame(testInputSize, testInputSize))
	require.Len(t, regions, 1)
	require.InDelta(t, 0.95, regions[0].Score, 1e-3)
}

func TestDetectErrorsAreRecoverable(t *testing.T) {
	engine := newFakeEngine()
	detector := NewDetector(logs.NewTestingLog(t), engine, DefaultConfig())

	engine.err = errors.New("inference blew up")
	require.Empty(t, detector.Detect(testFrame(testInputSize, testInputSize)))

	engine.err = nil
	engine.outputs = []nn.Tensor{nn.MakeTensor(1, 10)}
	require.Empty(t, detector.Detect(testFrame(testInputSize, testInputSize)))
}

func TestPrimaryRegion(t *testing.T) {
	require.Nil(t, PrimaryRegion(nil))

	regions := []hand.PalmRegion{
		{Score: 0.6, Box: nn.Rect{Width: 10, Height: 10}},
		{Score: 0.9, Box: nn.Rect{Width: 10, Height: 10}},
		{Score: 0.7, Box: nn.Rect{Width: 50, Height: 50}},
	}
	require.Equal(t, &regions[1], PrimaryRegion(regions))

	// Scores within 1e-6 are tied, and the larger box wins
	tied := []hand.PalmRegion{
		{Score: 0.8, Box: nn.Rect{Width: 10, Height: 10}},
		{Score: 0.8, Box: nn.Rect{Width: 20, Height: 20}},
	}
	require.Equal(t, &tied[1], PrimaryRegion(tied))
}

func TestRegionCrop(t *testing.T) {
	region := &hand.PalmRegion{
		Box: nn.Rect{X: 80, Y: 80, Width: 40, Height: 40},
		Keypoints: []nn.Point{
			{X: 100, Y: 120}, // wrist center
			{},
			{X: 100, Y: 80}, // middle finger base
			{}, {}, {}, {},
		},
		Score: 0.9,
	}

	crop := RegionCrop(region)
	require.InDelta(t, 2.6*40, crop.Side, 1e-3)
	// Axis points straight up, so the angle is zero and the center shifts
	// up by half the box height.
	require.InDelta(t, 0, crop.Angle, 1e-4)
	require.InDelta(t, 100, crop.Center.X, 1e-3)
	require.InDelta(t, 100-0.5*40, crop.Center.Y, 1e-3)
}

func TestRegionCropWithoutKeypoints(t *testing.T) {
	region := &hand.PalmRegion{
		Box:   nn.Rect{X: 80, Y: 80, Width: 40, Height: 20},
		Score: 0.9,
	}
	crop := RegionCrop(region)
	require.InDelta(t, 2.6*40, crop.Side, 1e-3)
	require.Equal(t, float32(0), crop.Angle)
	require.InDelta(t, 100, crop.Center.X, 1e-3)
	require.InDelta(t, 90, crop.Center.Y, 1e-3)
}

func TestLetterboxBackProject(t *testing.T) {
	lbox := letterbox{scale: 0.5}
	p := lbox.backProject(nn.Point{X: 10, Y: 20})
	require.Equal(t, float32(20), p.X)
	require.Equal(t, float32(40), p.Y)
}

func TestPrepareInputPadsWithBlack(t *testing.T) {
	// A 2:1 frame of solid white fills only the top half of the square
	// input; the bottom half stays black.
	frame := testFrame(64, 32)
	for i := range frame.Pixels {
		frame.Pixels[i] = 255
	}
	tensor, lbox := prepareInput(frame, testInputSize)
	require.NoError(t, tensor.Validate())
	require.InDelta(t, 3.0, lbox.scale, 1e-4)

	// Top-left pixel is white
	require.InDelta(t, 1.0, tensor.Data[0], 1e-3)
	// A pixel in the bottom half is black
	bottom := (testInputSize - 1) * testInputSize * 3
	require.Equal(t, float32(0), tensor.Data[bottom])
}
