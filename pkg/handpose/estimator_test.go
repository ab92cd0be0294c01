package handpose

import (
	"testing"

	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

const testInputSize = 224

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
			OutputNames: []string{"Identity", "Identity_1", "Identity_2"},
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

// landmarkTensor builds the model's coordinate output with every landmark at
// the same input-pixel position.
func landmarkTensor(x, y, z float32) nn.Tensor {
	tensor := nn.MakeTensor(1, hand.NumLandmarks*3)
	for i := 0; i < hand.NumLandmarks; i++ {
		tensor.Data[i*3+0] = x
		tensor.Data[i*3+1] = y
		tensor.Data[i*3+2] = z
	}
	return tensor
}

func scalarTensor(v float32) nn.Tensor {
	t := nn.MakeTensor(1, 1)
	t.Data[0] = v
	return t
}

func identityCrop() hand.CropTransform {
	return hand.CropTransform{
		Center: nn.Point{X: testInputSize / 2, Y: testInputSize / 2},
		Side:   testInputSize,
		Angle:  0,
	}
}

func TestEstimateDecodesLandmarks(t *testing.T) {
	engine := newFakeEngine()
	engine.outputs = []nn.Tensor{
		landmarkTensor(112, 56, 10),
		scalarTensor(1.0),
		scalarTensor(0.8),
	}
	estimator := NewEstimator(logs.NewTestingLog(t), engine)

	output, err := estimator.Estimate(testFrame(testInputSize, testInputSize), identityCrop(), 1.0, false)
	require.NoError(t, err)
	require.Len(t, output.Raw, hand.NumLandmarks)
	require.Len(t, output.Projected, hand.NumLandmarks)

	// Raw landmarks are normalized by input size
	require.InDelta(t, 0.5, output.Raw[0].X, 1e-4)
	require.InDelta(t, 0.25, output.Raw[0].Y, 1e-4)
	require.InDelta(t, 10.0/testInputSize, output.Raw[0].Z, 1e-4)

	// The identity crop projects them straight back to input pixels
	require.InDelta(t, 112, output.Projected[0].X, 1e-2)
	require.InDelta(t, 56, output.Projected[0].Y, 1e-2)

	require.InDelta(t, 1.0, output.Confidence, 1e-4)
	require.InDelta(t, 0.8, output.Handedness, 1e-4)
}

func TestEstimateConfidencePrior(t *testing.T) {
	engine := newFakeEngine()
	engine.outputs = []nn.Tensor{
		landmarkTensor(112, 112, 0),
		scalarTensor(0.8),
		scalarTensor(0.5),
	}
	estimator := NewEstimator(logs.NewTestingLog(t), engine)

	// Confidence is model confidence x detection prior
	output, err := estimator.Estimate(testFrame(testInputSize, testInputSize), identityCrop(), 0.5, false)
	require.NoError(t, err)
	require.InDelta(t, 0.4, output.Confidence, 1e-4)

	// A tracker-fallback crop is damped by a further 0.9
	output, err = estimator.Estimate(testFrame(testInputSize, testInputSize), identityCrop(), 0.5, true)
	require.NoError(t, err)
	require.InDelta(t, 0.36, output.Confidence, 1e-4)
}

func TestEstimateRejectsShortTensor(t *testing.T) {
	engine := newFakeEngine()
	engine.outputs = []nn.Tensor{
		nn.MakeTensor(1, 10),
		scalarTensor(1.0),
	}
	estimator := NewEstimator(logs.NewTestingLog(t), engine)

	_, err := estimator.Estimate(testFrame(testInputSize, testInputSize), identityCrop(), 1.0, false)
	require.Error(t, err)

	engine.outputs = nil
	_, err = estimator.Estimate(testFrame(testInputSize, testInputSize), identityCrop(), 1.0, false)
	require.Error(t, err)
}

func TestEstimateMissingConfidenceOutputs(t *testing.T) {
	engine := newFakeEngine()
	engine.outputs = []nn.Tensor{landmarkTensor(112, 112, 0)}
	estimator := NewEstimator(logs.NewTestingLog(t), engine)

	output, err := estimator.Estimate(testFrame(testInputSize, testInputSize), identityCrop(), 1.0, false)
	require.NoError(t, err)
	require.Equal(t, float32(0), output.Confidence)
	require.Equal(t, float32(0), output.Handedness)
}

func TestPrepareRotatedCropSamplesInPlace(t *testing.T) {
	// Frame with a solid red left half and solid blue right half.
	frame := testFrame(100, 100)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			i := (y*100 + x) * 4
			if x < 50 {
				frame.Pixels[i] = 255
			} else {
				frame.Pixels[i+2] = 255
			}
			frame.Pixels[i+3] = 255
		}
	}

	xform := hand.CropTransform{Center: nn.Point{X: 50, Y: 50}, Side: 100, Angle: 0}
	tensor := prepareRotatedCrop(frame, xform, 10)
	require.NoError(t, tensor.Validate())

	// Left column red, right column blue
	require.InDelta(t, 1.0, tensor.Data[0], 0.05)
	require.InDelta(t, 0.0, tensor.Data[2], 0.05)
	right := (0*10 + 9) * 3
	require.InDelta(t, 0.0, tensor.Data[right], 0.05)
	require.InDelta(t, 1.0, tensor.Data[right+2], 0.05)
}

func TestPrepareRotatedCropOutsideBoundsIsBlack(t *testing.T) {
	frame := testFrame(20, 20)
	for i := range frame.Pixels {
		frame.Pixels[i] = 255
	}

	// Crop centered far outside the frame samples only black.
	xform := hand.CropTransform{Center: nn.Point{X: 500, Y: 500}, Side: 50, Angle: 0.3}
	tensor := prepareRotatedCrop(frame, xform, 8)
	for _, v := range tensor.Data {
		require.Equal(t, float32(0), v)
	}
}
