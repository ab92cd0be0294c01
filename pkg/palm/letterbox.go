package palm

import (
	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
)

// letterbox records how a frame was scaled into the square model input:
// uniform scale, padded with black on the right/bottom edge.
type letterbox struct {
	scale float32 // frame pixels -> input pixels
}

// backProject maps a point in model input pixels back into frame pixels.
func (l letterbox) backProject(p nn.Point) nn.Point {
	return nn.Point{X: p.X / l.scale, Y: p.Y / l.scale}
}

// prepareInput scales the frame uniformly to fit the model input square,
// pads the remainder with black, and writes RGB floats in [0,1] into a
// [1,H,W,3] tensor.
func prepareInput(frame *hand.Frame, inputSize int) (nn.Tensor, letterbox) {
	scale := min(float32(inputSize)/float32(frame.Width), float32(inputSize)/float32(frame.Height))
	scaledWidth := max(1, int(float32(frame.Width)*scale))
	scaledHeight := max(1, int(float32(frame.Height)*scale))

	src := cimg.WrapImage(frame.Width, frame.Height, cimg.PixelFormatRGBA, frame.Pixels)
	scaled := cimg.ResizeNew(src, scaledWidth, scaledHeight, nil)

	tensor := nn.MakeTensor(1, inputSize, inputSize, 3)
	for y := 0; y < scaledHeight; y++ {
		row := scaled.Pixels[y*scaled.Stride:]
		out := tensor.Data[y*inputSize*3:]
		for x := 0; x < scaledWidth; x++ {
			out[x*3+0] = float32(row[x*4+0]) / 255
			out[x*3+1] = float32(row[x*4+1]) / 255
			out[x*3+2] = float32(row[x*4+2]) / 255
		}
	}
	return tensor, letterbox{scale: scale}
}
