package palm

import (
	"github.com/cyclopcam/handcam/pkg/nn"
)

// SSD anchor layout for the 192x192 palm detection model: four feature map
// layers at strides 8,16,16,16. The stride-8 layer has 2 anchors per cell,
// and the three stride-16 layers contribute 2 anchors per cell each, which
// is equivalent to one 12x12 grid with 6 anchors per cell. Total:
// 24*24*2 + 12*12*6 = 2016 anchors. All anchors are square and unit-sized;
// the regressor output carries the real box extents.
func generateAnchors(inputSize int) []nn.Point {
	anchors := []nn.Point{}
	addLayer := func(stride, anchorsPerCell int) {
		cells := inputSize / stride
		for y := 0; y < cells; y++ {
			for x := 0; x < cells; x++ {
				cx := (float32(x) + 0.5) / float32(cells)
				cy := (float32(y) + 0.5) / float32(cells)
				for a := 0; a < anchorsPerCell; a++ {
					anchors = append(anchors, nn.Point{X: cx, Y: cy})
				}
			}
		}
	}
	addLayer(8, 2)
	addLayer(16, 2)
	addLayer(16, 2)
	addLayer(16, 2)
	return anchors
}
