package handpose

import (
	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/nn"
)

// prepareRotatedCrop samples a square, rotated crop out of the frame into a
// [1,size,size,3] RGB float tensor in [0,1]. Pixels that fall outside the
// frame are letterboxed black. Bilinear sampling; none of the image
// libraries in our stack do rotated resampling, so we do it by hand.
func prepareRotatedCrop(frame *hand.Frame, xform hand.CropTransform, size int) nn.Tensor {
	tensor := nn.MakeTensor(1, size, size, 3)
	sin, cos := math32.Sincos(xform.Angle)
	// Walk the output grid by stepping the rotated basis vectors, instead of
	// calling Apply per pixel.
	step := xform.Side / float32(size)
	rowX := xform.Center.X + (-0.5*xform.Side+step*0.5)*(cos-sin)
	rowY := xform.Center.Y + (-0.5*xform.Side+step*0.5)*(sin+cos)
	duX, duY := cos*step, sin*step
	dvX, dvY := -sin*step, cos*step

	for y := 0; y < size; y++ {
		srcX, srcY := rowX, rowY
		out := tensor.Data[y*size*3:]
		for x := 0; x < size; x++ {
			r, g, b := sampleBilinear(frame, srcX, srcY)
			out[x*3+0] = r
			out[x*3+1] = g
			out[x*3+2] = b
			srcX += duX
			srcY += duY
		}
		rowX += dvX
		rowY += dvY
	}
	return tensor
}

// sampleBilinear reads an RGB sample at a fractional position, returning
// black outside the frame bounds.
func sampleBilinear(frame *hand.Frame, x, y float32) (r, g, b float32) {
	x -= 0.5
	y -= 0.5
	x0 := int(math32.Floor(x))
	y0 := int(math32.Floor(y))
	fx := x - float32(x0)
	fy := y - float32(y0)

	var acc [3]float32
	accumulate := func(px, py int, weight float32) {
		if weight <= 0 || px < 0 || py < 0 || px >= frame.Width || py >= frame.Height {
			return
		}
		i := (py*frame.Width + px) * 4
		acc[0] += weight * float32(frame.Pixels[i+0])
		acc[1] += weight * float32(frame.Pixels[i+1])
		acc[2] += weight * float32(frame.Pixels[i+2])
	}
	accumulate(x0, y0, (1-fx)*(1-fy))
	accumulate(x0+1, y0, fx*(1-fy))
	accumulate(x0, y0+1, (1-fx)*fy)
	accumulate(x0+1, y0+1, fx*fy)

	return acc[0] / 255, acc[1] / 255, acc[2] / 255
}
