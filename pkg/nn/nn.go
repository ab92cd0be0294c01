package nn

import (
	"fmt"
)

// Package nn is the neural network interface layer.
// Concrete inference backends live in sub-packages (eg nn/ort).

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// MakeTensor allocates a zeroed tensor with the given shape.
func MakeTensor(shape ...int) Tensor {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return Tensor{
		Shape: shape,
		Data:  make([]float32, n),
	}
}

// Elements returns the number of elements implied by the shape.
func (t Tensor) Elements() int {
	n := 1
	for _, s := range t.Shape {
		n *= s
	}
	return n
}

// Validate checks that the data length matches the shape.
func (t Tensor) Validate() error {
	if len(t.Data) != t.Elements() {
		return fmt.Errorf("tensor shape %v implies %v elements, but data has %v", t.Shape, t.Elements(), len(t.Data))
	}
	return nil
}

// ModelConfig describes the fixed input/output contract of a model.
// Callers assume that ModelConfig remains constant once an engine has
// been created.
type ModelConfig struct {
	Width       int      // Model input width (eg 192)
	Height      int      // Model input height (eg 224)
	Channels    int      // Model input channels (3 for RGB)
	InputName   string   // Name of the input tensor (eg "input_1")
	OutputNames []string // Names of the output tensors, in order
}

// InputElements returns the number of floats in one input image.
func (c *ModelConfig) InputElements() int {
	return c.Width * c.Height * c.Channels
}

// Engine runs a model on a fixed-size input tensor and returns its raw
// output tensors. The engine is owned by a single thread; implementations
// do not need to be safe for concurrent use.
type Engine interface {
	// Close releases the engine (you MUST call this when finished, because
	// it's a C++ object underneath).
	Close()

	// Run executes the model. A shape mismatch or missing output is a
	// recoverable per-call failure, not a reason to tear the engine down.
	Run(input Tensor) ([]Tensor, error)

	// Config returns the model's input/output contract.
	Config() *ModelConfig
}
