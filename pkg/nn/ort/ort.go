// Package ort is the ONNX Runtime implementation of nn.Engine.
// It is the only concrete backend; the rest of the pipeline sees nn.Engine.
package ort

import (
	"fmt"
	"sync"

	"github.com/cyclopcam/handcam/pkg/nn"
	ort "github.com/yalue/onnxruntime_go"
)

var initOnce sync.Once
var initErr error

// Initialize loads the ONNX Runtime shared library and creates the global
// environment. Safe to call more than once. libraryPath may be empty, in
// which case the platform default search path is used.
func Initialize(libraryPath string) error {
	initOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// Engine runs a single ONNX model. Owned by one thread.
type Engine struct {
	session *ort.DynamicAdvancedSession
	config  *nn.ModelConfig
}

func NewEngine(modelPath string, config *nn.ModelConfig) (*Engine, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(2); err != nil {
		return nil, fmt.Errorf("set session threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{config.InputName}, config.OutputNames, options)
	if err != nil {
		return nil, fmt.Errorf("load ONNX session from %v: %w", modelPath, err)
	}

	return &Engine{
		session: session,
		config:  config,
	}, nil
}

func (e *Engine) Close() {
	e.session.Destroy()
}

func (e *Engine) Config() *nn.ModelConfig {
	return e.config
}

func (e *Engine) Run(input nn.Tensor) ([]nn.Tensor, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	shape := make([]int64, len(input.Shape))
	for i, s := range input.Shape {
		shape[i] = int64(s)
	}
	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// nil entries ask the runtime to allocate the outputs for us
	outputs := make([]ort.Value, len(e.config.OutputNames))
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}

	results := make([]nn.Tensor, 0, len(outputs))
	for i, out := range outputs {
		if out == nil {
			continue
		}
		t, ok := out.(*ort.Tensor[float32])
		if !ok {
			for _, remaining := range outputs[i:] {
				if remaining != nil {
					remaining.Destroy()
				}
			}
			return nil, fmt.Errorf("output %v (%v) is not a float32 tensor", i, e.config.OutputNames[i])
		}
		outShape := t.GetShape()
		resultShape := make([]int, len(outShape))
		for j, s := range outShape {
			resultShape[j] = int(s)
		}
		data := make([]float32, len(t.GetData()))
		copy(data, t.GetData())
		results = append(results, nn.Tensor{Shape: resultShape, Data: data})
		out.Destroy()
	}
	return results, nil
}
