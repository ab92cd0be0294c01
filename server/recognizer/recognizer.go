// Package recognizer runs the hand recognition worker: palm detection,
// landmark inference, gesture classification, and the short-lived ROI track
// that bridges palm detection dropouts.
package recognizer

import (
	"time"

	"github.com/cyclopcam/handcam/pkg/gen"
	"github.com/cyclopcam/handcam/pkg/gesture"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/pkg/handpose"
	"github.com/cyclopcam/handcam/pkg/nn"
	"github.com/cyclopcam/handcam/pkg/nn/ort"
	"github.com/cyclopcam/handcam/pkg/palm"
	"github.com/cyclopcam/handcam/server/perfstats"
	"github.com/cyclopcam/logs"
)

const (
	labelNoHand   = "no hand"
	labelHandOnly = "hand detected"
)

// PalmModelConfig describes the MediaPipe palm detection model.
func PalmModelConfig() *nn.ModelConfig {
	return &nn.ModelConfig{
		Width:       192,
		Height:      192,
		Channels:    3,
		InputName:   "input",
		OutputNames: []string{"Identity", "Identity_1"},
	}
}

// HandposeModelConfig describes the MediaPipe hand landmark model.
// Outputs are landmark coordinates, presence confidence, and handedness.
func HandposeModelConfig() *nn.ModelConfig {
	return &nn.ModelConfig{
		Width:       224,
		Height:      224,
		Channels:    3,
		InputName:   "input",
		OutputNames: []string{"Identity", "Identity_1", "Identity_2"},
	}
}

// Options configures the recognition worker started by Start.
type Options struct {
	PalmModelPath     string
	HandposeModelPath string
	Palm              palm.Config
}

// Recognizer consumes camera frames and produces recognized frames. All of
// its mutable state (tracker, classifier, moving averages' warm-up) is owned
// by the single goroutine running Run.
type Recognizer struct {
	log        logs.Log
	detector   *palm.Detector
	estimator  *handpose.Estimator
	classifier *gesture.Classifier
	tracker    handTracker
	stats      *perfstats.Pipeline

	incoming <-chan *hand.Frame
	results  chan *hand.RecognizedFrame

	lastErrAt time.Time
}

// NewRecognizer wires a worker around already-built inference stages.
// The worker takes ownership of results and closes it when incoming closes.
func NewRecognizer(logger logs.Log, detector *palm.Detector, estimator *handpose.Estimator, stats *perfstats.Pipeline, incoming <-chan *hand.Frame, results chan *hand.RecognizedFrame) *Recognizer {
	return &Recognizer{
		log:        logs.NewPrefixLogger(logger, "recognizer:"),
		detector:   detector,
		estimator:  estimator,
		classifier: gesture.NewClassifier(),
		stats:      stats,
		incoming:   incoming,
		results:    results,
	}
}

// Start launches the worker on its own goroutine, constructing the ONNX
// sessions there so that a slow model load doesn't block the caller. If a
// model fails to load we log the error and shut the pipeline down by closing
// the results channel.
func Start(logger logs.Log, options Options, incoming <-chan *hand.Frame, results chan *hand.RecognizedFrame, stats *perfstats.Pipeline) {
	go func() {
		palmEngine, err := ort.NewEngine(options.PalmModelPath, PalmModelConfig())
		if err != nil {
			logger.Errorf("Failed to load palm detector from %v: %v", options.PalmModelPath, err)
			close(results)
			return
		}
		defer palmEngine.Close()

		poseEngine, err := ort.NewEngine(options.HandposeModelPath, HandposeModelConfig())
		if err != nil {
			logger.Errorf("Failed to load handpose model from %v: %v", options.HandposeModelPath, err)
			close(results)
			return
		}
		defer poseEngine.Close()

		logger.Infof("Recognizer ready: palm %v, handpose %v", options.PalmModelPath, options.HandposeModelPath)

		detector := palm.NewDetector(logger, palmEngine, options.Palm)
		estimator := handpose.NewEstimator(logger, poseEngine)
		NewRecognizer(logger, detector, estimator, stats, incoming, results).Run()
	}()
}

// Run processes frames until the incoming channel closes, always operating
// on the newest available frame and discarding any backlog.
func (r *Recognizer) Run() {
	defer close(r.results)
	for {
		dropped := int64(0)
		frame, ok := gen.RecvNewest(r.incoming, &dropped)
		r.stats.FramesDroppedIn.Add(dropped)
		r.stats.FramesIn.Add(dropped)
		if !ok {
			return
		}
		r.stats.FramesIn.Add(1)
		r.processFrame(frame)
	}
}

func (r *Recognizer) processFrame(frame *hand.Frame) {
	now := frame.PTS

	start := time.Now()
	regions := r.detector.Detect(frame)
	perfstats.UpdateMovingAverage(&r.stats.AvgNSPerDetect, time.Since(start).Nanoseconds())

	var xform hand.CropTransform
	var prior float32
	fromTracker := false
	if primary := palm.PrimaryRegion(regions); primary != nil {
		xform = palm.RegionCrop(primary)
		prior = primary.Score
	} else if roi, conf, ok := r.tracker.estimateRoi(now); ok {
		xform = roi
		prior = conf
		fromTracker = true
	} else {
		r.publish(frame, handpose.Output{}, regions)
		return
	}

	start = time.Now()
	output, err := r.estimator.Estimate(frame, xform, prior, fromTracker)
	perfstats.UpdateMovingAverage(&r.stats.AvgNSPerLandmark, time.Since(start).Nanoseconds())
	if err != nil {
		if time.Since(r.lastErrAt) > 15*time.Second {
			r.log.Errorf("Inference failed: %v", err)
			r.lastErrAt = time.Now()
		}
		return
	}

	if len(output.Raw) != 0 {
		r.tracker.update(xform, output.Projected, output.Confidence, now)
	}

	r.publish(frame, output, regions)
	r.stats.FramesRecognized.Add(1)
}

// publish builds the gesture result and offers it to the compositor without
// blocking. If the compositor hasn't picked up the previous result yet, this
// one is dropped.
func (r *Recognizer) publish(frame *hand.Frame, output handpose.Output, regions []hand.PalmRegion) {
	result := r.buildResult(frame, output, regions)
	gen.TrySend(r.results, &hand.RecognizedFrame{Frame: frame, Result: result})
}

func (r *Recognizer) buildResult(frame *hand.Frame, output handpose.Output, regions []hand.PalmRegion) hand.GestureResult {
	hasDetection := output.Confidence >= gesture.MinConfidence

	var detail *hand.GestureDetail
	if hasDetection {
		detail = r.classifier.Classify(output.Raw, output.Projected, output.Confidence, output.Handedness, frame.PTS)
	}

	label := labelNoHand
	if detail != nil {
		label = detail.Primary.String()
	} else if hasDetection {
		label = labelHandOnly
	}

	result := hand.GestureResult{
		Label:       label,
		Confidence:  output.Confidence,
		PTS:         frame.PTS,
		Detail:      detail,
		PalmRegions: regions,
	}
	if hasDetection {
		result.Landmarks = output.Projected
	}
	return result
}
