// Package perfstats is a single place where we record the performance of the
// pipeline stages, so that it's easy to compare models and hardware.
package perfstats

import (
	"sync/atomic"
	"time"
)

// UpdateMovingAverage folds a new sample into an exponential moving average
// with a 1/64 weight.
func UpdateMovingAverage(stat *atomic.Int64, value int64) {
	// We don't bother about strict correctness here, with CompareAndSwap,
	// because this is just sampled stats, and it's OK to miss one or two samples.
	if stat.Load() == 0 {
		stat.Store(value)
	} else {
		stat.Store((stat.Load()*63 + value) >> 6)
	}
}

// Pipeline holds the counters published by the recognition worker and the
// compositor. All fields are atomics so that the HTTP status handler can
// read them from any goroutine.
type Pipeline struct {
	FramesIn             atomic.Int64 // Frames received from the camera
	FramesRecognized     atomic.Int64 // Frames that completed inference
	FramesDroppedIn      atomic.Int64 // Stale frames discarded before inference
	FramesComposited     atomic.Int64 // Frames drawn by the compositor
	FramesDroppedOut     atomic.Int64 // Composited frames evicted by a newer one
	AvgNSPerDetect       atomic.Int64 // Moving average, palm detection (ns)
	AvgNSPerLandmark     atomic.Int64 // Moving average, landmark inference (ns)
	AvgNSPerCompose      atomic.Int64 // Moving average, overlay drawing (ns)
	CurrentFrameInterval atomic.Int64 // Compositor pacing interval (ns)
}

// Snapshot is the JSON shape served by the status endpoint.
type Snapshot struct {
	FramesIn         int64   `json:"framesIn"`
	FramesRecognized int64   `json:"framesRecognized"`
	FramesDroppedIn  int64   `json:"framesDroppedIn"`
	FramesComposited int64   `json:"framesComposited"`
	FramesDroppedOut int64   `json:"framesDroppedOut"`
	DetectMS         float64 `json:"detectMS"`
	LandmarkMS       float64 `json:"landmarkMS"`
	ComposeMS        float64 `json:"composeMS"`
	OutputFPS        float64 `json:"outputFPS"`
}

func (p *Pipeline) Snapshot() Snapshot {
	s := Snapshot{
		FramesIn:         p.FramesIn.Load(),
		FramesRecognized: p.FramesRecognized.Load(),
		FramesDroppedIn:  p.FramesDroppedIn.Load(),
		FramesComposited: p.FramesComposited.Load(),
		FramesDroppedOut: p.FramesDroppedOut.Load(),
		DetectMS:         float64(p.AvgNSPerDetect.Load()) / 1e6,
		LandmarkMS:       float64(p.AvgNSPerLandmark.Load()) / 1e6,
		ComposeMS:        float64(p.AvgNSPerCompose.Load()) / 1e6,
	}
	if interval := p.CurrentFrameInterval.Load(); interval > 0 {
		s.OutputFPS = float64(time.Second) / float64(interval)
	}
	return s
}
