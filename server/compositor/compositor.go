// Package compositor draws recognition overlays onto frames and paces the
// output at an adaptive frame rate.
package compositor

import (
	"time"

	"github.com/cyclopcam/handcam/pkg/gen"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/server/perfstats"
	"github.com/cyclopcam/logs"
)

// overlayConfidenceThreshold gates skeleton drawing. Palm boxes are drawn
// regardless, so a low-confidence detection still gives visual feedback.
const overlayConfidenceThreshold = 0.5

// Compositor consumes recognized frames, draws overlays in place, and
// publishes composited frames on a capacity-1 channel, replacing any frame
// the consumer hasn't taken yet. Such a replacement is the backpressure
// signal that slows the cadence down.
type Compositor struct {
	log     logs.Log
	stats   *perfstats.Pipeline
	cadence cadenceController

	incoming <-chan *hand.RecognizedFrame
	output   chan *hand.RecognizedFrame
}

func NewCompositor(logger logs.Log, stats *perfstats.Pipeline, incoming <-chan *hand.RecognizedFrame) *Compositor {
	return &Compositor{
		log:      logs.NewPrefixLogger(logger, "compositor:"),
		stats:    stats,
		cadence:  newCadenceController(),
		incoming: incoming,
		output:   make(chan *hand.RecognizedFrame, 1),
	}
}

// Output is the paced stream of overlay-annotated frames.
func (c *Compositor) Output() <-chan *hand.RecognizedFrame {
	return c.output
}

// Start runs the compositor loop on its own goroutine. The loop exits, and
// closes Output, when the incoming channel closes.
func (c *Compositor) Start() {
	go c.run()
}

func (c *Compositor) run() {
	defer close(c.output)
	for {
		recognized, ok := gen.RecvNewest(c.incoming, nil)
		if !ok {
			return
		}

		composeStart := time.Now()
		c.compose(recognized)
		composeTime := time.Since(composeStart)
		perfstats.UpdateMovingAverage(&c.stats.AvgNSPerCompose, composeTime.Nanoseconds())
		c.stats.FramesComposited.Add(1)

		droppedFrame := gen.SendReplaceOldest(c.output, recognized)
		if droppedFrame {
			c.stats.FramesDroppedOut.Add(1)
		}

		interval := c.cadence.adjust(composeTime, droppedFrame)
		c.stats.CurrentFrameInterval.Store(int64(interval))
		if sleepFor := interval - composeTime; sleepFor > 0 {
			time.Sleep(sleepFor)
		}
	}
}

func (c *Compositor) compose(recognized *hand.RecognizedFrame) {
	result := &recognized.Result
	if len(result.PalmRegions) != 0 {
		drawPalmRegions(recognized.Frame, result.PalmRegions)
	}
	if result.Confidence >= overlayConfidenceThreshold && len(result.Landmarks) != 0 {
		drawSkeleton(recognized.Frame, result.Landmarks)
	}
}
