package camera

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/handcam/pkg/gen"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/logs"
)

// SyntheticSource generates procedural frames at a fixed rate, for running
// the pipeline without a physical camera. The pattern is a slow gradient
// with a bright disc orbiting the center, which gives the overlay something
// to be drawn over and gives encoders non-trivial input.
type SyntheticSource struct {
	log    logs.Log
	width  int
	height int
	fps    int

	frames  chan *hand.Frame
	stop    atomic.Bool
	stopped sync.WaitGroup
}

func NewSyntheticSource(logger logs.Log, width, height, fps int) *SyntheticSource {
	// Guard against a zero or negative rate from the command line
	fps = max(fps, 1)
	s := &SyntheticSource{
		log:    logs.NewPrefixLogger(logger, "camera:"),
		width:  width,
		height: height,
		fps:    fps,
		frames: make(chan *hand.Frame, 1),
	}
	s.stopped.Add(1)
	go s.run()
	return s
}

func (s *SyntheticSource) Frames() <-chan *hand.Frame {
	return s.frames
}

// Stop halts frame production, waits for the capture goroutine, then closes
// the frame channel.
func (s *SyntheticSource) Stop() {
	s.stop.Store(true)
	s.stopped.Wait()
	close(s.frames)
}

func (s *SyntheticSource) run() {
	defer s.stopped.Done()
	s.log.Infof("Synthetic source started: %vx%v @ %v fps", s.width, s.height, s.fps)

	interval := time.Second / time.Duration(s.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for !s.stop.Load() {
		<-ticker.C
		now := time.Now()
		frame := &hand.Frame{
			Pixels: renderPattern(s.width, s.height, float32(now.Sub(start).Seconds())),
			Width:  s.width,
			Height: s.height,
			PTS:    now,
		}
		// Drop if the worker is busy, otherwise forward every frame.
		gen.TrySend(s.frames, frame)
	}
}

func renderPattern(width, height int, t float32) []byte {
	pixels := make([]byte, width*height*4)

	cx := float32(width)/2 + float32(width)/4*math32.Cos(t*0.8)
	cy := float32(height)/2 + float32(height)/4*math32.Sin(t*0.8)
	radius := float32(min(width, height)) / 10

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := byte(int(float32(x)*255/float32(width)+t*40) & 255)
			g := byte(int(float32(y) * 255 / float32(height)))
			b := byte(64)
			dx := float32(x) - cx
			dy := float32(y) - cy
			if dx*dx+dy*dy < radius*radius {
				r, g, b = 255, 255, 240
			}
			pixels[i] = r
			pixels[i+1] = g
			pixels[i+2] = b
			pixels[i+3] = 255
			i += 4
		}
	}
	return pixels
}
