package hand

import (
	"time"

	"github.com/cyclopcam/handcam/pkg/nn"
)

// Frame is one captured camera frame: tightly packed RGBA pixels and the
// capture timestamp. A frame has exactly one logical owner at a time; once
// sent down a channel, the sender must not touch it again.
type Frame struct {
	Pixels []byte // RGBA, 4 bytes per pixel, stride = Width*4
	Width  int
	Height int
	PTS    time.Time
}

// PalmRegion is one candidate palm detection: bounding box and keypoints in
// frame pixel coordinates, score in [0,1]. Ephemeral, recomputed every cycle.
type PalmRegion struct {
	Box       nn.Rect    `json:"box"`
	Keypoints []nn.Point `json:"keypoints"`
	Score     float32    `json:"score"`
}

// GestureResult is the classified outcome of one inference cycle.
// Landmarks is nil when no hand cleared the detection floor.
type GestureResult struct {
	Label       string         `json:"label"`
	Confidence  float32        `json:"confidence"`
	PTS         time.Time      `json:"pts"`
	Landmarks   []nn.Point     `json:"landmarks,omitempty"` // projected, frame pixels
	Detail      *GestureDetail `json:"detail,omitempty"`
	PalmRegions []PalmRegion   `json:"palmRegions"`
}

// RecognizedFrame pairs a frame with its gesture result. Produced once per
// inference cycle and consumed exactly once by the compositor.
type RecognizedFrame struct {
	Frame  *Frame
	Result GestureResult
}
