// Package camera provides the frame sources that feed the recognition
// pipeline.
package camera

import (
	"github.com/cyclopcam/handcam/pkg/hand"
)

// Source produces RGBA frames. Frames() closes after Stop returns; Stop
// blocks until the capture goroutine has exited, so no frame is written
// after Stop completes.
type Source interface {
	Frames() <-chan *hand.Frame
	Stop()
}
