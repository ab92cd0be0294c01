// Package www serves the live view: a websocket stream of composited JPEG
// frames with gesture results, and a JSON status endpoint.
package www

import (
	"net/http"
	"sync"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/handcam/pkg/gen"
	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/handcam/server/perfstats"
	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const jpegQuality = 85

// A composited frame, encoded once and fanned out to every connected viewer.
type liveUpdate struct {
	jpeg   []byte
	result *hand.GestureResult
}

// Server fans composited frames out to websocket viewers. Viewers are
// best-effort: a slow client drops updates and never stalls the compositor.
type Server struct {
	log        logs.Log
	stats      *perfstats.Pipeline
	router     *httprouter.Router
	wsUpgrader websocket.Upgrader

	sinksLock sync.Mutex
	sinks     []chan *liveUpdate

	lastEncodeErr time.Time
}

func NewServer(logger logs.Log, stats *perfstats.Pipeline) *Server {
	s := &Server{
		log:    logs.NewPrefixLogger(logger, "www:"),
		stats:  stats,
		router: httprouter.New(),
		wsUpgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	www.Handle(s.log, s.router, "GET", "/api/status", s.httpStatus)
	s.router.GET("/api/live/ws", s.httpLiveWS)
	return s
}

// Run consumes composited frames until the channel closes, encoding each one
// and broadcasting it. Call on a dedicated goroutine.
func (s *Server) Run(composited <-chan *hand.RecognizedFrame) {
	for recognized := range composited {
		update, err := s.encode(recognized)
		if err != nil {
			if time.Since(s.lastEncodeErr) > 15*time.Second {
				s.log.Errorf("Failed to encode frame: %v", err)
				s.lastEncodeErr = time.Now()
			}
			continue
		}
		s.broadcast(update)
	}
	s.closeSinks()
}

// ListenAndServe blocks serving HTTP.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Infof("Listening on %v", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) encode(recognized *hand.RecognizedFrame) (*liveUpdate, error) {
	frame := recognized.Frame
	rgba := cimg.WrapImage(frame.Width, frame.Height, cimg.PixelFormatRGBA, frame.Pixels)
	jpg, err := cimg.Compress(rgba.ToRGB(), cimg.MakeCompressParams(cimg.Sampling420, jpegQuality, 0))
	if err != nil {
		return nil, err
	}
	return &liveUpdate{jpeg: jpg, result: &recognized.Result}, nil
}

func (s *Server) broadcast(update *liveUpdate) {
	s.sinksLock.Lock()
	defer s.sinksLock.Unlock()
	for _, sink := range s.sinks {
		gen.TrySend(sink, update)
	}
}

func (s *Server) addSink() chan *liveUpdate {
	sink := make(chan *liveUpdate, 2)
	s.sinksLock.Lock()
	s.sinks = append(s.sinks, sink)
	s.sinksLock.Unlock()
	return sink
}

func (s *Server) removeSink(sink chan *liveUpdate) {
	s.sinksLock.Lock()
	defer s.sinksLock.Unlock()
	for i, existing := range s.sinks {
		if existing == sink {
			s.sinks = append(s.sinks[:i], s.sinks[i+1:]...)
			return
		}
	}
}

func (s *Server) closeSinks() {
	s.sinksLock.Lock()
	defer s.sinksLock.Unlock()
	for _, sink := range s.sinks {
		close(sink)
	}
	s.sinks = nil
}

func (s *Server) httpStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	www.SendJSON(w, s.stats.Snapshot())
}

func (s *Server) httpLiveWS(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("Websocket upgrade failed: %v", err)
		return
	}
	runLiveStreamer(s, conn)
}
