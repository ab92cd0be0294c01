package www

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/cyclopcam/handcam/pkg/hand"
	"github.com/cyclopcam/logs"
	"github.com/gorilla/websocket"
)

// Sent by client over websocket
type liveClientMsg struct {
	Command string `json:"command"` // "pause" or "resume"
}

// When we send a message on the websocket, it's either a BINARY frame, in
// which case it's a JPEG image, or it's a TEXT frame, in which case it's this.
type liveServerMsg struct {
	Type    string              `json:"type"` // Only type of message is "gesture"
	Gesture *hand.GestureResult `json:"gesture"`
}

var nextLiveStreamerID int64

// liveStreamer serves one websocket viewer. Frames arrive from the server's
// broadcaster on a small buffered channel, so a slow or paused client simply
// misses frames.
type liveStreamer struct {
	log    logs.Log
	server *Server
	paused atomic.Bool
	nSent  int64
}

func runLiveStreamer(server *Server, conn *websocket.Conn) {
	streamerID := atomic.AddInt64(&nextLiveStreamerID, 1)
	s := &liveStreamer{
		log:    logs.NewPrefixLogger(server.log, fmt.Sprintf("viewer %v", streamerID)),
		server: server,
	}
	s.run(conn)
}

func (s *liveStreamer) run(conn *websocket.Conn) {
	sink := s.server.addSink()
	defer s.server.removeSink(sink)
	defer conn.Close()

	s.log.Infof("Connected")

	closed := make(chan struct{})
	go s.reader(conn, closed)

	for {
		select {
		case update, ok := <-sink:
			if !ok {
				return
			}
			if s.paused.Load() {
				continue
			}
			if err := s.send(conn, update); err != nil {
				s.log.Infof("Write failed, disconnecting: %v", err)
				return
			}
		case <-closed:
			s.log.Infof("Disconnected after %v frames", s.nSent)
			return
		}
	}
}

func (s *liveStreamer) send(conn *websocket.Conn, update *liveUpdate) error {
	if err := conn.WriteMessage(websocket.BinaryMessage, update.jpeg); err != nil {
		return err
	}
	msg := liveServerMsg{
		Type:    "gesture",
		Gesture: update.result,
	}
	j, err := json.Marshal(&msg)
	if err != nil {
		s.log.Errorf("Failed to marshal gesture message: %v", err)
		return nil
	}
	s.nSent++
	return conn.WriteMessage(websocket.TextMessage, j)
}

// reader watches for pause/resume commands, and signals when the client is
// gone.
func (s *liveStreamer) reader(conn *websocket.Conn, closed chan struct{}) {
	defer close(closed)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		msg := liveClientMsg{}
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Infof("Failed to decode client message: %v", err)
			continue
		}
		switch msg.Command {
		case "pause":
			s.paused.Store(true)
		case "resume":
			s.paused.Store(false)
		default:
			s.log.Infof("Unknown command from client: '%v'", msg.Command)
		}
	}
}
