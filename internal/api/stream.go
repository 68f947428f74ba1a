package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const streamWriteWait = 10 * time.Second

// streamHandler pushes every persisted log document to a websocket client.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	docs, cancel := s.scanner.Subscribe()
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	s.logger.Info("Report stream client connected", zap.String("remote", r.RemoteAddr))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case doc, ok := <-docs:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(streamWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(doc); err != nil {
				s.logger.Info("Report stream client dropped", zap.Error(err))
				return
			}
		case <-closed:
			s.logger.Info("Report stream client disconnected", zap.String("remote", r.RemoteAddr))
			return
		}
	}
}
