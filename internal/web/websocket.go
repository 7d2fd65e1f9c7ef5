package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pixelwar.app/pxw/internal/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedUpdate is one websocket frame: the full visible feed, newest first.
type feedUpdate struct {
	Type     string           `json:"type"`
	Messages []logger.Message `json:"messages"`
}

// handleStatusWS streams the message feed. A frame is sent on connect and
// whenever a message is added or dismissed.
func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// drain client frames so close and ping control messages are handled
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var sent uint64
	first := true
	for {
		if v := s.feed.Version(); first || v != sent {
			first = false
			sent = v
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(feedUpdate{Type: "feed", Messages: s.feed.GetRecent(50)}); err != nil {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
