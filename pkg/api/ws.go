package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsPushInterval matches the uplink reporting period so a browser sees
// the same cadence the remote server does.
const wsPushInterval = 200 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API already allows any origin via the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serveWS streams rig snapshots to a websocket client until the client
// goes away or the connection breaks.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "error", err)
		return
	}

	defer func() {
		if err := conn.Close(); err != nil {
			s.log.Debugw("websocket close", "error", err)
		}
	}()

	// Drain control frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case now := <-ticker.C:
			if err := conn.WriteJSON(s.store.Snapshot(now)); err != nil {
				s.log.Debugw("websocket client gone", "error", err)
				return
			}
		}
	}
}
