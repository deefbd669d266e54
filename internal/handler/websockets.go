package handler

import (
	"net/http"
	"time"

	"videocounter/internal/dto"
	"videocounter/internal/logger"

	"github.com/gorilla/websocket"
)

const viewerReadTimeout = 60 * time.Second

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewerHub accepts viewer connections.
type ViewerHub interface {
	Register(conn *websocket.Conn)
	Unregister(conn *websocket.Conn)
}

// ViewWebsocketHandler sends the current counts to a new viewer, then hands the
// connection to the hub for live updates until the viewer goes away.
func ViewWebsocketHandler(hub ViewerHub, counts CountService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
			return nil
		})

		initial := dto.Event{Type: dto.EventCounts, Counts: counts.Counts()}
		if err := connection.WriteJSON(initial); err != nil {
			logger.Warning("Failed to send initial counts: %v", err)
			connection.Close()
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				logger.Debug("Viewer disconnected: %v", err)
				break
			}
			connection.SetReadDeadline(time.Now().Add(viewerReadTimeout))
		}
	}
}
