package httpapi

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	liveWriteWait    = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingPeriod   = (livePongWait * 9) / 10
	liveMaxFrameSize = 512
)

func isWebSocketRequest(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// checkOrigin lets non-browser clients (no Origin header) through and holds
// browsers to the configured CORS origin.
func (a *API) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || a.allowedOrigin == "*" {
		return true
	}
	return strings.EqualFold(origin, a.allowedOrigin)
}

// handleLive streams change events for one shopping list over a websocket.
// The subscription is taken before the upgrade so nothing committed after the
// client's initial fetch is missed. Clients that fall behind lose events and
// should refetch the list view.
func (a *API) handleLive(w http.ResponseWriter, r *http.Request, listID string) {
	sub, err := a.service.WatchShoppingList(r.Context(), listID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer sub.Close()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[live] WARN upgrade for list %s failed: %v", listID, err)
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go readLive(conn, done)

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay closed"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLive drains client frames so pongs and close frames are processed.
func readLive(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(liveMaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[live] WARN read: %v", err)
			}
			return
		}
	}
}
