package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Router builds the HTTP surface: the websocket endpoint, the read-only
// catalog bootstrap endpoint, and a health check.
func (h *Hub) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.serveWS)
	r.HandleFunc("/api/cards", h.serveCards).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.serveHealth).Methods(http.MethodGet)
	return r
}

// serveWS upgrades the connection and runs its read loop. The loop calls
// into the hub one message at a time, preserving per-connection ordering.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := h.HandleConnect(conn)
	defer func() {
		h.HandleDisconnect(sess)
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.HandleMessage(sess, data)
	}
}

func (h *Hub) serveCards(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.catalog.Templates()); err != nil {
		h.logger.Warn("failed to write catalog response", zap.Error(err))
	}
}

func (h *Hub) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
