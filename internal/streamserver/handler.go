package streamserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming connections to WebSocket and runs one Stream
// per connection against engine, logging with logger.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// NewHandler returns an http.Handler that serves one streaming session per
// WebSocket connection. logger must not be nil.
func NewHandler(engine Engine, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = r.RemoteAddr
	}

	stream, err := h.engine.NewStream(sessionID, func(res Result) {
		if err := conn.WriteJSON(res); err != nil {
			h.logger.Warn("writing result", "session", sessionID, "error", err)
		}
	})
	if err != nil {
		h.logger.Error("starting stream", "session", sessionID, "error", err)
		_ = conn.WriteJSON(Result{Error: err.Error()})
		return
	}
	defer stream.Close()

	h.logger.Info("session opened", "session", sessionID)
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info("session closed", "session", sessionID, "error", err)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := stream.PushAudio(payload); err != nil {
				h.logger.Warn("push audio failed", "session", sessionID, "error", err)
				return
			}
		case websocket.TextMessage:
			var evt struct {
				Event string `json:"event"`
			}
			if err := json.Unmarshal(payload, &evt); err != nil {
				continue
			}
			switch evt.Event {
			case "flush":
				if err := stream.Flush(); err != nil {
					h.logger.Warn("flush failed", "session", sessionID, "error", err)
					return
				}
			case "close":
				return
			}
		}
	}
}
