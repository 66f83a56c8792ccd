package httpserver

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/axionmev/flasharb/internal/events"
	"github.com/axionmev/flasharb/pkg/types"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
)

// EventsHandler streams the engine event bus over WebSocket.
type EventsHandler struct {
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewEventsHandler creates a new event stream handler.
func NewEventsHandler(bus *events.Bus, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger,
	}
}

// HandleEvents handles GET /api/events requests. The connection first
// receives the retained event history, then live events as they happen.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("event-stream-upgrade-failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Subscribe before replaying history so no event falls between
	// the replay and the live stream.
	stream, cancel := h.bus.Subscribe()
	defer cancel()

	EventStreamClients.Inc()
	defer EventStreamClients.Dec()

	h.logger.Info("event-stream-client-connected", zap.String("remote", r.RemoteAddr))

	for _, event := range h.bus.History() {
		if !h.writeEvent(conn, event) {
			return
		}
	}

	// Drain incoming frames so close and pong frames are processed.
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			if !h.writeEvent(conn, event) {
				return
			}
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout))
			if err != nil {
				h.logger.Debug("event-stream-ping-failed", zap.Error(err))
				return
			}
		}
	}
}

func (h *EventsHandler) writeEvent(conn *websocket.Conn, event types.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("event-marshal-failed", zap.Error(err))
		return true
	}

	conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		h.logger.Debug("event-stream-client-gone", zap.Error(err))
		return false
	}

	EventStreamMessagesTotal.Inc()
	return true
}
