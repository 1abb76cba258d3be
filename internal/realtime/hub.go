package realtime

import (
	"encoding/json"
	"log/slog"
)

type envelope struct {
	userID uint
	data   []byte
}

// Hub fans notification events out to connected websocket clients. All
// registry mutation and iteration happens on the Run goroutine, so connects
// and disconnects cannot race an in-flight broadcast. Events are filtered
// by recipient before they are written to a connection.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	publish    chan envelope
	clients    map[*Client]bool
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan envelope, 64),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.log.Info("ws_client_connected", "user_id", c.userID, "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info("ws_client_disconnected", "user_id", c.userID, "clients", len(h.clients))
			}
		case e := <-h.publish:
			for c := range h.clients {
				if c.userID != e.userID {
					continue
				}
				select {
				case c.send <- e.data:
				default:
					// slow client, drop it rather than block the others
					delete(h.clients, c)
					close(c.send)
					h.log.Warn("ws_client_dropped", "user_id", c.userID, "reason", "send buffer full")
				}
			}
		}
	}
}

// Publish queues an event for every connection of the given user. Delivery
// is best effort: nothing is reported back to the caller, disconnected
// clients simply miss the push and catch up from the notification list.
func (h *Hub) Publish(userID uint, event string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  payload,
	})
	if err != nil {
		h.log.Error("ws_publish_error", "error", err)
		return
	}
	select {
	case h.publish <- envelope{userID: userID, data: data}:
	default:
		h.log.Warn("ws_publish_dropped", "user_id", userID, "reason", "hub queue full")
	}
}
