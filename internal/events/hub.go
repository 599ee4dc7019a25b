package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by the API CORS layer
	},
}

// Hub maintains the set of active websocket clients and broadcasts
// serialized events to them. It doubles as an event sink.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

// NewHub returns a hub; call Run in a goroutine to start broadcasting.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Name() string { return "websocket" }

// HandleEvent implements Sink: serialize and queue for broadcast.
func (h *Hub) HandleEvent(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Websocket hub: marshal failed: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Saturated broadcast queue: drop rather than stall the bus.
	}
}

// Run pumps queued messages to every connected client.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			// Write deadline prevents a blocked client from hanging the hub.
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// ClientCount reports connected subscribers.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Subscribe upgrades an HTTP request and registers the client. The bus
// snapshot, when provided, is sent immediately so the subscriber is not
// blind until the next event.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, snapshot *Snapshot) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	if snapshot != nil && snapshot.State != "" {
		if data, err := json.Marshal(snapshot); err == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("New WebSocket client connected. Total clients: %d", h.ClientCount())

	// Read loop only exists to notice disconnects.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("WebSocket client disconnected. Total clients: %d", h.ClientCount())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()
}
