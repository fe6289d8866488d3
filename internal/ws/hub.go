package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// client pairs a registered connection with its metadata and a write lock.
// Gorilla allows one concurrent writer per connection, so every outbound
// frame for a connection goes through this lock.
type client struct {
	info ConnInfo
	wmu  sync.Mutex
}

func (cl *client) write(conn *websocket.Conn, payload []byte) error {
	cl.wmu.Lock()
	defer cl.wmu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the registry of live websocket connections per identity. An
// identity may hold several connections (multi-device). The hub is strictly
// process-local: there is no cross-instance fan-out, no queue and no retry.
// Clients reconcile missed events with a pull-based refetch.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]*client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]*client)}
}

// Add registers a connection for an identity.
func (h *Hub) Add(identity string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[identity]; !ok {
		h.conns[identity] = make(map[*websocket.Conn]*client)
	}
	h.conns[identity][conn] = &client{info: info}
}

// Remove drops a connection; an identity with zero connections leaves the
// registry entirely.
func (h *Hub) Remove(identity string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conns[identity]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, identity)
		}
	}
}

// ConnectionCount reports the live connections for an identity.
func (h *Hub) ConnectionCount(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[identity])
}

type target struct {
	conn     *websocket.Conn
	cl       *client
	identity string
}

// Broadcast sends the event to every live connection of every listed
// identity. Best-effort: a failed write closes and removes that connection
// only, and no event is ever queued for replay.
func (h *Hub) Broadcast(identities []string, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	h.mu.RLock()
	var targets []target
	for _, identity := range identities {
		for conn, cl := range h.conns[identity] {
			targets = append(targets, target{conn: conn, cl: cl, identity: identity})
		}
	}
	h.mu.RUnlock()

	for _, t := range targets {
		if err := t.cl.write(t.conn, payload); err != nil {
			log.Printf("websocket write error identity=%s: %v", t.identity, err)
			t.conn.Close()
			h.Remove(t.identity, t.conn)
			observability.IncBroadcastDrop()
		}
	}
}

// Send writes an event to a single registered connection, best-effort. An
// unregistered connection is skipped.
func (h *Hub) Send(identity string, conn *websocket.Conn, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	cl := h.conns[identity][conn]
	h.mu.RUnlock()
	if cl == nil {
		return
	}
	if err := cl.write(conn, payload); err != nil {
		log.Printf("websocket write error identity=%s: %v", identity, err)
	}
}
