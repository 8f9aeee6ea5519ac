// Package eventhub fans out per-namespace change events to connected
// WebSocket clients, grounded on original_source/server/websocket.py's
// ConnectionManager, plus an optional Redis Pub/Sub backplane so events
// reach clients connected to a different instance.
package eventhub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Event is one change notification broadcast to a namespace's listeners.
// It marshals as {"event": Name, ...Data} matching the original's
// json.dumps({"event": event, **data}).
type Event struct {
	Name      string
	Namespace string
	Data      map[string]any
}

func (e Event) envelope() ([]byte, error) {
	m := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		m[k] = v
	}
	m["event"] = e.Name
	return json.Marshal(m)
}

// conn is anything broadcast can push text frames to; *websocket.Conn
// satisfies it without eventhub importing gorilla directly in this file,
// keeping the hub's fan-out logic transport-agnostic.
type conn interface {
	WriteMessage(messageType int, data []byte) error
}

// Backplane forwards an already-encoded event to other instances, and
// delivers events received from them. Nil disables cross-instance fanout.
type Backplane interface {
	Publish(ctx context.Context, namespace string, payload []byte) error
	Subscribe(ctx context.Context, deliver func(namespace string, payload []byte)) error
	Close() error
}

// Hub manages per-namespace WebSocket connections and broadcasts events
// to all of them, silently dropping connections that fail to receive.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]conn
	backplane   Backplane
}

// New builds a Hub. backplane may be nil (single-instance mode).
func New(backplane Backplane) *Hub {
	h := &Hub{connections: map[string][]conn{}, backplane: backplane}
	if backplane != nil {
		go h.subscribeLoop()
	}
	return h
}

func (h *Hub) subscribeLoop() {
	ctx := context.Background()
	if err := h.backplane.Subscribe(ctx, h.deliverLocal); err != nil {
		log.Error("event hub backplane subscribe failed", "err", err)
	}
}

func (h *Hub) deliverLocal(namespace string, payload []byte) {
	h.mu.RLock()
	conns := append([]conn(nil), h.connections[namespace]...)
	h.mu.RUnlock()
	for _, c := range conns {
		if err := c.WriteMessage(1, payload); err != nil {
			h.disconnect(namespace, c)
		}
	}
}

// Connect registers a connection for a namespace's events.
func (h *Hub) Connect(namespace string, c conn) {
	h.mu.Lock()
	h.connections[namespace] = append(h.connections[namespace], c)
	h.mu.Unlock()
}

// Disconnect removes a connection from a namespace, matching the
// original's explicit disconnect() called both on send failure and on
// the client closing the socket.
func (h *Hub) Disconnect(namespace string, c conn) {
	h.disconnect(namespace, c)
}

func (h *Hub) disconnect(namespace string, c conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.connections[namespace]
	for i, existing := range conns {
		if existing == c {
			h.connections[namespace] = append(conns[:i], conns[i+1:]...)
			return
		}
	}
}

// Broadcast sends event to every connection on namespace, dropping any
// connection whose write fails (matching the original's try/except
// around ws.send_text that silently disconnects on error). When a
// Backplane is configured, it also publishes the event so sibling
// instances deliver it to their own local connections.
func (h *Hub) Broadcast(ctx context.Context, e Event) error {
	payload, err := e.envelope()
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns := append([]conn(nil), h.connections[e.Namespace]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(1, payload); err != nil {
			log.Debug("websocket disconnected from namespace", "namespace", e.Namespace)
			h.disconnect(e.Namespace, c)
		}
	}

	if h.backplane != nil {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.backplane.Publish(pctx, e.Namespace, payload); err != nil {
			log.Warn("event hub backplane publish failed", "namespace", e.Namespace, "err", err)
		}
	}
	return nil
}

// ConnectionCount reports how many listeners a namespace currently has.
func (h *Hub) ConnectionCount(namespace string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[namespace])
}

// Close releases the backplane, if any.
func (h *Hub) Close() error {
	if h.backplane == nil {
		return nil
	}
	return h.backplane.Close()
}
