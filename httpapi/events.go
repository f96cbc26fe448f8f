package httpapi

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/membridge/membridge/memory"
	"github.com/membridge/membridge/observability"
)

const (
	eventQueueSize = 64
	writeTimeout   = 10 * time.Second
)

// EventHub broadcasts memory events to connected websocket clients. It
// implements memory.Notifier; Notify never blocks, slow clients drop
// events instead of stalling the write path.
type EventHub struct {
	mu      sync.Mutex
	clients map[*eventClient]struct{}
	metrics *observability.Metrics
}

type eventClient struct {
	conn *websocket.Conn
	send chan memory.Event
}

// NewEventHub creates an empty hub. metrics may be nil.
func NewEventHub(metrics *observability.Metrics) *EventHub {
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		metrics: metrics,
	}
}

// Notify fans the event out to every subscriber.
func (h *EventHub) Notify(ev memory.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Queue full; the client is too slow to keep up.
		}
	}
}

// Serve registers the connection and pumps events to it until the client
// disconnects. The connection is closed on every exit path.
func (h *EventHub) Serve(conn *websocket.Conn) {
	defer conn.Close()

	client := &eventClient{
		conn: conn,
		send: make(chan memory.Event, eventQueueSize),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.EventClients.Set(float64(n))
	}
	log.Printf("[EVENTS] Client connected (%d total)", n)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Reader only detects disconnects; clients never send payloads.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.remove(client)
			return
		case ev := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				h.remove(client)
				// Unblock the reader before waiting on it; the read side
				// may still be healthy after a write timeout.
				conn.Close()
				<-done
				return
			}
		}
	}
}

func (h *EventHub) remove(client *eventClient) {
	h.mu.Lock()
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.EventClients.Set(float64(n))
	}
	log.Printf("[EVENTS] Client disconnected (%d total)", n)
}
