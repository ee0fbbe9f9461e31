package http

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Hub fans engine broadcasts out to every connected websocket. It is the
// engine's Sink: Publish never blocks, and a slow client only loses its own
// stale updates.
type Hub struct {
	mu    sync.Mutex
	conns map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*wsClient]struct{})}
}

func (h *Hub) Publish(event string, payload any) {
	msg := outboundMessage{Type: event, Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.enqueue(msg)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// wsClient is one websocket connection with its dedicated writer goroutine,
// so no two goroutines ever write the conn concurrently.
type wsClient struct {
	socketID string
	conn     *websocket.Conn
	send     chan outboundMessage

	mu       sync.Mutex
	playerID string
	isHost   bool
}

func newWSClient(socketID string, conn *websocket.Conn) *wsClient {
	return &wsClient{
		socketID: socketID,
		conn:     conn,
		send:     make(chan outboundMessage, 16),
	}
}

// enqueue drops the oldest pending message rather than block the hub when
// the client's buffer is full.
func (c *wsClient) enqueue(msg outboundMessage) {
	select {
	case c.send <- msg:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (c *wsClient) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			return
		}
	}
}

func (c *wsClient) setPlayer(id string, host bool) {
	c.mu.Lock()
	c.playerID = id
	c.isHost = host
	c.mu.Unlock()
}

func (c *wsClient) player() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID, c.isHost
}
