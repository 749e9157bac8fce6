package inspect

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// event is one message on the /live stream. Fields are populated per
// event type; zero-valued ones are omitted from the wire format.
type event struct {
	Type    string `json:"type"`
	ID      uint64 `json:"id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Version uint64 `json:"version,omitempty"`
	Target  uint64 `json:"target,omitempty"`
	Changed bool   `json:"changed,omitempty"`
	Error   string `json:"error,omitempty"`

	Deps []uint64 `json:"deps,omitempty"`

	Reachable int           `json:"reachable,omitempty"`
	Evaluated int           `json:"evaluated,omitempty"`
	Fired     int           `json:"fired,omitempty"`
	Errors    int           `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
}

// client is one connected /live consumer.
type client struct {
	send chan []byte
	once sync.Once
}

func (c *client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

// hub fans events out to connected clients. Broadcast never blocks: a
// client whose buffer is full misses events instead of stalling the
// goroutine that mutated the graph.
type hub struct {
	buffer int

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	dropped uint64
}

func newHub(buffer int) *hub {
	return &hub{
		buffer:  buffer,
		clients: make(map[*client]struct{}),
	}
}

func (h *hub) add() *client {
	c := &client{send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.closeSend()
		return c
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.closeSend()
}

func (h *hub) broadcast(e event) {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		h.mu.Unlock()
		return
	}

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.dropped++
		}
	}
	h.mu.Unlock()
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.closeSend()
		delete(h.clients, c)
	}
}

// handleLive upgrades the connection and streams events until the client
// disconnects or the inspector closes.
func (in *Inspector) handleLive(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  in.config.ReadBufferSize,
		WriteBufferSize: in.config.WriteBufferSize,
		CheckOrigin:     in.config.CheckOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		in.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := in.hub.add()
	defer in.hub.remove(c)
	defer conn.Close()

	// Read pump: the stream is one-way, reads only surface disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				in.hub.remove(c)
				return
			}
		}
	}()

	ticker := time.NewTicker(in.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
