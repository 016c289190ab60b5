// Package statusweb is a read-only websocket broadcast hub pushing
// body-state/covariance snapshots to connected dashboards after each
// Orchestrator update. It never feeds data back into the Orchestrator
// (spec.md §5's "no cyclic ownership").
//
// Grounded on web/server.go's Server/Hub design: the teacher's Server
// wires `go s.Hub.Run()` and a `/ws` handler calling `serveWs(s.Hub, ...)`
// without shipping hub.go in the retrieved slice, so the hub itself is
// rebuilt here following the standard gorilla/websocket broadcast-hub
// shape that call site implies: register/unregister/broadcast channels
// drained by one goroutine, one send buffer per client.
package statusweb

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Snapshot is one body-state/covariance sample pushed to clients. Cov is
// flattened row-major since JSON has no native matrix type.
type Snapshot struct {
	Time    float64    `json:"time"`
	Pos     [3]float64 `json:"pos"`
	Vel     [3]float64 `json:"vel"`
	Quat    [4]float64 `json:"quat"`
	CovDiag []float64  `json:"cov_diag"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the set of connected clients and fans out broadcast messages
// to each one's buffered send channel, matching web/server.go's `go
// s.Hub.Run()` call site.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]bool
}

// NewHub returns an unstarted Hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		clients:    map[*client]bool{},
	}
}

// Run drains registration and broadcast events until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		case <-stop:
			return
		}
	}
}

// Broadcast marshals snap to JSON and hands it to Run for fan-out to every
// connected client. The fan-out never blocks: a client whose send buffer is
// full is dropped. Broadcast itself waits while the hub's 16-message
// broadcast buffer is full.
func (h *Hub) Broadcast(snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	h.broadcast <- b
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWs upgrades an HTTP connection to a websocket and registers it with
// the hub, matching web/server.go's serveWs(s.Hub, w, r) call site.
func ServeWs(h *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.register <- c
	go c.writePump()
	go c.readPump(h)
}

// readPump discards incoming frames (read-only surface) and unregisters
// on any read error, including the client closing the connection.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

const writeWait = 5 * time.Second

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}
