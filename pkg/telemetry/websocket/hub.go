// Package websocket serves telemetry to websocket clients.
package websocket

import (
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// Conn reads and writes binary messages as packets.
type Conn websocket.Conn

// Dial connects to a telemetry hub.
func Dial(url, origin string) (*Conn, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return (*Conn)(conn), nil
}

// ReadPacket reads one message.
func (c *Conn) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(c), &pkt)
	return
}

// WritePacket writes one binary message.
func (c *Conn) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(c), pkt)
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	return (*websocket.Conn)(c).Close()
}

// Hub fans packets out to every connected client.
// A client failing a write is disconnected.
type Hub struct {
	lock    sync.Mutex
	clients map[*Conn]chan struct{}
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Conn]chan struct{})}
}

// Handler serves websocket upgrades.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

// NumClients gets the number of connected clients.
func (h *Hub) NumClients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// WritePacket implements telemetry.Sink.
func (h *Hub) WritePacket(pkt []byte) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	for conn, done := range h.clients {
		if err := conn.WritePacket(pkt); err != nil {
			glog.Warningf("websocket %s: %v", (*websocket.Conn)(conn).Request().RemoteAddr, err)
			delete(h.clients, conn)
			close(done)
		}
	}
	return nil
}

func (h *Hub) serve(ws *websocket.Conn) {
	conn, done := (*Conn)(ws), make(chan struct{})
	h.lock.Lock()
	h.clients[conn] = done
	h.lock.Unlock()
	glog.V(1).Infof("websocket %s connected", ws.Request().RemoteAddr)

	// clients only listen; a read returning means the peer went away.
	closed := make(chan struct{})
	go func() {
		var discard []byte
		for websocket.Message.Receive(ws, &discard) == nil {
		}
		close(closed)
	}()
	select {
	case <-done:
	case <-closed:
		h.lock.Lock()
		if _, ok := h.clients[conn]; ok {
			delete(h.clients, conn)
			close(done)
		}
		h.lock.Unlock()
	}
	glog.V(1).Infof("websocket %s disconnected", ws.Request().RemoteAddr)
}
