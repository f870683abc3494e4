package broadcast

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cyber-rangers/cratec/internal/obslog"
	"github.com/cyber-rangers/cratec/internal/obsmetrics"
)

var log = obslog.Component("broadcast")

// Hub is the subscriber-list session store for the broadcast bus. Unlike
// the teacher's DAGStreamer, registration happens synchronously under the
// mutex rather than through a register channel — spec.md §4.3 only
// requires that the list itself, not a reconnect protocol, be the source of
// truth, and a plain mutex-guarded map is simpler to reason about for that
// guarantee.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewHub constructs an empty subscriber hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and registers it as a subscriber. The
// read loop exists only to detect client-initiated close; the hub never
// expects inbound messages.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	obsmetrics.BroadcastSubscribers.Set(float64(n))
	log.Info("subscriber connected", "total", n)

	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	n := len(h.clients)
	h.mu.Unlock()
	obsmetrics.BroadcastSubscribers.Set(float64(n))
	log.Info("subscriber disconnected", "total", n)
}

// send fans a JSON-serializable frame out to every current subscriber,
// holding the lock only for the duration of the fan-out per spec.md §4.3.
// A subscriber whose write fails is evicted immediately; it never
// interrupts delivery to the others.
func (h *Hub) send(frame any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(frame); err != nil {
			log.Debug("evicting subscriber after write failure", "error", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
	obsmetrics.BroadcastSubscribers.Set(float64(len(h.clients)))
}

// SendStatus pushes a Status frame to every subscriber.
func (h *Hub) SendStatus(status DeviceStatus) {
	h.send(StatusFrame{Type: FrameStatus, Data: status})
}

// SendProcessFull pushes a ProcessFull frame.
func (h *Hub) SendProcessFull(f ProcessFullFrame) {
	f.Type = FrameProcessFull
	h.send(f)
}

// SendProcessOutput pushes a ProcessOutput frame.
func (h *Hub) SendProcessOutput(id int64, line string) {
	h.send(ProcessOutputFrame{Type: FrameProcessOutput, ID: id, Output: line})
}

// SendProcessProgress pushes a ProcessProgress frame.
func (h *Hub) SendProcessProgress(f ProcessProgressFrame) {
	f.Type = FrameProcessProgress
	h.send(f)
}

// SendProcessDone pushes the terminal ProcessDone frame for a job.
func (h *Hub) SendProcessDone(f ProcessDoneFrame) {
	f.Type = FrameProcessDone
	h.send(f)
}

// SubscriberCount reports the current subscriber list size, mostly for tests.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
