// Package eventbus fans out capture and surveillance events to connected
// websocket clients.
package eventbus

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lcalzada-xor/prowlsensor/internal/capture"
	"github.com/lcalzada-xor/prowlsensor/internal/logging"
	"github.com/lcalzada-xor/prowlsensor/internal/surveillance"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// This sensor exposes its event stream on a trusted local/LAN
		// interface; there is no cross-origin browser client to police.
		return true
	},
}

// Message is the envelope written to every connected client.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Manager fans out probe and alert events to all connected websocket
// clients, and relays raw capture events from a channel.
type Manager struct {
	log     *logging.Logger
	clients map[*websocket.Conn]struct{}
	mu      sync.Mutex
}

// NewManager builds an empty event fanout Manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		log:     log,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// RunCaptureRelay drains capture engine events onto connected clients
// until the channel closes or ctx is cancelled.
func (m *Manager) RunCaptureRelay(ctx context.Context, events <-chan capture.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.broadcast(Message{Type: "probe", Payload: ev})
		}
	}
}

// HandleWebSocket upgrades an incoming request to a websocket connection
// and registers it as an event subscriber.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warnf("eventbus: upgrade failed: %v", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = struct{}{}
	m.mu.Unlock()

	m.log.Infof("eventbus: client connected (%s)", conn.RemoteAddr())

	go func() {
		defer conn.Close()
		defer func() {
			m.mu.Lock()
			delete(m.clients, conn)
			m.mu.Unlock()
			m.log.Infof("eventbus: client disconnected (%s)", conn.RemoteAddr())
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// BroadcastAlerts sends a batch of surveillance alerts to every connected
// client, typically called after each analysis pass.
func (m *Manager) BroadcastAlerts(alerts []surveillance.Alert) {
	m.broadcast(Message{Type: "surveillance.alerts", Payload: alerts})
}

func (m *Manager) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Warnf("eventbus: marshal error: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(m.clients, conn)
		}
	}
}
