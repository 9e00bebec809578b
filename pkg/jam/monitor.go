package jam

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MonitorEvent is the wire form of a session event broadcast to websocket
// observers.
type MonitorEvent struct {
	Type  string        `json:"type"`
	State string        `json:"state,omitempty"`
	Style string        `json:"style,omitempty"`
	Dir   string        `json:"direction,omitempty"`
	Notes []MonitorNote `json:"notes,omitempty"`
}

type MonitorNote struct {
	Pitch    uint8   `json:"pitch"`
	Velocity uint8   `json:"velocity"`
	Onset    float64 `json:"onset"`
	Duration float64 `json:"duration"`
}

// Monitor is a websocket hub broadcasting session events to any connected
// viewer. It implements EventSink and never blocks the session loop: slow
// clients drop events.
type Monitor struct {
	addr     string
	log      *Logger
	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewMonitor(addr string) *Monitor {
	return &Monitor{
		addr: addr,
		log:  GetGlobalLogger().WithComponent("Monitor"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Start begins serving websocket connections on /ws.
func (m *Monitor) Start() error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return WrapError(err, "monitor listen failed", ErrCodeConfig)
	}
	m.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)
	m.server = &http.Server{Handler: mux}

	go func() {
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.log.WithError(err).Error("monitor server stopped")
		}
	}()
	m.log.Infof("monitor listening on ws://%s/ws", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address.
func (m *Monitor) Addr() string {
	if m.listener == nil {
		return m.addr
	}
	return m.listener.Addr().String()
}

// Stop closes all client connections and the server.
func (m *Monitor) Stop() {
	m.mu.Lock()
	for conn, ch := range m.clients {
		close(ch)
		_ = conn.Close()
		delete(m.clients, conn)
	}
	m.mu.Unlock()

	if m.server != nil {
		_ = m.server.Close()
	}
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	outbox := make(chan []byte, 64)
	m.mu.Lock()
	m.clients[conn] = outbox
	m.mu.Unlock()
	m.log.Infof("monitor client connected: %s", conn.RemoteAddr())

	// Writer: drain the outbox until it closes.
	go func() {
		for payload := range outbox {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				break
			}
		}
		_ = conn.Close()
	}()

	// Reader: only to detect disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				m.removeClient(conn)
				return
			}
		}
	}()
}

func (m *Monitor) removeClient(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.clients[conn]; ok {
		close(ch)
		delete(m.clients, conn)
	}
}

func (m *Monitor) broadcast(ev MonitorEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.clients {
		select {
		case ch <- payload:
		default:
			// Slow client; drop rather than stall the session.
		}
	}
}

func monitorNotes(seq NoteSequence) []MonitorNote {
	notes := make([]MonitorNote, len(seq))
	for i, e := range seq {
		notes[i] = MonitorNote{
			Pitch:    e.Pitch,
			Velocity: e.Velocity,
			Onset:    e.Onset.Seconds(),
			Duration: e.Duration.Seconds(),
		}
	}
	return notes
}

// EventSink implementation.

func (m *Monitor) StateChanged(state SessionState) {
	m.broadcast(MonitorEvent{Type: "state", State: string(state)})
}

func (m *Monitor) NotesCaptured(seq NoteSequence) {
	m.broadcast(MonitorEvent{Type: "notes", Dir: "in", Notes: monitorNotes(seq)})
}

func (m *Monitor) NotesGenerated(seq NoteSequence) {
	m.broadcast(MonitorEvent{Type: "notes", Dir: "out", Notes: monitorNotes(seq)})
}

func (m *Monitor) StyleChanged(style string) {
	m.broadcast(MonitorEvent{Type: "style", Style: style})
}
