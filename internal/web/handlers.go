package web

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cjeanneret/pimaton/internal/debug"
	"github.com/cjeanneret/pimaton/internal/logic/booth"
)

// StatusSource exposes the controller state to the panel.
type StatusSource interface {
	State() booth.State
	LastSession() (booth.Session, bool)
}

// Trigger arms a session. It returns false when one is already pending.
type Trigger interface {
	Trigger() bool
}

// Status is the body of GET /status.
type Status struct {
	State       booth.State    `json:"state"`
	Busy        bool           `json:"busy"`
	Trigger     bool           `json:"trigger"` // web trigger available
	LastSession *booth.Session `json:"last_session,omitempty"`
}

const heartbeatInterval = 30 * time.Second

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Status      StatusSource
	Trigger     Trigger
	staticFS    fs.FS
	upgrader    websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
// If trigger is nil, POST /trigger returns 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, status StatusSource, trigger Trigger, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Status:      status,
		Trigger:     trigger,
		staticFS:    staticFS,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The panel is served from the booth itself on the LAN.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleTrigger handles POST /trigger to start a session.
func (h *Handlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Trigger == nil {
		http.Error(w, "web trigger not enabled (input.type is not web)", http.StatusServiceUnavailable)
		return
	}
	if h.Status != nil && h.Status.State().Busy() {
		http.Error(w, "session already in progress", http.StatusConflict)
		return
	}
	if !h.Trigger.Trigger() {
		http.Error(w, "trigger already pending", http.StatusConflict)
		return
	}

	debug.Live("Web trigger from %s", r.RemoteAddr)
	h.Broadcaster.BroadcastMsg("Trigger received")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "triggered"})
}

// HandleStatus handles GET /status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := Status{Trigger: h.Trigger != nil}
	if h.Status != nil {
		st.State = h.Status.State()
		st.Busy = st.State.Busy()
		if s, ok := h.Status.LastSession(); ok {
			st.LastSession = &s
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// HandleLast serves the latest composed picture.
func (h *Handlers) HandleLast(w http.ResponseWriter, r *http.Request) {
	if h.Status == nil {
		http.Error(w, "no session yet", http.StatusNotFound)
		return
	}
	s, ok := h.Status.LastSession()
	if !ok {
		http.Error(w, "no session yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.Output)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// HandleStatusWS handles GET /status/ws. Each status event is sent as one
// text frame; client messages are ignored.
func (h *Handlers) HandleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Verbose("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Reader: detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-closed:
			return

		case <-r.Context().Done():
			return
		}
	}
}
