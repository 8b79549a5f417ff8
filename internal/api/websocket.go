// websocket.go - Push channel for log, device and chat updates
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/edgecli/neurolink/internal/chatmem"
	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/lifecycle"
)

// WebSocket message types
const (
	// Client -> Server
	MsgTypePing = "ping"

	// Server -> Client
	MsgTypeConnected = "connected"
	MsgTypeLog       = "log"
	MsgTypeDevice    = "device"
	MsgTypeChat      = "chat"
	MsgTypePong      = "pong"
)

const (
	writeWait     = 10 * time.Second
	readLimit     = 4 * 1024
	pingQueueSize = 4
)

// WSMessage is the envelope for every frame
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ConnectedPayload carries the full state sent on connect
type ConnectedPayload struct {
	Device lifecycle.Snapshot `json:"device"`
	Logs   []eventlog.Entry   `json:"logs"`
	Chat   []chatmem.Message  `json:"chat"`
}

// WebSocketHandler fans core updates out to browser clients
type WebSocketHandler struct {
	handler  *Handler
	upgrader websocket.Upgrader
	clients  atomic.Int64
}

// NewWebSocketHandler creates a new push handler
func NewWebSocketHandler(h *Handler) *WebSocketHandler {
	return &WebSocketHandler{
		handler: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// Clients returns the number of connected clients
func (wsh *WebSocketHandler) Clients() int64 {
	return wsh.clients.Load()
}

// HandleWebSocket upgrades the connection and streams updates until either
// side goes away. All writes happen on this goroutine.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	n := wsh.clients.Add(1)
	defer wsh.clients.Add(-1)
	log.Printf("[INFO] websocket: client connected (%d active)", n)

	h := wsh.handler
	devSub := h.device.Subscribe()
	defer devSub.Cancel()
	logSub := h.logs.Subscribe()
	defer logSub.Cancel()
	chatSub := h.chat.Memory().Subscribe()
	defer chatSub.Cancel()

	if err := wsh.send(ws, MsgTypeConnected, "", ConnectedPayload{
		Device: h.device.Snapshot(),
		Logs:   h.logs.Entries(),
		Chat:   h.chat.Memory().Messages(),
	}); err != nil {
		log.Printf("[WARN] websocket: initial send failed: %v", err)
		return nil
	}

	pings := make(chan string, pingQueueSize)
	done := make(chan struct{})
	go wsh.readLoop(ws, pings, done)

	for {
		var err error
		select {
		case <-done:
			log.Printf("[INFO] websocket: client disconnected")
			return nil
		case <-c.Request().Context().Done():
			return nil
		case id := <-pings:
			err = wsh.send(ws, MsgTypePong, id, nil)
		case snap, ok := <-devSub.C():
			if !ok {
				return nil
			}
			err = wsh.send(ws, MsgTypeDevice, "", snap)
		case entry, ok := <-logSub.C():
			if !ok {
				return nil
			}
			err = wsh.send(ws, MsgTypeLog, entry.ID, entry)
		case msg, ok := <-chatSub.C():
			if !ok {
				return nil
			}
			err = wsh.send(ws, MsgTypeChat, msg.ID, msg)
		}
		if err != nil {
			log.Printf("[WARN] websocket: write failed: %v", err)
			return nil
		}
	}
}

func (wsh *WebSocketHandler) readLoop(ws *websocket.Conn, pings chan<- string, done chan<- struct{}) {
	defer close(done)
	ws.SetReadLimit(readLimit)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WARN] websocket: read error: %v", err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[DEBUG] websocket: ignoring malformed frame: %v", err)
			continue
		}
		if msg.Type != MsgTypePing {
			continue
		}
		select {
		case pings <- msg.ID:
		default:
		}
	}
}

func (wsh *WebSocketHandler) send(ws *websocket.Conn, typ, id string, payload interface{}) error {
	msg := WSMessage{Type: typ, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = data
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteJSON(msg)
}
